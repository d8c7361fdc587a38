package uhfmac

/*------------------------------------------------------------------
 *
 * Purpose:	Save sent and received CSP packets to a log file.
 *
 * Description: Rather than saving the raw packet, write separated
 *		properties into CSV format for easy reading and later
 *		processing.
 *
 *		The file name is a strftime pattern, expanded with the
 *		current UTC time for every packet.  A pattern like
 *		"uhfmac-%Y-%m-%d.csv" gives daily files.  One without
 *		any % conversions is just a single file.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

type PacketDirection string

const (
	PacketSent     PacketDirection = "tx"
	PacketReceived PacketDirection = "rx"
)

var packetLogHeader = []string{
	"utime", "isotime", "direction", "scheme", "length",
	"priority", "source", "destination", "dport", "sport", "flags", "corrected",
}

type PacketLog struct {
	mu       sync.Mutex
	pattern  *strftime.Strftime
	fp       *os.File
	w        *csv.Writer
	openName string
	logger   *log.Logger

	now func() time.Time
}

/*------------------------------------------------------------------
 *
 * Function:	NewPacketLog
 *
 * Inputs:	pattern	- strftime pattern for the file name.
 *			  Empty string disables the feature, returning nil.
 *
 * Description:	Nothing is opened until the first packet.  Note that
 *		the file is then kept open.  We don't open/close for
 *		every new item.
 *
 *------------------------------------------------------------------*/

func NewPacketLog(pattern string, logger *log.Logger) (*PacketLog, error) {
	if pattern == "" {
		return nil, nil //nolint:nilnil
	}

	var p, err = strftime.New(pattern)
	if err != nil {
		return nil, fmt.Errorf("packet log pattern %q: %w", pattern, err)
	}

	if logger == nil {
		logger = log.Default()
	}

	return &PacketLog{ //nolint:exhaustruct
		pattern: p,
		logger:  logger.WithPrefix("packetlog"),
		now:     time.Now,
	}, nil
}

/*------------------------------------------------------------------
 *
 * Function:	Write
 *
 * Purpose:	Save information to log file.
 *
 * Inputs:	dir		- Sent or received.
 *
 *		scheme		- Error correction in use.
 *
 *		packet		- CSP packet image.
 *
 *		corrected	- Symbols corrected by the decoder.
 *
 * Description:	Safe to call on a nil *PacketLog, which does nothing.
 *		Problems are logged and otherwise ignored.
 *
 *------------------------------------------------------------------*/

func (pl *PacketLog) Write(dir PacketDirection, scheme ErrorCorrectionScheme, packet []byte, corrected int) {
	if pl == nil {
		return
	}

	pl.mu.Lock()
	defer pl.mu.Unlock()

	var now = pl.now().UTC()
	var fname = pl.pattern.FormatString(now)

	// Close current file if name has changed

	if pl.fp != nil && fname != pl.openName {
		pl.closeLocked()
	}

	if pl.fp == nil {
		if err := pl.open(fname); err != nil {
			pl.logger.Error("Can't open log file", "file", fname, "err", err)
			return
		}
	}

	var record = []string{
		strconv.FormatInt(now.Unix(), 10),
		now.Format("2006-01-02T15:04:05Z"),
		string(dir),
		scheme.String(),
		strconv.Itoa(len(packet)),
		"", "", "", "", "", "",
		strconv.Itoa(corrected),
	}

	// Not everything the MAC carries has to be a well formed CSP packet.
	if p, err := ParseCSPImage(packet); err == nil {
		record[5] = strconv.Itoa(int(p.ID.Priority))
		record[6] = strconv.Itoa(int(p.ID.Source))
		record[7] = strconv.Itoa(int(p.ID.Dest))
		record[8] = strconv.Itoa(int(p.ID.DestPort))
		record[9] = strconv.Itoa(int(p.ID.SrcPort))
		record[10] = fmt.Sprintf("0x%02x", p.ID.Flags)
	}

	_ = pl.w.Write(record)
	pl.w.Flush()

	if err := pl.w.Error(); err != nil {
		pl.logger.Error("Log file write failed", "file", fname, "err", err)
	}
}

func (pl *PacketLog) open(fname string) error {
	if dir := filepath.Dir(fname); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	// See if file already exists and not empty.
	// This is used later to write a header if it did not exist already.

	var stat, statErr = os.Stat(fname)
	var alreadyThere = statErr == nil && stat.Size() > 0

	var f, err = os.OpenFile(fname, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}

	pl.logger.Info("Opening log file", "file", fname)

	pl.fp = f
	pl.w = csv.NewWriter(f)
	pl.openName = fname

	// Write a header suitable for importing into a spreadsheet
	// only if this will be the first line.

	if !alreadyThere {
		_ = pl.w.Write(packetLogHeader)
	}

	return nil
}

func (pl *PacketLog) closeLocked() {
	if pl.fp == nil {
		return
	}

	pl.w.Flush()
	_ = pl.fp.Close()

	pl.fp = nil
	pl.w = nil
	pl.openName = ""
}

// Close the current file.  A later Write opens it again.
func (pl *PacketLog) Close() {
	if pl == nil {
		return
	}

	pl.mu.Lock()
	defer pl.mu.Unlock()

	pl.closeLocked()
}
