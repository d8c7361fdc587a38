package uhfmac

/*------------------------------------------------------------------
 *
 * Purpose:	EnduroSat UHF transceiver framing and ESTTC commands.
 *
 * Description:	Over the air, every transparent mode payload and every
 *		ESTTC command travels in the same frame:
 *
 *		    AA AA AA AA AA  7E  len  data...  crc-hi crc-lo
 *
 *		The CRC is CRC-16/CCITT-FALSE over the length byte and
 *		the data.
 *
 *		An ESTTC command is ASCII text followed by a space, the
 *		IEEE CRC-32 of the text as 8 upper case hex digits, and a
 *		carriage return.
 *
 *---------------------------------------------------------------*/

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"sort"
	"strconv"
	"strings"
)

const (
	esPreambleByte   = 0xAA
	esPreambleLength = 5
	esSyncByte       = 0x7E
	esCRCLength      = 2
	esMaxData        = TransparentModePayloadLength
)

var (
	ErrESFrame        = errors.New("malformed EnduroSat frame")
	ErrESFrameCRC     = errors.New("EnduroSat frame CRC mismatch")
	ErrESTTCChecksum  = errors.New("ESTTC command checksum mismatch")
	ErrESTTCMalformed = errors.New("malformed ESTTC command")
)

// esFrameOverhead is the full on-air size of a frame carrying dataLength bytes.
func esFrameOverhead(dataLength int) int {
	return esPreambleLength + 1 + 1 + dataLength + esCRCLength
}

func EncodeESFrame(data []byte) ([]byte, error) {
	if len(data) < 1 || len(data) > esMaxData {
		return nil, fmt.Errorf("%w: %d data bytes", ErrESFrame, len(data))
	}

	var frame = make([]byte, 0, esFrameOverhead(len(data)))
	for range esPreambleLength {
		frame = append(frame, esPreambleByte)
	}

	frame = append(frame, esSyncByte, byte(len(data)))
	frame = append(frame, data...)

	var crc = frameCheckSum(frame[esPreambleLength+1:])

	return binary.BigEndian.AppendUint16(frame, crc), nil
}

// DecodeESFrame takes one complete frame, preamble included, and returns
// the data field.
func DecodeESFrame(frame []byte) ([]byte, error) {
	var i = 0
	for i < len(frame) && frame[i] == esPreambleByte {
		i++
	}

	if i == 0 || i >= len(frame) || frame[i] != esSyncByte {
		return nil, fmt.Errorf("%w: no preamble and sync", ErrESFrame)
	}

	var body = frame[i+1:]
	if len(body) < 1 {
		return nil, fmt.Errorf("%w: missing length", ErrESFrame)
	}

	var n = int(body[0])
	if n < 1 || n > esMaxData || len(body) != 1+n+esCRCLength {
		return nil, fmt.Errorf("%w: length byte %d, %d bytes follow", ErrESFrame, n, len(body)-1)
	}

	var got = binary.BigEndian.Uint16(body[1+n:])
	if want := frameCheckSum(body[:1+n]); got != want {
		return nil, fmt.Errorf("%w: got %04X, want %04X", ErrESFrameCRC, got, want)
	}

	return append([]byte(nil), body[1:1+n]...), nil
}

type esScanState int

const (
	ES_HUNT esScanState = iota
	ES_LENGTH
	ES_DATA
)

// ESFrameScanner pulls frames out of a byte stream such as a serial port.
type ESFrameScanner struct {
	state    esScanState
	last     byte
	body     []byte
	want     int
	BadCRC   int
	BadFrame int
}

/*-------------------------------------------------------------------
 *
 * Name:	Feed
 *
 * Purpose:	Process one received byte.
 *
 * Returns:	The data field and true when b completes a good frame.
 *
 * Description:	A frame starts at a sync byte immediately after a
 *		preamble byte.  A bad length or CRC drops back to hunting.
 *
 *---------------------------------------------------------------*/

func (s *ESFrameScanner) Feed(b byte) ([]byte, bool) {
	switch s.state {
	case ES_HUNT:
		if b == esSyncByte && s.last == esPreambleByte {
			s.state = ES_LENGTH
		}

	case ES_LENGTH:
		if b < 1 || int(b) > esMaxData {
			s.BadFrame++
			s.state = ES_HUNT

			break
		}

		s.body = append(s.body[:0], b)
		s.want = 1 + int(b) + esCRCLength
		s.state = ES_DATA

	case ES_DATA:
		s.body = append(s.body, b)
		if len(s.body) < s.want {
			break
		}

		s.state = ES_HUNT

		var n = len(s.body) - esCRCLength
		if binary.BigEndian.Uint16(s.body[n:]) != frameCheckSum(s.body[:n]) {
			s.BadCRC++

			break
		}

		s.last = b

		return append([]byte(nil), s.body[1:n]...), true
	}

	s.last = b

	return nil, false
}

// ESTTCCommand is the command text without checksum or terminator.
type ESTTCCommand string

const (
	ESTTCReadStatusControlWord ESTTCCommand = "ES+R2200"
	ESTTCEnableBeacons         ESTTCCommand = "ES+W22003440"
	ESTTCDisableBeacons        ESTTCCommand = "ES+W22003400"
	ESTTCReadUptime            ESTTCCommand = "ES+R2202"
	ESTTCReadReceivedPackets   ESTTCCommand = "ES+R2204"
)

func ESTTCSetBeaconPeriod(seconds uint32) ESTTCCommand {
	return ESTTCCommand(fmt.Sprintf("ES+W2207%08X", seconds))
}

func (c ESTTCCommand) Checksum() uint32 {
	return crc32.ChecksumIEEE([]byte(c))
}

// Bytes is the command as sent to the radio: text, space, CRC-32, CR.
func (c ESTTCCommand) Bytes() []byte {
	return fmt.Appendf(nil, "%s %08X\r", string(c), c.Checksum())
}

func ParseESTTCCommand(line []byte) (ESTTCCommand, error) {
	var text = string(bytes.TrimRight(line, "\r\n"))

	var cmd, sum, found = strings.Cut(text, " ")
	if !found || !strings.HasPrefix(cmd, "ES+") || len(sum) != 8 {
		return "", fmt.Errorf("%w: %q", ErrESTTCMalformed, text)
	}

	var v, err = strconv.ParseUint(sum, 16, 32)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrESTTCMalformed, text)
	}

	var c = ESTTCCommand(cmd)
	if uint32(v) != c.Checksum() {
		return "", fmt.Errorf("%w: %s has %08X, want %08X", ErrESTTCChecksum, cmd, v, c.Checksum())
	}

	return c, nil
}

// Command names accepted by the esttc tool.
var namedESTTCCommands = map[string]ESTTCCommand{
	"read-scw":        ESTTCReadStatusControlWord,
	"enable-beacons":  ESTTCEnableBeacons,
	"disable-beacons": ESTTCDisableBeacons,
	"uptime":          ESTTCReadUptime,
	"rx-packets":      ESTTCReadReceivedPackets,
}

func LookupESTTCCommand(name string) (ESTTCCommand, bool) {
	var c, ok = namedESTTCCommands[name]

	return c, ok
}

func ESTTCCommandNames() []string {
	var names = make([]string, 0, len(namedESTTCCommands))
	for n := range namedESTTCCommands {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}
