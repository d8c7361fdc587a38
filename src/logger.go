package uhfmac

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, logfmt or json

	// strftime format.  Empty for no time stamps.
	TimestampFormat string `yaml:"timestamp_format"`

	// Packet log file name pattern.  See NewPacketLog.
	PacketLog string `yaml:"packet_log"`
}

var ErrLogConfig = errors.New("invalid log configuration")

// The moment every Go time layout is written in, with a zone named so that
// %Z comes out as a layout element too.
var layoutReference = time.Date(2006, time.January, 2, 15, 4, 5, 0, time.FixedZone("MST", -7*60*60))

// strftimeLayout turns a strftime pattern into the equivalent Go time layout
// by formatting the layout reference time with it.
func strftimeLayout(pattern string) (string, error) {
	var layout, err = strftime.Format(pattern, layoutReference)
	if err != nil {
		return "", fmt.Errorf("%w: timestamp format %q: %w", ErrLogConfig, pattern, err)
	}

	return layout, nil
}

func parseLogFormatter(name string) (log.Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text":
		return log.TextFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	default:
		return log.TextFormatter, fmt.Errorf("%w: unknown format %q", ErrLogConfig, name)
	}
}

// NewLogger builds the logger everything else takes a prefixed copy of.
// Output goes to w, or standard error when w is nil.
func NewLogger(cfg LogConfig, w io.Writer) (*log.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	var level = log.InfoLevel

	if cfg.Level != "" {
		var l, err = log.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLogConfig, err)
		}

		level = l
	}

	var formatter, err = parseLogFormatter(cfg.Format)
	if err != nil {
		return nil, err
	}

	var opts = log.Options{ //nolint:exhaustruct
		Level:     level,
		Formatter: formatter,
	}

	if cfg.TimestampFormat != "" {
		var layout, err = strftimeLayout(cfg.TimestampFormat)
		if err != nil {
			return nil, err
		}

		opts.ReportTimestamp = true
		opts.TimeFormat = layout
	}

	return log.NewWithOptions(w, opts), nil
}
