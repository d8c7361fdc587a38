package uhfmac

/*------------------------------------------------------------------
 *
 * Purpose:   	Read the daemon configuration file.
 *
 * Description:	YAML, for example:
 *
 *		rf_mode: 3
 *		error_correction: rs255-223
 *		frame_check: true
 *		radio:
 *		  type: udp
 *		  local: ":52002"
 *		  remote: "127.0.0.1:52001"
 *		csp:
 *		  kiss_port: 8001
 *		log:
 *		  level: info
 *
 *		Unknown keys are an error rather than silently ignored,
 *		so a typo doesn't leave a setting at its default.
 *		Command line options are applied afterwards.
 *
 *---------------------------------------------------------------*/

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

type RadioConfig struct {
	Type RadioType `yaml:"type"`

	// udp
	Local  string `yaml:"local"`
	Remote string `yaml:"remote"`

	// serial
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`

	// Wait the RF mode's minimum packet interval between MPDUs.
	Pace bool `yaml:"pace"`
}

type CSPConfig struct {
	KISSPort   int    `yaml:"kiss_port"` // 0 disables
	KISSCopy   bool   `yaml:"kiss_copy"`
	PTY        bool   `yaml:"pty"`
	PTYSymlink string `yaml:"pty_symlink"`
	DNSSD      bool   `yaml:"dns_sd"`
	DNSSDName  string `yaml:"dns_sd_name"`

	QueueLength int `yaml:"queue_length"`
}

type DaemonConfig struct {
	RFMode            RFModeNumber          `yaml:"rf_mode"`
	ErrorCorrection   ErrorCorrectionScheme `yaml:"error_correction"`
	FrameCheck        bool                  `yaml:"frame_check"`
	MPDUPayloadLength int                   `yaml:"mpdu_payload_length"` // 0 for the RF mode's

	Radio RadioConfig `yaml:"radio"`
	CSP   CSPConfig   `yaml:"csp"`
	Log   LogConfig   `yaml:"log"`
}

var ErrConfig = errors.New("configuration error")

// Default file locations, in search order.
var configSearchLocations = []string{
	"uhfmac.yaml", // Current working directory
	"/usr/local/etc/uhfmac.yaml",
	"/etc/uhfmac/uhfmac.yaml",
	"/etc/uhfmac.yaml",
}

func DefaultDaemonConfig() DaemonConfig {
	return DaemonConfig{
		RFMode:          RFMode3,
		ErrorCorrection: NoFEC,
		FrameCheck:      true,
		Radio: RadioConfig{ //nolint:exhaustruct
			Type:   RadioLoopback,
			Local:  ":52002",
			Remote: "127.0.0.1:52001",
			Baud:   115200,
			Pace:   true,
		},
		CSP: CSPConfig{ //nolint:exhaustruct
			KISSPort:    8001,
			PTYSymlink:  DEFAULT_KISS_PT_SYMLINK,
			QueueLength: defaultQueueLength,
		},
		Log: LogConfig{ //nolint:exhaustruct
			Level:  "info",
			Format: "text",
		},
	}
}

// ParseDaemonConfig reads YAML over the values already in cfg, so keys
// missing from the file keep them.
func ParseDaemonConfig(r io.Reader, cfg *DaemonConfig) error {
	var dec = yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}

	return nil
}

/*------------------------------------------------------------------
 *
 * Function:	LoadDaemonConfig
 *
 * Inputs:	path	- Configuration file.  Empty to try the usual
 *			  locations, in which case having none is fine.
 *
 * Returns:	Defaults overlaid with the file, and the file name used.
 *
 *------------------------------------------------------------------*/

func LoadDaemonConfig(path string) (DaemonConfig, string, error) {
	var cfg = DefaultDaemonConfig()

	var locations = []string{path}
	if path == "" {
		locations = configSearchLocations
	}

	for _, location := range locations {
		var data, err = os.ReadFile(location)
		if err != nil {
			if path == "" && errors.Is(err, os.ErrNotExist) {
				continue
			}

			return cfg, location, fmt.Errorf("%w: %w", ErrConfig, err)
		}

		if err := ParseDaemonConfig(bytes.NewReader(data), &cfg); err != nil {
			return cfg, location, fmt.Errorf("%s: %w", location, err)
		}

		return cfg, location, nil
	}

	return cfg, "", nil
}

func (c DaemonConfig) Validate() error {
	if _, err := LookupRFMode(c.RFMode); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}

	if c.MPDUPayloadLength < 0 || c.MPDUPayloadLength > esMaxData {
		return fmt.Errorf("%w: mpdu_payload_length %d must be 1 to %d, or 0 for the default", ErrConfig, c.MPDUPayloadLength, esMaxData)
	}

	switch c.Radio.Type {
	case RadioLoopback:
	case RadioUDP:
		if c.Radio.Remote == "" {
			return fmt.Errorf("%w: udp radio needs a remote address", ErrConfig)
		}
	case RadioSerial:
		if c.Radio.Device == "" {
			return fmt.Errorf("%w: serial radio needs a device", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown radio type %q", ErrConfig, c.Radio.Type)
	}

	if c.CSP.KISSPort < 0 || c.CSP.KISSPort > 65535 {
		return fmt.Errorf("%w: kiss_port %d", ErrConfig, c.CSP.KISSPort)
	}

	if c.CSP.DNSSD && c.CSP.KISSPort == 0 {
		return fmt.Errorf("%w: dns_sd needs kiss_port", ErrConfig)
	}

	if c.CSP.QueueLength < 0 {
		return fmt.Errorf("%w: queue_length %d", ErrConfig, c.CSP.QueueLength)
	}

	if _, err := parseLogFormatter(c.Log.Format); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}

	return nil
}

func (c DaemonConfig) MACConfig(logger *log.Logger) Config {
	return Config{
		ErrorCorrection:   c.ErrorCorrection,
		RFMode:            c.RFMode,
		DisableFrameCheck: !c.FrameCheck,
		MPDUPayloadLength: c.MPDUPayloadLength,
		Format:            CSPFormat{},
		Logger:            logger,
	}
}

// OpenLink opens the configured radio link.
func OpenLink(c RadioConfig, logger *log.Logger) (Link, error) { //nolint:ireturn
	switch c.Type {
	case RadioLoopback:
		return NewLoopbackLink(64), nil
	case RadioUDP:
		return NewUDPLink(UDPLinkConfig{Local: c.Local, Remote: c.Remote, Logger: logger})
	case RadioSerial:
		return OpenSerialLink(c.Device, c.Baud, logger)
	default:
		return nil, fmt.Errorf("%w: unknown radio type %q", ErrConfig, c.Type)
	}
}
