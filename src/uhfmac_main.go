package uhfmac

/*------------------------------------------------------------------
 *
 * Purpose:   	Main program for the MAC daemon.
 *
 * Description:	Ties it all together.  CSP packets come in from client
 *		applications over KISS (TCP and/or a pseudo terminal),
 *		go out through the MAC over the radio link, and packets
 *		reconstructed from the radio go back to every client.
 *
 *		Configuration comes from the YAML file with command line
 *		options applied on top.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"
)

func UHFMACMain() {
	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	if err := RunDaemon(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}

		fmt.Fprintf(os.Stderr, "uhfmac: %s\n", err)
		os.Exit(1) //nolint:gocritic
	}
}

// daemonOptions holds the command line.  Only options actually given
// override the configuration file.
type daemonOptions struct {
	flags *pflag.FlagSet

	configFile   string
	rfMode       int
	scheme       string
	noFrameCheck bool
	radio        string
	local        string
	remote       string
	device       string
	baud         int
	noPace       bool
	kissPort     int
	pty          bool
	dnsSD        bool
	logLevel     string
	logFormat    string
	packetLog    string
	version      bool
}

func parseDaemonArgs(args []string) (*daemonOptions, error) {
	var o = &daemonOptions{flags: pflag.NewFlagSet("uhfmac", pflag.ContinueOnError)} //nolint:exhaustruct
	var f = o.flags

	f.StringVarP(&o.configFile, "config", "c", "", "Configuration file.  Default is to search the usual places.")
	f.IntVarP(&o.rfMode, "rf-mode", "r", int(RFMode3), "RF mode, 0 to 7.")
	f.StringVarP(&o.scheme, "scheme", "e", NoFEC.String(), "Error correction scheme.")
	f.BoolVar(&o.noFrameCheck, "no-frame-check", false, "Don't append or check the frame check sequence.")
	f.StringVar(&o.radio, "radio", string(RadioLoopback), "Radio link: loopback, udp or serial.")
	f.StringVar(&o.local, "local", "", "UDP radio: local address.")
	f.StringVar(&o.remote, "remote", "", "UDP radio: remote address.")
	f.StringVar(&o.device, "device", "", "Serial radio: device, e.g. /dev/ttyUSB0.")
	f.IntVar(&o.baud, "baud", 0, "Serial radio: speed.")
	f.BoolVar(&o.noPace, "no-pace", false, "Send MPDUs back to back.")
	f.IntVarP(&o.kissPort, "kiss-port", "p", 0, "KISS TCP port for CSP clients.  0 disables.")
	f.BoolVar(&o.pty, "pty", false, "Also provide a KISS pseudo terminal.")
	f.BoolVar(&o.dnsSD, "dns-sd", false, "Announce the KISS TCP port with DNS-SD.")
	f.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error.")
	f.StringVar(&o.logFormat, "log-format", "", "text, logfmt or json.")
	f.StringVarP(&o.packetLog, "packet-log", "L", "", "Packet log file name, strftime pattern.")
	f.BoolVar(&o.version, "version", false, "Print version and exit.")

	f.Usage = func() {
		fmt.Fprintf(os.Stderr, "uhfmac - MAC layer for the UHF transparent mode radio link.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: uhfmac [options]\n\n")
		f.PrintDefaults()
	}

	if err := f.Parse(args); err != nil {
		return nil, err
	}

	if f.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", f.Args())
	}

	return o, nil
}

// apply overlays the options that were given on cfg.
func (o *daemonOptions) apply(cfg *DaemonConfig) error {
	var changed = o.flags.Changed

	if changed("rf-mode") {
		cfg.RFMode = RFModeNumber(o.rfMode)
	}

	if changed("scheme") {
		var s, err = ParseErrorCorrectionScheme(o.scheme)
		if err != nil {
			return err
		}

		cfg.ErrorCorrection = s
	}

	if changed("no-frame-check") {
		cfg.FrameCheck = !o.noFrameCheck
	}

	if changed("radio") {
		cfg.Radio.Type = RadioType(o.radio)
	}

	if changed("local") {
		cfg.Radio.Local = o.local
	}

	if changed("remote") {
		cfg.Radio.Remote = o.remote
	}

	if changed("device") {
		cfg.Radio.Device = o.device
	}

	if changed("baud") {
		cfg.Radio.Baud = o.baud
	}

	if changed("no-pace") {
		cfg.Radio.Pace = !o.noPace
	}

	if changed("kiss-port") {
		cfg.CSP.KISSPort = o.kissPort
	}

	if changed("pty") {
		cfg.CSP.PTY = o.pty
	}

	if changed("dns-sd") {
		cfg.CSP.DNSSD = o.dnsSD
	}

	if changed("log-level") {
		cfg.Log.Level = o.logLevel
	}

	if changed("log-format") {
		cfg.Log.Format = o.logFormat
	}

	if changed("packet-log") {
		cfg.Log.PacketLog = o.packetLog
	}

	return nil
}

// broadcaster is a client side interface that wants every packet received
// over the radio.
type broadcaster interface {
	Broadcast(packet []byte) error
}

type daemon struct {
	mac     *MAC
	service *Service
	kiss    *KISSServer
	pty     *KISSPseudoTerminal
	logger  *log.Logger

	packetLog *PacketLog
}

/*-------------------------------------------------------------------
 *
 * Name:        newDaemon
 *
 * Purpose:     Build everything from the configuration.
 *
 * Inputs:	kissAddr	- Listen address for the KISS TCP server,
 *				  "" for all interfaces on the configured port.
 *
 *--------------------------------------------------------------------*/

func newDaemon(ctx context.Context, cfg DaemonConfig, kissAddr string, logger *log.Logger) (*daemon, error) {
	var d = &daemon{logger: logger} //nolint:exhaustruct

	var mac, err = New(cfg.MACConfig(logger))
	if err != nil {
		return nil, err
	}

	d.mac = mac

	d.packetLog, err = NewPacketLog(cfg.Log.PacketLog, logger)
	if err != nil {
		return nil, err
	}

	var link Link

	// Undo whatever was set up so far.
	var fail = func(err error) (*daemon, error) {
		d.close()

		if link != nil {
			_ = link.Close()
		}

		return nil, err
	}

	link, err = OpenLink(cfg.Radio, logger)
	if err != nil {
		return fail(err)
	}

	d.service, err = NewService(ServiceConfig{
		MAC:         mac,
		Link:        link,
		Pace:        cfg.Radio.Pace,
		QueueLength: cfg.CSP.QueueLength,
		PacketLog:   d.packetLog,
		Logger:      logger,
	})
	if err != nil {
		return fail(err)
	}

	if cfg.CSP.KISSPort != 0 {
		if kissAddr == "" {
			kissAddr = fmt.Sprintf(":%d", cfg.CSP.KISSPort)
		}

		d.kiss, err = NewKISSServer(ctx, KISSServerConfig{Addr: kissAddr, Sender: d.service, Copy: cfg.CSP.KISSCopy, Logger: logger})
		if err != nil {
			return fail(err)
		}
	} else {
		logger.Info("Disabled KISS network client port")
	}

	if cfg.CSP.PTY {
		d.pty, err = OpenKISSPseudoTerminal(KISSPseudoTerminalConfig{Symlink: cfg.CSP.PTYSymlink, Sender: d.service, Logger: logger})
		if err != nil {
			return fail(err)
		}
	}

	if cfg.CSP.DNSSD && d.kiss != nil {
		if err := AnnounceKISSService(ctx, cfg.CSP.DNSSDName, d.kiss.Port(), logger); err != nil {
			logger.Error("DNS-SD announcement failed", "err", err)
		}
	}

	return d, nil
}

func (d *daemon) close() {
	if d.kiss != nil {
		_ = d.kiss.listener.Close()
	}

	if d.pty != nil {
		_ = d.pty.Close()
	}

	d.packetLog.Close()
}

func (d *daemon) clients() []broadcaster {
	var out []broadcaster

	if d.kiss != nil {
		out = append(out, d.kiss)
	}

	if d.pty != nil {
		out = append(out, d.pty)
	}

	return out
}

// run blocks until ctx is done or the radio link fails.
func (d *daemon) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	if d.kiss != nil {
		wg.Go(func() {
			if err := d.kiss.Serve(ctx); err != nil {
				d.logger.Error("KISS TCP server stopped", "err", err)
			}
		})
	}

	if d.pty != nil {
		wg.Go(func() {
			if err := d.pty.Serve(ctx); err != nil {
				d.logger.Error("KISS pseudo terminal stopped", "err", err)
			}
		})
	}

	var clients = d.clients()

	wg.Go(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case rp := <-d.service.Inbound():
				for _, c := range clients {
					if err := c.Broadcast(rp.Packet); err != nil {
						d.logger.Warn("Received packet not passed on", "err", err)
					}
				}
			}
		}
	})

	var err = d.service.Run(ctx)

	cancel()
	wg.Wait()
	d.close()

	var s = d.mac.Stats()
	d.logger.Info("MAC totals", "encoded", s.PacketsEncoded, "decoded", s.PacketsDecoded,
		"decode_failures", s.DecodeFailures, "corrected", s.SymbolsCorrected)

	return err
}

func RunDaemon(ctx context.Context, args []string) error {
	var opts, err = parseDaemonArgs(args)
	if err != nil {
		return err
	}

	if opts.version {
		printVersion("uhfmac")
		return nil
	}

	cfg, used, err := LoadDaemonConfig(opts.configFile)
	if err != nil {
		return err
	}

	if err := opts.apply(&cfg); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := NewLogger(cfg.Log, nil)
	if err != nil {
		return err
	}

	logger.Info("Starting", "config", IfThenElse(used == "", "(defaults)", used),
		"radio", cfg.Radio.Type, "kiss_port", cfg.CSP.KISSPort)

	d, err := newDaemon(ctx, cfg, "", logger)
	if err != nil {
		return err
	}

	return d.run(ctx)
}
