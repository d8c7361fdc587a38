package uhfmac

/*------------------------------------------------------------------
 *
 * Purpose:   	Send ESTTC commands to an EnduroSat UHF radio through
 *		the UDP radio interface.
 *
 * Usage:	esttc [options] command
 *
 *		command is one of the names from --list, or the text
 *		of any ES+ command, e.g. "ES+R2200".  The checksum and
 *		terminator are added here.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"
)

func ESTTCMain() {
	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	if err := ESTTC(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}

		fmt.Fprintf(os.Stderr, "esttc: %s\n", err)
		os.Exit(1) //nolint:gocritic
	}
}

func esttcCommandFromArgs(args []string, beaconPeriod int) (ESTTCCommand, error) {
	if beaconPeriod >= 0 {
		if len(args) > 0 {
			return "", errors.New("give either --beacon-period or a command, not both")
		}

		return ESTTCSetBeaconPeriod(uint32(beaconPeriod)), nil //nolint:gosec
	}

	if len(args) != 1 {
		return "", errors.New("exactly one command is needed, see --list")
	}

	if c, ok := LookupESTTCCommand(args[0]); ok {
		return c, nil
	}

	if strings.HasPrefix(strings.ToUpper(args[0]), "ES+") {
		return ESTTCCommand(strings.ToUpper(args[0])), nil
	}

	return "", fmt.Errorf("unknown command %q, see --list", args[0])
}

func ESTTC(ctx context.Context, args []string) error {
	var flags = pflag.NewFlagSet("esttc", pflag.ContinueOnError)

	var remote = flags.StringP("remote", "r", "127.0.0.1:52001", "UDP address of the radio interface.")
	var interval = flags.DurationP("interval", "i", time.Second, "Time between repeats.")
	var duration = flags.DurationP("duration", "d", 0, "Keep repeating for this long.  0 sends once.")
	var beaconPeriod = flags.IntP("beacon-period", "b", -1, "Set the beacon period, in seconds.")
	var list = flags.BoolP("list", "l", false, "List command names.")
	var version = flags.Bool("version", false, "Print version and exit.")

	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "esttc - Send ESTTC commands to an EnduroSat UHF radio.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: esttc [options] command\n\n")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return err
	}

	if *version {
		printVersion("esttc")
		return nil
	}

	if *list {
		for _, name := range ESTTCCommandNames() {
			var c, _ = LookupESTTCCommand(name)
			fmt.Printf("%-16s %s\n", name, c)
		}

		return nil
	}

	var cmd, err = esttcCommandFromArgs(flags.Args(), *beaconPeriod)
	if err != nil {
		return err
	}

	frame, err := EncodeESFrame(cmd.Bytes())
	if err != nil {
		return err
	}

	conn, err := net.Dial("udp", *remote)
	if err != nil {
		return fmt.Errorf("radio interface %s: %w", *remote, err)
	}
	defer conn.Close()

	var deadline = time.Now().Add(*duration)
	var ticker = time.NewTicker(max(*interval, time.Millisecond))
	defer ticker.Stop()

	for sent := 1; ; sent++ {
		if _, err := conn.Write(frame); err != nil {
			return fmt.Errorf("send to %s: %w", *remote, err)
		}

		fmt.Printf("Sent %s %08X to %s (%d)\n", cmd, cmd.Checksum(), *remote, sent)

		if *duration <= 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if now.After(deadline) {
				return nil
			}
		}
	}
}
