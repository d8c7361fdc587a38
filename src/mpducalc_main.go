package uhfmac

/*------------------------------------------------------------------
 *
 * Purpose:   	Show how packets are laid out in MPDUs.
 *
 * Usage:	mpducalc [options] [packet-length ...]
 *
 *		With no lengths, just the table of error correction
 *		schemes.  Otherwise, for each length, how many MPDUs
 *		each scheme needs and how long they take to send.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

func MPDUCalcMain() {
	if err := MPDUCalc(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}

		fmt.Fprintf(os.Stderr, "mpducalc: %s\n", err)
		os.Exit(1)
	}
}

func MPDUCalc(args []string) error {
	var flags = pflag.NewFlagSet("mpducalc", pflag.ContinueOnError)

	var schemeName = flags.StringP("scheme", "e", "", "Only this error correction scheme.")
	var mpduLength = flags.IntP("mpdu-length", "m", TransparentModePayloadLength, "MPDU payload length.")
	var rfMode = flags.IntP("rf-mode", "r", int(RFMode3), "RF mode, 0 to 7, for air time.")
	var noFrameCheck = flags.Bool("no-frame-check", false, "Packets carry no frame check.")
	var version = flags.Bool("version", false, "Print version and exit.")

	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "mpducalc - Show how packets are laid out in MPDUs.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: mpducalc [options] [packet-length ...]\n\n")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return err
	}

	if *version {
		printVersion("mpducalc")
		return nil
	}

	var mode, err = LookupRFMode(RFModeNumber(*rfMode))
	if err != nil {
		return err
	}

	var schemes = ErrorCorrectionSchemes()
	if *schemeName != "" {
		var s, err = ParseErrorCorrectionScheme(*schemeName)
		if err != nil {
			return err
		}

		schemes = []ErrorCorrectionScheme{s}
	}

	var lengths []int
	for _, a := range flags.Args() {
		var n, err = strconv.Atoi(a)
		if err != nil || n < 1 || n > CSPMaxTransferUnit {
			return fmt.Errorf("packet length %q must be 1 to %d", a, CSPMaxTransferUnit)
		}

		lengths = append(lengths, n)
	}

	var descriptors = make([]SchemeDescriptor, 0, len(schemes))
	for _, s := range schemes {
		var codec, err = NewCodec(s, *mpduLength)
		if err != nil {
			return err
		}

		descriptors = append(descriptors, NewSchemeDescriptor(codec, *mpduLength, !*noFrameCheck))
	}

	fmt.Printf("MPDU payload %d bytes, frame check %s, %s\n\n", *mpduLength, IfThenElse(*noFrameCheck, "off", "on"), mode)

	fmt.Printf("%-12s %6s %9s %15s %11s\n", "scheme", "block", "codeword", "MPDUs/codeword", "bytes/MPDU")

	for _, d := range descriptors {
		fmt.Printf("%-12s %6d %9d %15d %11d\n", d.Scheme(), d.BlockLength(), d.CodewordLength(),
			d.FragmentsPerCodeword(), d.UncodedBytesPerFragment())
	}

	var interval = mode.MinPacketInterval()

	for _, n := range lengths {
		fmt.Printf("\n")

		for _, d := range descriptors {
			var mpdus = d.NumMPDUs(n)
			var airTime = time.Duration(mpdus) * mode.AirTime(*mpduLength)
			var paced = time.Duration(mpdus) * interval

			fmt.Printf("%s: %d bytes in %d MPDUs (%d coded bytes), %v on air, %v paced\n",
				d.Scheme(), n, mpdus, d.CodedLength(n), airTime.Round(time.Millisecond), paced)
		}
	}

	return nil
}
