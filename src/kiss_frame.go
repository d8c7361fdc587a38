package uhfmac

/*------------------------------------------------------------------
 *
 * Purpose:   	Common code used by the serial radio link and the TCP and
 *		pseudo terminal CSP client interfaces.
 *
 * Description: The KISS TNC protocol is described in http://www.ka9q.net/papers/kiss.html
 *
 * 		Briefly, a frame is composed of
 *
 *			* FEND (0xC0)
 *			* Contents - with special escape sequences so a 0xc0
 *				byte in the data is not taken as end of frame.
 *			* FEND
 *
 *		The first byte of the contents holds the port in the
 *		upper nybble and the command in the lower nybble.  Only
 *		data frames (command 0) carry anything here: a CSP packet
 *		in the form CSP's own KISS interface uses, or one MPDU on
 *		the serial radio link.
 *
 *---------------------------------------------------------------*/

import (
	"bytes"
	"errors"
	"fmt"
)

const KISS_CMD_DATA_FRAME = 0
const KISS_CMD_SET_HARDWARE = 6
const KISS_CMD_END_KISS = 15

/*
 * Special characters used by SLIP protocol.
 */

const FEND = 0xC0
const FESC = 0xDB
const TFEND = 0xDC
const TFESC = 0xDD

type kissState int

const (
	KS_SEARCHING  kissState = iota // Looking for FEND to start KISS frame.
	KS_COLLECTING                  // In process of collecting KISS frame.
)

// Big enough for a CSP MTU packet with every byte escaped.
const MAX_KISS_LEN = 2*(CSPMaxTransferUnit+1) + 2

var (
	ErrKISSFrame    = errors.New("KISS protocol error")
	ErrKISSTooLong  = errors.New("KISS frame too long")
	ErrKISSNotData  = errors.New("not a KISS data frame")
	ErrKISSTooShort = errors.New("KISS message less than minimum length")
)

/*-------------------------------------------------------------------
 *
 * Name:        KISSEncapsulate
 *
 * Purpose:     Encapsulate a frame into KISS format.
 *
 * Inputs:	in	- First byte is the type indicator.  If it happens
 *			  to be FEND or FESC, it is escaped like any other byte.
 *
 * Returns:	FEND, escaped data, FEND.
 *		Absolute max length (extremely unlikely) will be twice input plus 2.
 *
 *-----------------------------------------------------------------*/

func KISSEncapsulate(in []byte) []byte {
	var buf bytes.Buffer

	buf.Grow(len(in) + 2)
	buf.WriteByte(FEND)

	for _, b := range in {
		switch b {
		case FEND:
			buf.WriteByte(FESC)
			buf.WriteByte(TFEND)
		case FESC:
			buf.WriteByte(FESC)
			buf.WriteByte(TFESC)
		default:
			buf.WriteByte(b)
		}
	}

	buf.WriteByte(FEND)

	return buf.Bytes()
}

// KISSDataFrame builds a complete data frame for port.
func KISSDataFrame(port int, payload []byte) []byte {
	var in = make([]byte, 0, 1+len(payload))
	in = append(in, byte(port&0x0f)<<4|KISS_CMD_DATA_FRAME)
	in = append(in, payload...)

	return KISSEncapsulate(in)
}

/*-------------------------------------------------------------------
 *
 * Name:        KISSUnwrap
 *
 * Purpose:     Extract original data from a KISS frame.
 *
 * Inputs:	in	- Optional FEND, escaped data, FEND.
 *
 * Returns:	The frame without escapes or FENDs, type indicator first.
 *
 *-----------------------------------------------------------------*/

func KISSUnwrap(in []byte) ([]byte, error) {
	if len(in) < 2 {
		// Need at least the "type indicator" byte and FEND.
		return nil, ErrKISSTooShort
	}

	if in[len(in)-1] != FEND {
		return nil, fmt.Errorf("%w: frame should end with FEND", ErrKISSFrame)
	}
	in = in[:len(in)-1]

	if in[0] == FEND {
		in = in[1:] // Skip over optional leading FEND
	}

	var escapedMode = false
	var buf bytes.Buffer
	for _, b := range in {
		if b == FEND {
			return nil, fmt.Errorf("%w: FEND in the middle of a frame", ErrKISSFrame)
		}

		if escapedMode {
			switch b {
			case TFESC:
				buf.WriteByte(FESC)
			case TFEND:
				buf.WriteByte(FEND)
			default:
				return nil, fmt.Errorf("%w: found 0x%02x after FESC", ErrKISSFrame, b)
			}
			escapedMode = false
		} else if b == FESC {
			escapedMode = true
		} else {
			buf.WriteByte(b)
		}
	}

	return buf.Bytes(), nil
}

// SplitKISSDataFrame separates an unwrapped frame into port and payload.
func SplitKISSDataFrame(frame []byte) (int, []byte, error) {
	if len(frame) < 1 {
		return 0, nil, ErrKISSTooShort
	}

	if frame[0]&0x0f != KISS_CMD_DATA_FRAME {
		return 0, nil, fmt.Errorf("%w: command %d", ErrKISSNotData, frame[0]&0x0f)
	}

	return int(frame[0] >> 4), frame[1:], nil
}

// KISSDecoder accumulates a byte stream into KISS frames.
type KISSDecoder struct {
	state kissState
	msg   []byte // Leading FEND and escapes included.
	Noise int    // Bytes seen outside any frame.
}

/*-------------------------------------------------------------------
 *
 * Name:        Feed
 *
 * Purpose:     Process one byte from a KISS stream.
 *
 * Returns:	The unwrapped frame, type indicator first, when ch ends one.
 *		An error for a frame that was complete but invalid.
 *
 * Description:	Back to back FENDs are allowed and simply mark the
 *		start of the next frame.  Anything between frames is noise.
 *
 *-----------------------------------------------------------------*/

func (kf *KISSDecoder) Feed(ch byte) ([]byte, error) {
	switch kf.state {
	case KS_SEARCHING:
		if ch == FEND {
			kf.msg = append(kf.msg[:0], ch)
			kf.state = KS_COLLECTING
		} else {
			kf.Noise++
		}

	case KS_COLLECTING:
		if ch == FEND && len(kf.msg) == 1 {
			// Empty frame.  Treat as the start of the next.
			return nil, nil
		}

		kf.msg = append(kf.msg, ch)

		if ch == FEND {
			kf.state = KS_SEARCHING

			var frame, err = KISSUnwrap(kf.msg)
			kf.msg = kf.msg[:0]

			return frame, err
		}

		if len(kf.msg) >= MAX_KISS_LEN {
			kf.state = KS_SEARCHING
			kf.msg = kf.msg[:0]

			return nil, ErrKISSTooLong
		}
	}

	return nil, nil
}

// Write feeds a chunk of bytes, calling handle for every complete frame.
// Invalid frames are counted and skipped.
func (kf *KISSDecoder) Write(p []byte, handle func(frame []byte)) (bad int) {
	for _, ch := range p {
		var frame, err = kf.Feed(ch)
		if err != nil {
			bad++
			continue
		}

		if frame != nil {
			handle(frame)
		}
	}

	return bad
}
