package uhfmac

/*------------------------------------------------------------------
 *
 * Purpose:	Forward error correction codec abstraction.
 *
 * Description:	The MAC never does any coding math itself.  It only
 *		knows that a codec turns a block of up to BlockLength
 *		uncoded bytes into a codeword of CodewordLength bytes
 *		and back again.
 *
 *		All codecs here are systematic: the uncoded block appears,
 *		unchanged, at the start of its codeword.  The receiver
 *		relies on that to peek at the packet length before the
 *		first codeword has been corrected.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorCorrectionScheme int

const (
	NoFEC ErrorCorrectionScheme = iota
	Repetition3
	ReedSolomon255_239
	ReedSolomon255_223
	ReedSolomon255_191
)

var schemeNames = map[ErrorCorrectionScheme]string{
	NoFEC:              "none",
	Repetition3:        "repetition3",
	ReedSolomon255_239: "rs255-239",
	ReedSolomon255_223: "rs255-223",
	ReedSolomon255_191: "rs255-191",
}

func (s ErrorCorrectionScheme) String() string {
	var name, ok = schemeNames[s]
	if !ok {
		return fmt.Sprintf("ErrorCorrectionScheme(%d)", int(s))
	}

	return name
}

// ParseErrorCorrectionScheme accepts the configuration names printed by String.
func ParseErrorCorrectionScheme(name string) (ErrorCorrectionScheme, error) {
	for s, n := range schemeNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return s, nil
		}
	}

	return NoFEC, fmt.Errorf("%w: %q", ErrUnknownScheme, name)
}

// ErrorCorrectionSchemes lists every scheme in enumeration order.
func ErrorCorrectionSchemes() []ErrorCorrectionScheme {
	return []ErrorCorrectionScheme{NoFEC, Repetition3, ReedSolomon255_239, ReedSolomon255_223, ReedSolomon255_191}
}

func (s ErrorCorrectionScheme) MarshalText() ([]byte, error) {
	if _, ok := schemeNames[s]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownScheme, int(s))
	}

	return []byte(s.String()), nil
}

func (s *ErrorCorrectionScheme) UnmarshalText(text []byte) error {
	var parsed, err = ParseErrorCorrectionScheme(string(text))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}

var (
	ErrUnknownScheme      = errors.New("unknown error correction scheme")
	ErrUncorrectable      = errors.New("uncorrectable codeword")
	ErrBlockLength        = errors.New("block length out of range for codec")
	ErrCodewordLength     = errors.New("codeword length out of range for codec")
	ErrInvalidMPDULength  = errors.New("invalid MPDU payload length")
	ErrSchemeNotSupported = errors.New("scheme not supported with this MPDU payload length")
)

// Codec encodes and decodes single blocks for one coding scheme.
type Codec interface {
	Scheme() ErrorCorrectionScheme

	// BlockLength is the number of uncoded bytes carried by a full codeword.
	BlockLength() int

	// CodewordLength is the number of coded bytes produced for a block of
	// blockLength bytes, 1 <= blockLength <= BlockLength().
	CodewordLength(blockLength int) int

	// Encode is deterministic and systematic.  A block shorter than
	// BlockLength produces a shortened codeword.
	Encode(block []byte) ([]byte, error)

	// Decode returns the uncoded block and the number of symbols corrected.
	// The SNR estimate is a hint; codecs that cannot use it ignore it.
	Decode(codeword []byte, snrEstimate float32) ([]byte, int, error)
}

/*-------------------------------------------------------------------
 *
 * Name:	NewCodec
 *
 * Purpose:	Map a scheme selector to a codec.
 *
 * Inputs:	scheme			- Which code.
 *
 *		mpduPayloadLength	- Radio payload size.  The identity and
 *					  repetition codes use it as their
 *					  block length so one uncoded block
 *					  lines up with one MPDU.
 *
 *---------------------------------------------------------------*/

func NewCodec(scheme ErrorCorrectionScheme, mpduPayloadLength int) (Codec, error) { //nolint:ireturn
	if mpduPayloadLength <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMPDULength, mpduPayloadLength)
	}

	switch scheme {
	case NoFEC:
		return &NoFECCodec{blockLength: mpduPayloadLength}, nil
	case Repetition3:
		return &RepetitionCodec{blockLength: mpduPayloadLength}, nil
	case ReedSolomon255_239:
		return newReedSolomonCodec(scheme, 16)
	case ReedSolomon255_223:
		return newReedSolomonCodec(scheme, 32)
	case ReedSolomon255_191:
		return newReedSolomonCodec(scheme, 64)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownScheme, int(scheme))
	}
}

func checkBlock(c Codec, block []byte) error {
	if len(block) < 1 || len(block) > c.BlockLength() {
		return fmt.Errorf("%w: %s got %d bytes, want 1..%d", ErrBlockLength, c.Scheme(), len(block), c.BlockLength())
	}

	return nil
}
