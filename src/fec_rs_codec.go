package uhfmac

import (
	"fmt"
	"sync"
)

// Reed-Solomon parameters shared by every RS scheme.  Same set as FX.25.
const (
	rsSymbolSize = 8
	rsGFPoly     = 0x11d
	rsFCR        = 1
	rsPrim       = 1
	rsBlockSize  = 255
)

var rsTables sync.Map // nroots -> *reedSolomon

func reedSolomonFor(nroots int) (*reedSolomon, error) {
	if rs, ok := rsTables.Load(nroots); ok {
		return rs.(*reedSolomon), nil //nolint:forcetypeassert
	}

	var rs, err = newReedSolomon(rsSymbolSize, rsGFPoly, rsFCR, rsPrim, nroots)
	if err != nil {
		return nil, err
	}

	var actual, _ = rsTables.LoadOrStore(nroots, rs)

	return actual.(*reedSolomon), nil //nolint:forcetypeassert
}

// ReedSolomonCodec is RS(255, 255-nroots), shortened as needed for the
// final block of a packet.
type ReedSolomonCodec struct {
	scheme ErrorCorrectionScheme
	rs     *reedSolomon
}

func newReedSolomonCodec(scheme ErrorCorrectionScheme, nroots int) (*ReedSolomonCodec, error) {
	var rs, err = reedSolomonFor(nroots)
	if err != nil {
		return nil, err
	}

	return &ReedSolomonCodec{scheme: scheme, rs: rs}, nil
}

func (c *ReedSolomonCodec) Scheme() ErrorCorrectionScheme {
	return c.scheme
}

func (c *ReedSolomonCodec) BlockLength() int {
	return c.rs.nn - c.rs.nroots
}

func (c *ReedSolomonCodec) CodewordLength(blockLength int) int {
	return blockLength + c.rs.nroots
}

// CheckSymbols is the number of parity bytes appended to each block.
func (c *ReedSolomonCodec) CheckSymbols() int {
	return c.rs.nroots
}

func (c *ReedSolomonCodec) Encode(block []byte) ([]byte, error) {
	if err := checkBlock(c, block); err != nil {
		return nil, err
	}

	var k = c.BlockLength()

	// Virtual leading zeros do not change the parity.
	var padded = make([]byte, k)
	copy(padded[k-len(block):], block)

	var codeword = make([]byte, len(block)+c.rs.nroots)
	copy(codeword, block)
	c.rs.encode(padded, codeword[len(block):])

	return codeword, nil
}

/*-------------------------------------------------------------------
 *
 * Name:	Decode
 *
 * Purpose:	Correct one codeword, possibly shortened.
 *
 * Inputs:	codeword	- Data followed by nroots parity bytes.
 *
 * Returns:	Corrected data, number of symbols corrected.
 *
 * Description:	The codeword is placed at the end of a full nn symbol
 *		block with zeros in front.  The decoder doesn't know those
 *		zeros are special, so it could "correct" one of them.
 *		That can only mean the received codeword was too damaged,
 *		so it is reported as uncorrectable.
 *
 *---------------------------------------------------------------*/

func (c *ReedSolomonCodec) Decode(codeword []byte, _ float32) ([]byte, int, error) {
	var n = len(codeword)
	if n <= c.rs.nroots || n > c.rs.nn {
		return nil, 0, fmt.Errorf("%w: %s got %d bytes", ErrCodewordLength, c.scheme, n)
	}

	var pad = c.rs.nn - n
	var block = make([]byte, c.rs.nn)
	copy(block[pad:], codeword)

	var count, loc = c.rs.decode(block)
	if count < 0 {
		return nil, 0, ErrUncorrectable
	}

	for _, k := range loc {
		if k < pad {
			return nil, 0, fmt.Errorf("%w: correction at position %d inside %d bytes of padding", ErrUncorrectable, k, pad)
		}
	}

	return block[pad : pad+n-c.rs.nroots], count, nil
}
