package uhfmac

import "fmt"

// RepetitionCodec sends every block three times (block|block|block) and
// recovers each bit by majority vote.  The first copy is the block itself,
// which keeps the code systematic.
type RepetitionCodec struct {
	blockLength int
}

const repetitionFactor = 3

func (c *RepetitionCodec) Scheme() ErrorCorrectionScheme {
	return Repetition3
}

func (c *RepetitionCodec) BlockLength() int {
	return c.blockLength
}

func (c *RepetitionCodec) CodewordLength(blockLength int) int {
	return repetitionFactor * blockLength
}

func (c *RepetitionCodec) Encode(block []byte) ([]byte, error) {
	if err := checkBlock(c, block); err != nil {
		return nil, err
	}

	var codeword = make([]byte, 0, repetitionFactor*len(block))
	for range repetitionFactor {
		codeword = append(codeword, block...)
	}

	return codeword, nil
}

/*-------------------------------------------------------------------
 *
 * Name:	Decode
 *
 * Purpose:	Majority vote across the three copies.
 *
 * Returns:	The block and the number of bytes where at least one
 *		copy disagreed with the vote.
 *
 * Description:	A bit is set when it is set in at least two copies:
 *		(a & b) | (a & c) | (b & c).  The code never reports
 *		failure.  Two copies damaged the same way simply win.
 *
 *---------------------------------------------------------------*/

func (c *RepetitionCodec) Decode(codeword []byte, _ float32) ([]byte, int, error) {
	if len(codeword) == 0 || len(codeword)%repetitionFactor != 0 || len(codeword)/repetitionFactor > c.blockLength {
		return nil, 0, fmt.Errorf("%w: %d bytes", ErrCodewordLength, len(codeword))
	}

	var n = len(codeword) / repetitionFactor
	var a, b, d = codeword[:n], codeword[n : 2*n], codeword[2*n:]

	var block = make([]byte, n)
	var corrected = 0
	for i := range n {
		block[i] = (a[i] & b[i]) | (a[i] & d[i]) | (b[i] & d[i])
		if a[i] != b[i] || a[i] != d[i] {
			corrected++
		}
	}

	return block, corrected, nil
}
