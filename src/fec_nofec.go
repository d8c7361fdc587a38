package uhfmac

// NoFECCodec is the identity code.  Encode and Decode copy their input.
type NoFECCodec struct {
	blockLength int
}

func (c *NoFECCodec) Scheme() ErrorCorrectionScheme {
	return NoFEC
}

func (c *NoFECCodec) BlockLength() int {
	return c.blockLength
}

func (c *NoFECCodec) CodewordLength(blockLength int) int {
	return blockLength
}

func (c *NoFECCodec) Encode(block []byte) ([]byte, error) {
	if err := checkBlock(c, block); err != nil {
		return nil, err
	}

	return append([]byte(nil), block...), nil
}

func (c *NoFECCodec) Decode(codeword []byte, _ float32) ([]byte, int, error) {
	if len(codeword) < 1 || len(codeword) > c.blockLength {
		return nil, 0, ErrCodewordLength
	}

	return append([]byte(nil), codeword...), 0, nil
}
