package uhfmac

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSchemeNames(t *testing.T) {
	for _, s := range ErrorCorrectionSchemes() {
		var parsed, err = ParseErrorCorrectionScheme(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	var parsed, err = ParseErrorCorrectionScheme(" RS255-223 ")
	require.NoError(t, err)
	assert.Equal(t, ReedSolomon255_223, parsed)

	_, err = ParseErrorCorrectionScheme("turbo")
	require.ErrorIs(t, err, ErrUnknownScheme)

	assert.Equal(t, "ErrorCorrectionScheme(42)", ErrorCorrectionScheme(42).String())
}

func TestNewCodecRejects(t *testing.T) {
	var _, err = NewCodec(NoFEC, 0)
	require.ErrorIs(t, err, ErrInvalidMPDULength)

	_, err = NewCodec(ErrorCorrectionScheme(99), 128)
	require.ErrorIs(t, err, ErrUnknownScheme)
}

func TestCodecGeometry(t *testing.T) {
	var tests = []struct {
		scheme   ErrorCorrectionScheme
		k        int
		n        int
		shortK   int
		shortLen int
	}{
		{NoFEC, 128, 128, 10, 10},
		{Repetition3, 128, 384, 10, 30},
		{ReedSolomon255_239, 239, 255, 10, 26},
		{ReedSolomon255_223, 223, 255, 10, 42},
		{ReedSolomon255_191, 191, 255, 10, 74},
	}

	for _, tt := range tests {
		t.Run(tt.scheme.String(), func(t *testing.T) {
			var c, err = NewCodec(tt.scheme, 128)
			require.NoError(t, err)

			assert.Equal(t, tt.scheme, c.Scheme())
			assert.Equal(t, tt.k, c.BlockLength())
			assert.Equal(t, tt.n, c.CodewordLength(c.BlockLength()))
			assert.Equal(t, tt.shortLen, c.CodewordLength(tt.shortK))
		})
	}
}

func TestNoFECIsIdentity(t *testing.T) {
	var c, _ = NewCodec(NoFEC, 128)

	var block = []byte("hello, satellite")
	var encoded, err = c.Encode(block)
	require.NoError(t, err)
	assert.Equal(t, block, encoded)

	var decoded, corrected, decErr = c.Decode(encoded, -3.5)
	require.NoError(t, decErr)
	assert.Equal(t, block, decoded)
	assert.Zero(t, corrected)

	_, err = c.Encode(nil)
	require.ErrorIs(t, err, ErrBlockLength)

	_, err = c.Encode(make([]byte, 129))
	require.ErrorIs(t, err, ErrBlockLength)
}

func TestRepetitionMajorityVote(t *testing.T) {
	var c, _ = NewCodec(Repetition3, 128)

	var block = []byte{0x00, 0xff, 0x5a}
	var codeword, err = c.Encode(block)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xff, 0x5a, 0x00, 0xff, 0x5a, 0x00, 0xff, 0x5a}, codeword)

	// Damage a different copy of each byte.
	codeword[0] = 0xff
	codeword[4] = 0x00
	codeword[8] = 0xa5

	var decoded, corrected, decErr = c.Decode(codeword, 0)
	require.NoError(t, decErr)
	assert.Equal(t, block, decoded)
	assert.Equal(t, 3, corrected)

	_, _, decErr = c.Decode(codeword[:8], 0)
	require.ErrorIs(t, decErr, ErrCodewordLength)
}

func TestReedSolomonSystematic(t *testing.T) {
	for _, s := range []ErrorCorrectionScheme{ReedSolomon255_239, ReedSolomon255_223, ReedSolomon255_191} {
		var c, _ = NewCodec(s, 128)

		var block = []byte("The quick brown fox jumps over the lazy dog")
		var codeword, err = c.Encode(block)
		require.NoError(t, err)
		assert.Equal(t, block, codeword[:len(block)], s.String())
		assert.Len(t, codeword, c.CodewordLength(len(block)))
	}
}

func TestReedSolomonCorrectsUpToHalfParity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var scheme = rapid.SampledFrom([]ErrorCorrectionScheme{ReedSolomon255_239, ReedSolomon255_223, ReedSolomon255_191}).Draw(t, "scheme")
		var c, _ = NewCodec(scheme, 128)
		var rsc = c.(*ReedSolomonCodec) //nolint:forcetypeassert

		var block = rapid.SliceOfN(rapid.Byte(), 1, c.BlockLength()).Draw(t, "block")
		var codeword, err = c.Encode(block)
		require.NoError(t, err)

		var maxErrors = min(rsc.CheckSymbols()/2, len(codeword))
		var positions = rapid.SliceOfNDistinct(rapid.IntRange(0, len(codeword)-1), 0, maxErrors, rapid.ID[int]).Draw(t, "positions")

		var damaged = append([]byte(nil), codeword...)
		for _, p := range positions {
			damaged[p] ^= rapid.ByteRange(1, 255).Draw(t, "flip")
		}

		var decoded, corrected, decErr = c.Decode(damaged, 0)
		require.NoError(t, decErr)
		assert.Equal(t, block, decoded)
		assert.Equal(t, len(positions), corrected)
	})
}

func TestReedSolomonTooManyErrors(t *testing.T) {
	var c, _ = NewCodec(ReedSolomon255_239, 128)

	var block = make([]byte, 239)
	for i := range block {
		block[i] = byte(i * 7)
	}

	var codeword, _ = c.Encode(block)

	// 40 errors is far beyond the 8 this code can fix.
	for i := range 40 {
		codeword[i*6] ^= 0x55
	}

	var decoded, _, err = c.Decode(codeword, 0)
	if err == nil {
		// A miscorrection onto another codeword is possible, but never
		// back onto the original.
		assert.NotEqual(t, block, decoded)
	} else {
		require.ErrorIs(t, err, ErrUncorrectable)
	}
}

func TestReedSolomonRejectsBadLengths(t *testing.T) {
	var c, _ = NewCodec(ReedSolomon255_223, 128)

	var _, _, err = c.Decode(make([]byte, 32), 0)
	require.ErrorIs(t, err, ErrCodewordLength)

	_, _, err = c.Decode(make([]byte, 256), 0)
	require.ErrorIs(t, err, ErrCodewordLength)

	_, err = c.Encode(make([]byte, 224))
	require.ErrorIs(t, err, ErrBlockLength)
}

func TestReedSolomonTablesAreShared(t *testing.T) {
	var a, _ = reedSolomonFor(32)
	var b, _ = reedSolomonFor(32)
	assert.Same(t, a, b)

	var _, err = newReedSolomon(8, 0x100, 1, 1, 16)
	require.ErrorIs(t, err, errRSParameters)
}

func TestReedSolomonKnownParity(t *testing.T) {
	// Shortened RS(255,239), generator roots alpha^1..alpha^16 over 0x11d.
	var c, _ = NewCodec(ReedSolomon255_239, 128)

	var codeword, err = c.Encode([]byte("uhfmac"))
	require.NoError(t, err)
	assert.Equal(t, "uhfmac", string(codeword[:6]))
	assert.Equal(t, "86d445b766b34b44f0dbca2800bad36f", hex.EncodeToString(codeword[6:]))
}
