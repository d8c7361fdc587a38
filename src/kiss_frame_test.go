package uhfmac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestKISSEncapsulateEscapes(t *testing.T) {
	var out = KISSEncapsulate([]byte{0x00, FEND, 0x01, FESC, 0x02})
	assert.Equal(t, []byte{FEND, 0x00, FESC, TFEND, 0x01, FESC, TFESC, 0x02, FEND}, out)
}

func TestKISSUnwrapRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var in = rapid.SliceOfN(rapid.Byte(), 1, 600).Draw(t, "in")

		var out, err = KISSUnwrap(KISSEncapsulate(in))
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})
}

func TestKISSUnwrapErrors(t *testing.T) {
	var _, err = KISSUnwrap([]byte{FEND})
	require.ErrorIs(t, err, ErrKISSTooShort)

	_, err = KISSUnwrap([]byte{FEND, 0x00, 0x01})
	require.ErrorIs(t, err, ErrKISSFrame)

	_, err = KISSUnwrap([]byte{FEND, 0x00, FESC, 0x01, FEND})
	require.ErrorIs(t, err, ErrKISSFrame)

	_, err = KISSUnwrap([]byte{FEND, 0x00, FEND, 0x01, FEND})
	require.ErrorIs(t, err, ErrKISSFrame)

	// Leading FEND is optional.
	var out, _ = KISSUnwrap([]byte{0x00, 0x41, FEND})
	assert.Equal(t, []byte{0x00, 0x41}, out)
}

func TestKISSDataFrame(t *testing.T) {
	var frame = KISSDataFrame(2, []byte{0xC0, 0x55})
	assert.Equal(t, []byte{FEND, 0x20, FESC, TFEND, 0x55, FEND}, frame)

	var unwrapped, err = KISSUnwrap(frame)
	require.NoError(t, err)

	var port, payload, serr = SplitKISSDataFrame(unwrapped)
	require.NoError(t, serr)
	assert.Equal(t, 2, port)
	assert.Equal(t, []byte{0xC0, 0x55}, payload)

	_, _, serr = SplitKISSDataFrame([]byte{0x06, 0x01})
	require.ErrorIs(t, serr, ErrKISSNotData)
}

func TestKISSDecoderStream(t *testing.T) {
	var stream = []byte("noise\r")
	stream = append(stream, FEND) // extra FEND, empty frame
	stream = append(stream, KISSDataFrame(0, []byte("one"))...)
	stream = append(stream, KISSDataFrame(0, []byte{FEND, FESC})...)
	stream = append(stream, FEND, 0x00, FESC, 0x07, FEND) // bad escape
	stream = append(stream, KISSDataFrame(1, []byte("two"))...)

	var kf KISSDecoder
	var frames [][]byte
	var bad = kf.Write(stream, func(frame []byte) {
		frames = append(frames, frame)
	})

	assert.Equal(t, 1, bad)
	assert.Equal(t, 6, kf.Noise)
	assert.Equal(t, [][]byte{
		append([]byte{0x00}, "one"...),
		{0x00, FEND, FESC},
		append([]byte{0x10}, "two"...),
	}, frames)
}

func TestKISSDecoderTooLong(t *testing.T) {
	var kf KISSDecoder

	var _, err = kf.Feed(FEND)
	require.NoError(t, err)

	for range MAX_KISS_LEN - 2 {
		_, err = kf.Feed(0x11)
		require.NoError(t, err)
	}

	_, err = kf.Feed(0x11)
	require.ErrorIs(t, err, ErrKISSTooLong)
}
