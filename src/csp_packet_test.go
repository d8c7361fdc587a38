package uhfmac

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSPIDPacking(t *testing.T) {
	var id = CSPID{Priority: CSPPriorityNormal, Source: 1, Dest: 5, DestPort: 10, SrcPort: 20, Flags: 0}

	var v, err = id.Encode()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x82529400), v)
	assert.Equal(t, id, DecodeCSPID(v))

	var all = CSPID{Priority: 3, Source: 31, Dest: 31, DestPort: 63, SrcPort: 63, Flags: 0xff}
	v, err = all.Encode()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xffffffff), v)

	_, err = CSPID{Source: 32}.Encode() //nolint:exhaustruct
	require.ErrorIs(t, err, ErrCSPField)

	_, err = CSPID{DestPort: 64}.Encode() //nolint:exhaustruct
	require.ErrorIs(t, err, ErrCSPField)
}

func TestCSPImage(t *testing.T) {
	var p = CSPPacket{ID: testID, Data: []byte("ping")}

	var image, err = p.MarshalImage()
	require.NoError(t, err)
	assert.Equal(t, "00048252940070696e67", hex.EncodeToString(image))

	var parsed, perr = ParseCSPImage(image)
	require.NoError(t, perr)
	assert.Equal(t, p, *parsed)

	var length, ok = CSPFormat{}.PacketLength(image)
	assert.True(t, ok)
	assert.Equal(t, len(image), length)

	_, perr = ParseCSPImage(image[:5])
	require.ErrorIs(t, perr, ErrCSPImage)

	_, perr = ParseCSPImage(append(image, 0))
	require.ErrorIs(t, perr, ErrCSPImage)

	_, err = (&CSPPacket{ID: testID, Data: make([]byte, CSPMaxTransferUnit)}).MarshalImage()
	require.ErrorIs(t, err, ErrPacketTooLarge)
}

func TestCSPFormatRejectsOverMTU(t *testing.T) {
	var _, ok = CSPFormat{}.PacketLength([]byte{0x0f, 0xfb})
	assert.False(t, ok)

	length, ok := CSPFormat{}.PacketLength([]byte{0x0f, 0xfa})
	assert.True(t, ok)
	assert.Equal(t, CSPMaxTransferUnit, length)
}

func TestCSPKISSPayload(t *testing.T) {
	var p = CSPPacket{ID: testID, Data: []byte{1, 2, 3}}

	var payload, err = p.KISSPayload()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x82, 0x52, 0x94, 0x00, 1, 2, 3}, payload)

	var back, perr = ParseCSPKISSPayload(payload)
	require.NoError(t, perr)
	assert.Equal(t, p, *back)

	_, perr = ParseCSPKISSPayload([]byte{1, 2})
	require.ErrorIs(t, perr, ErrCSPImage)
}
