package uhfmac

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestESTTCCommandChecksums(t *testing.T) {
	var tests = []struct {
		cmd  ESTTCCommand
		want string
	}{
		{ESTTCReadStatusControlWord, "ES+R2200 BD888E1F\r"},
		{ESTTCEnableBeacons, "ES+W22003440 9287EF3A\r"},
		{ESTTCDisableBeacons, "ES+W22003400 F6EB2A3E\r"},
		{ESTTCSetBeaconPeriod(5), "ES+W220700000005 AE2A4F6E\r"},
		{ESTTCReadUptime, "ES+R2202 5386EF33\r"},
		{ESTTCReadReceivedPackets, "ES+R2204 BAE54A06\r"},
	}

	for _, tt := range tests {
		t.Run(string(tt.cmd), func(t *testing.T) {
			assert.Equal(t, tt.want, string(tt.cmd.Bytes()))

			var parsed, err = ParseESTTCCommand([]byte(tt.want))
			require.NoError(t, err)
			assert.Equal(t, tt.cmd, parsed)
		})
	}
}

func TestESTTCParseErrors(t *testing.T) {
	var _, err = ParseESTTCCommand([]byte("ES+R2200 BD888E1E\r"))
	require.ErrorIs(t, err, ErrESTTCChecksum)

	_, err = ParseESTTCCommand([]byte("ES+R2200\r"))
	require.ErrorIs(t, err, ErrESTTCMalformed)

	_, err = ParseESTTCCommand([]byte("XX+R2200 BD888E1F\r"))
	require.ErrorIs(t, err, ErrESTTCMalformed)

	_, err = ParseESTTCCommand([]byte("ES+R2200 BD888EZZ\r"))
	require.ErrorIs(t, err, ErrESTTCMalformed)
}

func TestESTTCNames(t *testing.T) {
	var c, ok = LookupESTTCCommand("uptime")
	assert.True(t, ok)
	assert.Equal(t, ESTTCReadUptime, c)

	_, ok = LookupESTTCCommand("reboot")
	assert.False(t, ok)

	assert.Equal(t, []string{"disable-beacons", "enable-beacons", "read-scw", "rx-packets", "uptime"}, ESTTCCommandNames())
}

func TestESFrameKnownValue(t *testing.T) {
	var frame, err = EncodeESFrame(ESTTCReadStatusControlWord.Bytes())
	require.NoError(t, err)

	assert.Equal(t, "aaaaaaaaaa7e12", hex.EncodeToString(frame[:7]))
	assert.Equal(t, "4670", hex.EncodeToString(frame[len(frame)-2:]))
	assert.Len(t, frame, esFrameOverhead(18))

	var data, derr = DecodeESFrame(frame)
	require.NoError(t, derr)
	assert.Equal(t, ESTTCReadStatusControlWord.Bytes(), data)
}

func TestESFrameErrors(t *testing.T) {
	var _, err = EncodeESFrame(nil)
	require.ErrorIs(t, err, ErrESFrame)

	_, err = EncodeESFrame(make([]byte, 129))
	require.ErrorIs(t, err, ErrESFrame)

	var frame, _ = EncodeESFrame([]byte("hello"))

	var bad = append([]byte(nil), frame...)
	bad[8] ^= 0x01
	_, err = DecodeESFrame(bad)
	require.ErrorIs(t, err, ErrESFrameCRC)

	_, err = DecodeESFrame(frame[:len(frame)-1])
	require.ErrorIs(t, err, ErrESFrame)

	_, err = DecodeESFrame(frame[5:])
	require.ErrorIs(t, err, ErrESFrame)
}

func TestESFrameScanner(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var payloads = rapid.SliceOfN(rapid.SliceOfN(rapid.Byte(), 1, esMaxData), 1, 5).Draw(t, "payloads")

		var stream = []byte{0x00, 0x13, 0x7E} // noise, including a stray sync
		for _, p := range payloads {
			var frame, err = EncodeESFrame(p)
			require.NoError(t, err)
			stream = append(stream, frame...)
		}

		var scanner ESFrameScanner
		var got [][]byte
		for _, b := range stream {
			if data, ok := scanner.Feed(b); ok {
				got = append(got, data)
			}
		}

		assert.Equal(t, payloads, got)
	})
}

func TestESFrameScannerSkipsBadCRC(t *testing.T) {
	var good, _ = EncodeESFrame([]byte("good"))
	var bad, _ = EncodeESFrame([]byte("bad!"))
	bad[len(bad)-1] ^= 0xff

	var scanner ESFrameScanner
	var got [][]byte
	for _, b := range append(bad, good...) {
		if data, ok := scanner.Feed(b); ok {
			got = append(got, data)
		}
	}

	assert.Equal(t, [][]byte{[]byte("good")}, got)
	assert.Equal(t, 1, scanner.BadCRC)
}
