package uhfmac

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// RFModeNumber selects one of the EnduroSat UHF transceiver's modulation
// settings.
type RFModeNumber int

const (
	RFMode0 RFModeNumber = iota
	RFMode1
	RFMode2
	RFMode3
	RFMode4
	RFMode5
	RFMode6
	RFMode7
)

const NumRFModes = 8

// Transparent mode moves this many bytes per radio packet in every mode.
const TransparentModePayloadLength = 128

var ErrUnknownRFMode = errors.New("unknown RF mode")

type RFMode struct {
	Number             RFModeNumber
	DataRate           int     // bits per second
	FrequencyDeviation int     // Hz
	ModulationIndex    float64 // 2 * deviation / data rate
	PayloadLength      int
}

var rfModes = [NumRFModes]RFMode{
	{RFMode0, 1200, 600, 1, TransparentModePayloadLength},
	{RFMode1, 2400, 600, 0.5, TransparentModePayloadLength},
	{RFMode2, 4800, 1200, 0.5, TransparentModePayloadLength},
	{RFMode3, 9600, 2400, 0.5, TransparentModePayloadLength},
	{RFMode4, 9600, 4800, 1, TransparentModePayloadLength},
	{RFMode5, 19200, 4800, 0.5, TransparentModePayloadLength},
	{RFMode6, 19200, 9600, 1, TransparentModePayloadLength},
	{RFMode7, 19200, 19200, 2, TransparentModePayloadLength},
}

func LookupRFMode(n RFModeNumber) (RFMode, error) {
	if n < 0 || int(n) >= NumRFModes {
		return RFMode{}, fmt.Errorf("%w: %d", ErrUnknownRFMode, int(n))
	}

	return rfModes[n], nil
}

func (m RFMode) String() string {
	return fmt.Sprintf("mode %d: %d bps, deviation %d Hz, h=%g", m.Number, m.DataRate, m.FrequencyDeviation, m.ModulationIndex)
}

// AirTime is how long one EnduroSat frame carrying dataLength bytes
// occupies the channel.
func (m RFMode) AirTime(dataLength int) time.Duration {
	var bits = esFrameOverhead(dataLength) * 8

	return time.Duration(float64(bits) / float64(m.DataRate) * float64(time.Second))
}

// The radio needs time to receive a maximum size frame and respond.  This
// is assumed to be 1.5 times as long as the frame itself.
const radioResponseGuard = 1.5

// MinPacketInterval is the shortest safe time between the starts of two
// frames, rounded up to whole milliseconds.
func (m RFMode) MinPacketInterval() time.Duration {
	var frameBits = esFrameOverhead(m.PayloadLength) * 8
	var guardBits = math.Ceil(radioResponseGuard * float64(frameBits))
	var ms = math.Ceil((float64(frameBits) + guardBits) / float64(m.DataRate) * 1000)

	return time.Duration(ms) * time.Millisecond
}
