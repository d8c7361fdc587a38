package uhfmac

import (
	"errors"
	"fmt"
)

// Status is the receive progress code, numbered as on the flight software.
type Status uint16

const (
	// All the necessary MPDUs have arrived and a packet was reconstructed.
	CSPPacketReady Status = 0x0000

	// A packet was reconstructed, but more MPDUs arrived than it needed.
	// The extra ones belong to the next packet and must be processed again.
	CSPPacketReadyResubmitPreviousPacket Status = 0x0001

	// The MPDU was accepted and more are needed.
	ReadyForNextUHFPacket Status = 0x0002
)

func (s Status) String() string {
	switch s {
	case CSPPacketReady:
		return "CSP_PACKET_READY"
	case CSPPacketReadyResubmitPreviousPacket:
		return "CSP_PACKET_READY_RESUBMIT_PREVIOUS_PACKET"
	case ReadyForNextUHFPacket:
		return "READY_FOR_NEXT_UHF_PACKET"
	default:
		return fmt.Sprintf("Status(%#04x)", uint16(s))
	}
}

// Outcome is the result of feeding one MPDU to the receiver.  It is one of
// NeedMoreFragments, PacketReady or PacketReadyResubmit.
type Outcome interface {
	Status() Status
}

type NeedMoreFragments struct{}

func (NeedMoreFragments) Status() Status { return ReadyForNextUHFPacket }

type PacketReady struct {
	Packet          []byte
	CorrectedErrors int
}

func (PacketReady) Status() Status { return CSPPacketReady }

type PacketReadyResubmit struct {
	Packet          []byte
	CorrectedErrors int

	// MPDUs received after the last one of Packet, oldest first.
	Resubmit [][]byte
}

func (PacketReadyResubmit) Status() Status { return CSPPacketReadyResubmitPreviousPacket }

var (
	ErrPacketTooLarge       = errors.New("packet exceeds CSP MTU")
	ErrPacketTooShort       = errors.New("packet shorter than its header")
	ErrPacketLengthMismatch = errors.New("packet header length does not match packet size")
	ErrMalformedFragment    = errors.New("MPDU payload has the wrong length")
	ErrFrameCheck           = errors.New("frame check mismatch")
	ErrHeaderUnrecoverable  = errors.New("packet length could not be recovered")
	ErrOperationInProgress  = errors.New("operation in progress")
)

// DecodeError reports a packet that was abandoned.  The receiver is back to
// idle when it is returned.
type DecodeError struct {
	Scheme            ErrorCorrectionScheme
	FragmentsReceived int
	FragmentTarget    int // 0 if the length was never recovered
	PacketLength      int
	Err               error
}

func (e *DecodeError) Error() string {
	if e.FragmentTarget == 0 {
		return fmt.Sprintf("decode %s after %d MPDUs: %v", e.Scheme, e.FragmentsReceived, e.Err)
	}

	return fmt.Sprintf("decode %s, %d byte packet, %d of %d MPDUs: %v", e.Scheme, e.PacketLength, e.FragmentsReceived, e.FragmentTarget, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
