package uhfmac

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/sigurn/crc16"
)

// Frame check over the application image, sent big endian after it.
var frameCheckTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

func frameCheckSum(image []byte) uint16 {
	return crc16.Checksum(image, frameCheckTable)
}

// fragmenter holds the MPDUs for the most recent outgoing packet.  The
// buffers are reused from one packet to the next.
type fragmenter struct {
	image     []byte // packet plus frame check
	codewords []byte
	mpdus     []byte

	mpduLength int
	numMPDUs   int
	next       int // next MPDU handed out by nextMPDU
}

// validatePacket applies the checks that must pass before any TX state changes.
func validatePacket(format PacketFormat, packet []byte) error {
	if len(packet) > CSPMaxTransferUnit {
		return fmt.Errorf("%w: %d > %d bytes", ErrPacketTooLarge, len(packet), CSPMaxTransferUnit)
	}

	if len(packet) == 0 || len(packet) < format.HeaderLength() {
		return fmt.Errorf("%w: %d bytes", ErrPacketTooShort, len(packet))
	}

	var declared, ok = format.PacketLength(packet[:format.HeaderLength()])
	if !ok || declared != len(packet) {
		return fmt.Errorf("%w: header declares %d, packet is %d bytes", ErrPacketLengthMismatch, declared, len(packet))
	}

	return nil
}

/*-------------------------------------------------------------------
 *
 * Name:	load
 *
 * Purpose:	Encode one packet into MPDUs.
 *
 * Inputs:	d	- Current scheme.
 *		packet	- Already validated packet image.
 *
 * Returns:	Number of MPDUs of the previous packet that had not been
 *		taken with nextMPDU and are now gone.
 *
 *---------------------------------------------------------------*/

func (f *fragmenter) load(d SchemeDescriptor, packet []byte) (int, error) {
	var discarded = f.pending()

	f.image = append(f.image[:0], packet...)
	if d.FrameCheck() {
		f.image = binary.BigEndian.AppendUint16(f.image, frameCheckSum(packet))
	}

	var codec = d.Codec()
	var k = d.BlockLength()

	f.codewords = f.codewords[:0]
	for off := 0; off < len(f.image); off += k {
		var codeword, err = codec.Encode(f.image[off:min(off+k, len(f.image))])
		if err != nil {
			f.reset()

			return discarded, err
		}

		f.codewords = append(f.codewords, codeword...)
	}

	Assert(len(f.codewords) == d.CodedLength(len(packet)))

	f.mpduLength = d.MPDUPayloadLength()
	f.numMPDUs = ceilDiv(len(f.codewords), f.mpduLength)
	f.next = 0

	var size = f.numMPDUs * f.mpduLength
	f.mpdus = slices.Grow(f.mpdus[:0], size)[:size]
	copy(f.mpdus, f.codewords)
	clear(f.mpdus[len(f.codewords):])

	return discarded, nil
}

func (f *fragmenter) reset() {
	f.image = f.image[:0]
	f.codewords = f.codewords[:0]
	f.mpdus = f.mpdus[:0]
	f.numMPDUs = 0
	f.next = 0
}

func (f *fragmenter) pending() int {
	return f.numMPDUs - f.next
}

func (f *fragmenter) nextMPDU() ([]byte, bool) {
	if f.next >= f.numMPDUs {
		return nil, false
	}

	var off = f.next * f.mpduLength
	f.next++

	return slices.Clone(f.mpdus[off : off+f.mpduLength]), true
}

func (f *fragmenter) discard() int {
	var n = f.pending()
	f.next = f.numMPDUs

	return n
}
