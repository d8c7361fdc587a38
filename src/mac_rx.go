package uhfmac

/********************************************************************************
 *
 * Purpose:     Reassemble application packets from a stream of MPDUs.
 *
 * Description:	MPDUs carry no header, so the only thing that tells the
 *		receiver how many to expect is the packet length at the
 *		start of the first codeword.  Until that length is known
 *		the receiver is in "length discovery".
 *
 *		Codecs are systematic, so the raw bytes at the start of the
 *		first MPDU are the packet header, possibly damaged.  That
 *		gives a guess of the length, and the guess gives the length
 *		of the first codeword, which can then be decoded to confirm
 *		or reject it.
 *
 *		If the guess is wrong there is no way to know where the
 *		first codeword ends.  Once a full codeword's worth of MPDUs
 *		is present, every possible first block length is tried.
 *		A short packet found this way may have been complete
 *		several MPDUs ago.  Those extra MPDUs belong to the next
 *		packet and are handed back for resubmission.
 *
 *		The search can match more than one first block length.
 *		They are tried in turn until one passes the frame check.
 *		Without a frame check the first match wins, so a search
 *		result is only a best guess.
 *
 *******************************************************************************/

import (
	"encoding/binary"
	"slices"
)

type rxState int

const (
	RX_IDLE rxState = iota
	RX_ACCUMULATING
)

type reassembler struct {
	state rxState

	buf      []byte // Raw MPDUs, concatenated.  Always a multiple of the MPDU length.
	received int    // MPDUs in buf.

	packetLength int // 0 until discovered.
	target       int // MPDUs needed for packetLength.

	snr float32 // Last SNR estimate, passed to the codec.

	image  []byte // Decoded image, reused.
	packet []byte // Most recent reconstructed packet.

	lengthBySearch bool
	candidates     []int // Other lengths found by the search, not yet tried.
}

func (r *reassembler) reset() {
	r.state = RX_IDLE
	r.buf = r.buf[:0]
	r.received = 0
	r.packetLength = 0
	r.target = 0
	r.lengthBySearch = false
	r.candidates = r.candidates[:0]
}

func (r *reassembler) inProgress() bool {
	return r.state == RX_ACCUMULATING
}

func (r *reassembler) decodeError(d SchemeDescriptor, err error) *DecodeError {
	var e = &DecodeError{
		Scheme:            d.Scheme(),
		FragmentsReceived: r.received,
		FragmentTarget:    r.target,
		PacketLength:      r.packetLength,
		Err:               err,
	}

	r.reset()

	return e
}

/***********************************************************************************
 *
 * Name:        process
 *
 * Purpose:     Accept one MPDU payload.
 *
 * Inputs:      d	- Current scheme.
 *		format	- Where to find the length in a packet image.
 *		payload	- Exactly one MPDU, already checked for length.
 *
 * Returns:	Outcome, or a *DecodeError when the packet was abandoned.
 *
 ***********************************************************************************/

func (r *reassembler) process(d SchemeDescriptor, format PacketFormat, payload []byte) (Outcome, error) { //nolint:ireturn
	Assert(len(payload) == d.MPDUPayloadLength())

	if r.state == RX_IDLE {
		r.reset()
		r.state = RX_ACCUMULATING
	}

	r.buf = append(r.buf, payload...)
	r.received++

	if r.packetLength == 0 {
		var lengths, bySearch = r.discoverLength(d, format)
		if len(lengths) == 0 {
			if r.received >= d.FragmentsPerCodeword() {
				return nil, r.decodeError(d, ErrHeaderUnrecoverable)
			}

			return NeedMoreFragments{}, nil
		}

		r.lengthBySearch = bySearch
		r.candidates = append(r.candidates[:0], lengths[1:]...)
		r.setLength(d, lengths[0])
	}

	var corrected int

	for {
		if r.received < r.target {
			return NeedMoreFragments{}, nil
		}

		// received > target only happens when the length was found late by
		// the exhaustive search.
		Assert(r.received == r.target || r.lengthBySearch)

		var err error

		corrected, err = r.decodeImage(d)
		if err == nil {
			break
		}

		if len(r.candidates) == 0 {
			return nil, r.decodeError(d, err)
		}

		r.setLength(d, r.candidates[0])
		r.candidates = r.candidates[1:]
	}

	r.packet = append(r.packet[:0], r.image[:r.packetLength]...)
	var packet = slices.Clone(r.packet)

	var extra [][]byte
	var m = d.MPDUPayloadLength()
	for i := r.target; i < r.received; i++ {
		extra = append(extra, slices.Clone(r.buf[i*m:(i+1)*m]))
	}

	r.reset()

	if len(extra) > 0 {
		return PacketReadyResubmit{Packet: packet, CorrectedErrors: corrected, Resubmit: extra}, nil
	}

	return PacketReady{Packet: packet, CorrectedErrors: corrected}, nil
}

func (r *reassembler) setLength(d SchemeDescriptor, length int) {
	r.packetLength = length
	r.target = d.NumMPDUs(length)
}

// decodeImage decodes every codeword of the packet into r.image and checks
// the frame check if there is one.
func (r *reassembler) decodeImage(d SchemeDescriptor) (int, error) {
	var codec = d.Codec()
	var coded = r.buf[:d.CodedLength(r.packetLength)]

	r.image = r.image[:0]

	var corrected = 0
	var off = 0
	for _, b := range d.Blocks(r.packetLength) {
		var n = codec.CodewordLength(b)

		var block, count, err = codec.Decode(coded[off:off+n], r.snr)
		if err != nil {
			return corrected, err
		}

		r.image = append(r.image, block...)
		corrected += count
		off += n
	}

	Assert(len(r.image) == d.ImageLength(r.packetLength))

	if d.FrameCheck() {
		var got = binary.BigEndian.Uint16(r.image[r.packetLength:])
		if got != frameCheckSum(r.image[:r.packetLength]) {
			return corrected, ErrFrameCheck
		}
	}

	return corrected, nil
}

/***********************************************************************************
 *
 * Name:        discoverLength
 *
 * Purpose:     Find the packet length from the MPDUs received so far.
 *
 * Returns:	Possible lengths, best first, and whether they came from
 *		the exhaustive search.  None while the length is not known.
 *
 * Description:	First trust the raw header just long enough to decode the
 *		codeword it implies.  Accept the corrected length if it
 *		implies the same first codeword, even when the codec had
 *		to repair the length field itself.
 *
 *		Failing that, and once at least one full codeword has been
 *		received, try every first block length, shortest first.
 *
 ***********************************************************************************/

func (r *reassembler) discoverLength(d SchemeDescriptor, format PacketFormat) ([]int, bool) {
	var hdr = format.HeaderLength()

	if len(r.buf) >= hdr {
		var guess, ok = format.PacketLength(r.buf[:hdr])
		if ok && guess >= hdr {
			var first = d.FirstBlockLength(guess)

			var length, confirmed = r.lengthFromFirstBlock(d, format, first)
			if confirmed && d.FirstBlockLength(length) == first {
				return []int{length}, false
			}
		}
	}

	if r.received < d.FragmentsPerCodeword() {
		return nil, false
	}

	var lengths []int

	for b := hdr; b <= d.BlockLength(); b++ {
		var length, confirmed = r.lengthFromFirstBlock(d, format, b)
		if confirmed && d.FirstBlockLength(length) == b {
			lengths = append(lengths, length)
		}
	}

	return lengths, true
}

// lengthFromFirstBlock decodes the first codeword assuming its block holds
// blockLength bytes, and reads the packet length from the result.
func (r *reassembler) lengthFromFirstBlock(d SchemeDescriptor, format PacketFormat, blockLength int) (int, bool) {
	var hdr = format.HeaderLength()
	if blockLength < hdr || blockLength > d.BlockLength() {
		return 0, false
	}

	var n = d.Codec().CodewordLength(blockLength)
	if n > len(r.buf) {
		return 0, false
	}

	var block, _, err = d.Codec().Decode(r.buf[:n], r.snr)
	if err != nil {
		return 0, false
	}

	var length, ok = format.PacketLength(block[:hdr])
	if !ok || length < hdr {
		return 0, false
	}

	return length, true
}
