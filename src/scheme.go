package uhfmac

/*--------------------------------------------------------------------------------
 *
 * Purpose:	Everything the TX and RX engines need to know about how a
 *		packet of a given length is laid out on the air.
 *
 * Description:	An application image of L bytes, plus an optional 2 byte
 *		frame check, is cut into blocks of k bytes.  The last block
 *		holds whatever is left over and is shorter if L isn't a
 *		multiple of k.  Each block becomes a codeword, the codewords
 *		are concatenated, and the result is chopped into MPDUs with
 *		zero padding in the last one.
 *
 *		    image:    |<----- k ----->|<----- k ----->|<-- r -->|fc|
 *		    coded:    |<----- n ----->|<----- n ----->|<- n(r) ->|
 *		    MPDUs:    |  m  |  m  |  m  |  m  |  m  |  m  | m..0 |
 *
 *--------------------------------------------------------------------------------*/

// Bytes appended to the image when the frame check is enabled.
const frameCheckLength = 2

type SchemeDescriptor struct {
	codec      Codec
	mpduLength int
	frameCheck bool
}

func NewSchemeDescriptor(codec Codec, mpduLength int, frameCheck bool) SchemeDescriptor {
	Assert(codec != nil)
	Assert(mpduLength > 0)

	return SchemeDescriptor{codec: codec, mpduLength: mpduLength, frameCheck: frameCheck}
}

func (d SchemeDescriptor) Scheme() ErrorCorrectionScheme {
	return d.codec.Scheme()
}

func (d SchemeDescriptor) Codec() Codec { //nolint:ireturn
	return d.codec
}

func (d SchemeDescriptor) MPDUPayloadLength() int {
	return d.mpduLength
}

func (d SchemeDescriptor) FrameCheck() bool {
	return d.frameCheck
}

// BlockLength is k, the uncoded bytes in one full codeword.
func (d SchemeDescriptor) BlockLength() int {
	return d.codec.BlockLength()
}

// CodewordLength is n, the length of a full codeword.
func (d SchemeDescriptor) CodewordLength() int {
	return d.codec.CodewordLength(d.codec.BlockLength())
}

func (d SchemeDescriptor) FragmentsPerCodeword() int {
	return ceilDiv(d.CodewordLength(), d.mpduLength)
}

// UncodedBytesPerFragment is the share of one MPDU that is application data.
func (d SchemeDescriptor) UncodedBytesPerFragment() int {
	return d.mpduLength * d.BlockLength() / d.CodewordLength()
}

func (d SchemeDescriptor) ImageLength(packetLength int) int {
	if packetLength <= 0 {
		return 0
	}

	return packetLength + IfThenElse(d.frameCheck, frameCheckLength, 0)
}

// Blocks returns the uncoded block lengths for a packet of packetLength bytes.
func (d SchemeDescriptor) Blocks(packetLength int) []int {
	var image = d.ImageLength(packetLength)
	var k = d.BlockLength()

	var blocks = make([]int, 0, ceilDiv(image, k))
	for image > 0 {
		var b = min(k, image)
		blocks = append(blocks, b)
		image -= b
	}

	return blocks
}

func (d SchemeDescriptor) CodedLength(packetLength int) int {
	var total = 0
	for _, b := range d.Blocks(packetLength) {
		total += d.codec.CodewordLength(b)
	}

	return total
}

func (d SchemeDescriptor) NumMPDUs(packetLength int) int {
	return ceilDiv(d.CodedLength(packetLength), d.mpduLength)
}

// FirstBlockLength is the uncoded length of the first block.
func (d SchemeDescriptor) FirstBlockLength(packetLength int) int {
	return min(d.BlockLength(), d.ImageLength(packetLength))
}

func (d SchemeDescriptor) FirstCodewordLength(packetLength int) int {
	var b = d.FirstBlockLength(packetLength)
	if b == 0 {
		return 0
	}

	return d.codec.CodewordLength(b)
}
