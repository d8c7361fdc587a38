package uhfmac

/*------------------------------------------------------------------
 *
 * Purpose:	CSP packet images as they are handed to the MAC.
 *
 * Description:	The MAC is given a byte image whose first bytes
 *		declare its own length.  For CSP the image is
 *
 *		+--------------+------------------+-------------+
 *		| data length  | CSP v1 id        | data        |
 *		| u16, big end | u32, big end     | data length |
 *		+--------------+------------------+-------------+
 *
 *		The CSP v1 identifier packs, from the most significant
 *		bit down:  priority 2, source 5, destination 5,
 *		destination port 6, source port 6, flags 8.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// CSPMaxTransferUnit is the largest packet image the MAC accepts.
const CSPMaxTransferUnit = 4096

const (
	cspLengthFieldSize = 2
	cspIDSize          = 4
	cspHeaderSize      = cspLengthFieldSize + cspIDSize
)

// CSP flag bits.
const (
	CSPFlagCRC32 = 0x01
	CSPFlagRDP   = 0x02
	CSPFlagXTEA  = 0x04
	CSPFlagHMAC  = 0x08
)

type CSPPriority uint8

const (
	CSPPriorityCritical CSPPriority = iota
	CSPPriorityHigh
	CSPPriorityNormal
	CSPPriorityLow
)

var ErrCSPField = errors.New("CSP identifier field out of range")
var ErrCSPImage = errors.New("malformed CSP packet image")

type CSPID struct {
	Priority CSPPriority
	Source   uint8 // 5 bits
	Dest     uint8 // 5 bits
	DestPort uint8 // 6 bits
	SrcPort  uint8 // 6 bits
	Flags    uint8
}

func (id CSPID) Encode() (uint32, error) {
	if id.Priority > 3 || id.Source > 31 || id.Dest > 31 || id.DestPort > 63 || id.SrcPort > 63 {
		return 0, fmt.Errorf("%w: %+v", ErrCSPField, id)
	}

	return uint32(id.Priority)<<30 |
		uint32(id.Source)<<25 |
		uint32(id.Dest)<<20 |
		uint32(id.DestPort)<<14 |
		uint32(id.SrcPort)<<8 |
		uint32(id.Flags), nil
}

func DecodeCSPID(v uint32) CSPID {
	return CSPID{
		Priority: CSPPriority(v >> 30 & 0x03),
		Source:   uint8(v >> 25 & 0x1f),
		Dest:     uint8(v >> 20 & 0x1f),
		DestPort: uint8(v >> 14 & 0x3f),
		SrcPort:  uint8(v >> 8 & 0x3f),
		Flags:    uint8(v & 0xff),
	}
}

func (id CSPID) String() string {
	return fmt.Sprintf("%d:%d -> %d:%d pri %d flags %#02x", id.Source, id.SrcPort, id.Dest, id.DestPort, id.Priority, id.Flags)
}

type CSPPacket struct {
	ID   CSPID
	Data []byte
}

// MarshalImage builds the length-prefixed image the MAC transmits.
func (p *CSPPacket) MarshalImage() ([]byte, error) {
	if cspHeaderSize+len(p.Data) > CSPMaxTransferUnit {
		return nil, fmt.Errorf("%w: %d data bytes", ErrPacketTooLarge, len(p.Data))
	}

	var id, err = p.ID.Encode()
	if err != nil {
		return nil, err
	}

	var image = make([]byte, cspHeaderSize, cspHeaderSize+len(p.Data))
	binary.BigEndian.PutUint16(image[0:], uint16(len(p.Data))) //nolint:gosec
	binary.BigEndian.PutUint32(image[cspLengthFieldSize:], id)
	image = append(image, p.Data...)

	return image, nil
}

func ParseCSPImage(image []byte) (*CSPPacket, error) {
	if len(image) < cspHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCSPImage, len(image))
	}

	var n = int(binary.BigEndian.Uint16(image))
	if cspHeaderSize+n != len(image) {
		return nil, fmt.Errorf("%w: header says %d data bytes, image has %d", ErrCSPImage, n, len(image)-cspHeaderSize)
	}

	return &CSPPacket{
		ID:   DecodeCSPID(binary.BigEndian.Uint32(image[cspLengthFieldSize:])),
		Data: append([]byte(nil), image[cspHeaderSize:]...),
	}, nil
}

// KISSPayload is the form used by CSP's KISS interface: identifier then data.
func (p *CSPPacket) KISSPayload() ([]byte, error) {
	var id, err = p.ID.Encode()
	if err != nil {
		return nil, err
	}

	var out = binary.BigEndian.AppendUint32(make([]byte, 0, cspIDSize+len(p.Data)), id)

	return append(out, p.Data...), nil
}

func ParseCSPKISSPayload(payload []byte) (*CSPPacket, error) {
	if len(payload) < cspIDSize {
		return nil, fmt.Errorf("%w: %d byte KISS payload", ErrCSPImage, len(payload))
	}

	return &CSPPacket{
		ID:   DecodeCSPID(binary.BigEndian.Uint32(payload)),
		Data: append([]byte(nil), payload[cspIDSize:]...),
	}, nil
}

// PacketFormat is how the MAC finds the length of an application packet
// from the start of its image.
type PacketFormat interface {
	// HeaderLength is the number of leading bytes needed by PacketLength.
	HeaderLength() int

	// PacketLength returns the total image length declared by header, which
	// holds at least HeaderLength bytes.  ok is false when the declared
	// length is impossible.
	PacketLength(header []byte) (length int, ok bool)
}

// CSPFormat is the PacketFormat for CSP images.
type CSPFormat struct{}

func (CSPFormat) HeaderLength() int {
	return cspHeaderSize
}

func (CSPFormat) PacketLength(header []byte) (int, bool) {
	if len(header) < cspLengthFieldSize {
		return 0, false
	}

	var length = cspHeaderSize + int(binary.BigEndian.Uint16(header))

	return length, length <= CSPMaxTransferUnit
}
