package uhfmac

/*------------------------------------------------------------------
 *
 * Purpose:   	The radio as seen by the MAC service: something that
 *		moves MPDUs, in order, one at a time.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

var ErrLinkClosed = errors.New("radio link closed")

// Link carries MPDUs to and from the radio.  SendMPDU and ReceiveMPDU may
// be used from different goroutines at the same time.
type Link interface {
	SendMPDU(ctx context.Context, mpdu []byte) error
	ReceiveMPDU(ctx context.Context) ([]byte, error)
	Close() error
}

type RadioType string

const (
	RadioLoopback RadioType = "loopback"
	RadioUDP      RadioType = "udp"
	RadioSerial   RadioType = "serial"
)

// LoopbackLink is one end of an in-memory radio link.
type LoopbackLink struct {
	out    chan<- []byte
	in     <-chan []byte
	closed chan struct{}
	once   *sync.Once

	// Drop, when set, is asked about every MPDU sent from this end.  It
	// gets the MPDU's sequence number, from 0, and returns true to lose it.
	Drop func(seq int) bool

	seq     atomic.Int64
	dropped atomic.Int64
}

// NewLoopbackPair returns two connected ends.  Each direction buffers up to
// depth MPDUs.
func NewLoopbackPair(depth int) (*LoopbackLink, *LoopbackLink) {
	var ab = make(chan []byte, depth)
	var ba = make(chan []byte, depth)
	var closed = make(chan struct{})
	var once = new(sync.Once)

	return &LoopbackLink{out: ab, in: ba, closed: closed, once: once}, //nolint:exhaustruct
		&LoopbackLink{out: ba, in: ab, closed: closed, once: once} //nolint:exhaustruct
}

// NewLoopbackLink returns a link that receives whatever it sends.
func NewLoopbackLink(depth int) *LoopbackLink {
	var ch = make(chan []byte, depth)

	return &LoopbackLink{out: ch, in: ch, closed: make(chan struct{}), once: new(sync.Once)} //nolint:exhaustruct
}

func (l *LoopbackLink) SendMPDU(ctx context.Context, mpdu []byte) error {
	var seq = int(l.seq.Add(1) - 1)
	if l.Drop != nil && l.Drop(seq) {
		l.dropped.Add(1)

		return nil
	}

	select {
	case <-l.closed:
		return ErrLinkClosed
	default:
	}

	select {
	case l.out <- slices.Clone(mpdu):
		return nil
	case <-l.closed:
		return ErrLinkClosed
	case <-ctx.Done():
		return fmt.Errorf("loopback send: %w", ctx.Err())
	}
}

func (l *LoopbackLink) ReceiveMPDU(ctx context.Context) ([]byte, error) {
	select {
	case mpdu := <-l.in:
		return mpdu, nil
	case <-l.closed:
		return nil, ErrLinkClosed
	case <-ctx.Done():
		return nil, fmt.Errorf("loopback receive: %w", ctx.Err())
	}
}

// Close closes both ends.
func (l *LoopbackLink) Close() error {
	l.once.Do(func() { close(l.closed) })

	return nil
}

func (l *LoopbackLink) Dropped() int {
	return int(l.dropped.Load())
}
