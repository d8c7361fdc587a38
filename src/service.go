package uhfmac

/*------------------------------------------------------------------
 *
 * Purpose:   	Move CSP packets between the client side queues and the
 *		radio link, through the MAC.
 *
 * Description:	Two goroutines.
 *
 *		Transmit takes a packet from the outbound queue, encodes
 *		it, and sends every MPDU before taking the next packet.
 *		With pacing on, it waits the RF mode's minimum packet
 *		interval after each MPDU so the radio is never handed a
 *		frame while it is still sending the last one.
 *
 *		Receive feeds each MPDU from the link to the MAC.  Extra
 *		MPDUs handed back with a late reassembly are fed again
 *		before the next one from the link.  Complete packets go
 *		to the inbound queue.  When that is full the packet is
 *		dropped rather than stall the radio.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

const defaultQueueLength = 16

type ServiceConfig struct {
	MAC  *MAC
	Link Link

	// Wait MinPacketInterval between MPDUs.
	Pace bool

	// Depth of the inbound and outbound packet queues.
	QueueLength int

	// Optional.
	PacketLog *PacketLog

	Logger *log.Logger
}

type ServiceStats struct {
	PacketsQueued   uint64
	QueueFull       uint64
	PacketsSent     uint64
	SendFailures    uint64
	MPDUsSent       uint64
	MPDUsReceived   uint64
	PacketsReceived uint64
	InboundDropped  uint64
	DecodeErrors    uint64
}

// ReceivedPacket is a CSP packet image that came in over the radio.
type ReceivedPacket struct {
	Packet          []byte
	CorrectedErrors int
	Time            time.Time
}

type Service struct {
	mac       *MAC
	link      Link
	pace      bool
	packetLog *PacketLog
	logger    *log.Logger

	outbound chan []byte
	inbound  chan ReceivedPacket

	running atomic.Bool

	packetsQueued   atomic.Uint64
	queueFull       atomic.Uint64
	packetsSent     atomic.Uint64
	sendFailures    atomic.Uint64
	mpdusSent       atomic.Uint64
	mpdusReceived   atomic.Uint64
	packetsReceived atomic.Uint64
	inboundDropped  atomic.Uint64
	decodeErrors    atomic.Uint64
}

var (
	ErrServiceConfig  = errors.New("invalid service configuration")
	ErrServiceRunning = errors.New("service already running")
	ErrQueueFull      = errors.New("outbound queue full")
)

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.MAC == nil || cfg.Link == nil {
		return nil, fmt.Errorf("%w: MAC and link are required", ErrServiceConfig)
	}

	var depth = IfThenElse(cfg.QueueLength > 0, cfg.QueueLength, defaultQueueLength)

	var logger = cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Service{ //nolint:exhaustruct
		mac:       cfg.MAC,
		link:      cfg.Link,
		pace:      cfg.Pace,
		packetLog: cfg.PacketLog,
		logger:    logger.WithPrefix("service"),
		outbound:  make(chan []byte, depth),
		inbound:   make(chan ReceivedPacket, depth),
	}, nil
}

// Send queues a packet image for transmission, waiting for room in the
// queue until ctx is done.
func (s *Service) Send(ctx context.Context, packet []byte) error {
	select {
	case s.outbound <- slices.Clone(packet):
		s.packetsQueued.Add(1)

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend queues a packet image only if there is room right now.
func (s *Service) TrySend(packet []byte) error {
	select {
	case s.outbound <- slices.Clone(packet):
		s.packetsQueued.Add(1)

		return nil
	default:
		s.queueFull.Add(1)

		return ErrQueueFull
	}
}

// Inbound delivers packets received over the radio.  It is never closed.
func (s *Service) Inbound() <-chan ReceivedPacket {
	return s.inbound
}

/*-------------------------------------------------------------------
 *
 * Name:	Run
 *
 * Purpose:	Run transmit and receive until ctx is cancelled or the
 *		link fails.
 *
 * Returns:	nil after cancellation, otherwise the link error.
 *		The link is closed on return.
 *
 *---------------------------------------------------------------*/

func (s *Service) Run(ctx context.Context) error {
	if s.running.Swap(true) {
		return ErrServiceRunning
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var errs = make(chan error, 2)

	wg.Add(2)

	go func() {
		defer wg.Done()
		errs <- s.transmit(ctx)
		cancel()
	}()

	go func() {
		defer wg.Done()
		errs <- s.receive(ctx)
		cancel()
	}()

	s.logger.Info("Service started", "pace", s.pace, "queue", cap(s.outbound))

	wg.Wait()
	close(errs)

	_ = s.link.Close()

	var result error
	for err := range errs {
		if err != nil && result == nil {
			result = err
		}
	}

	s.logger.Info("Service stopped", "err", result)

	return result
}

func (s *Service) transmit(ctx context.Context) error {
	for {
		var packet []byte

		select {
		case <-ctx.Done():
			return nil
		case packet = <-s.outbound:
		}

		if err := s.sendPacket(ctx, packet); err != nil {
			if ctx.Err() != nil {
				return nil
			}

			if errors.Is(err, ErrLinkClosed) {
				return err
			}

			s.sendFailures.Add(1)
			s.logger.Warn("Packet not sent", "length", len(packet), "err", err)
		}
	}
}

func (s *Service) sendPacket(ctx context.Context, packet []byte) error {
	if err := s.mac.ReceiveCSPPacket(packet); err != nil {
		return err
	}

	var interval = s.mac.RFMode().MinPacketInterval()
	var sent = 0

	for {
		var mpdu, ok = s.mac.NextMPDU()
		if !ok {
			break
		}

		if err := s.link.SendMPDU(ctx, mpdu); err != nil {
			var dropped = s.mac.DiscardMPDUs()
			s.logger.Debug("Transmission abandoned", "sent", sent, "dropped", dropped+1)

			return err
		}

		sent++
		s.mpdusSent.Add(1)

		if s.pace && !sleepCtx(ctx, interval) {
			var dropped = s.mac.DiscardMPDUs()
			s.logger.Debug("Transmission abandoned", "sent", sent, "dropped", dropped)

			return ctx.Err()
		}
	}

	s.packetsSent.Add(1)
	s.logger.Debug("Packet sent", "length", len(packet), "mpdus", sent)
	s.packetLog.Write(PacketSent, s.mac.ErrorCorrectionScheme(), packet, 0)

	return nil
}

func (s *Service) receive(ctx context.Context) error {
	for {
		var mpdu, err = s.link.ReceiveMPDU(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("receive: %w", err)
		}

		s.mpdusReceived.Add(1)
		s.process(mpdu)
	}
}

// process feeds one MPDU, and any the MAC hands back, to the receiver.
func (s *Service) process(mpdu []byte) {
	var queue = [][]byte{mpdu}

	for len(queue) > 0 {
		var next = queue[0]
		queue = queue[1:]

		var outcome, err = s.mac.ProcessUHFPacket(next)
		if err != nil {
			s.decodeErrors.Add(1)
			s.logger.Debug("MPDU not decoded", "err", err, "mpdu", "\n"+hexDump(next))

			continue
		}

		switch o := outcome.(type) {
		case PacketReady:
			s.deliver(o.Packet, o.CorrectedErrors)
		case PacketReadyResubmit:
			s.deliver(o.Packet, o.CorrectedErrors)
			queue = append(o.Resubmit, queue...)
		}
	}
}

func (s *Service) deliver(packet []byte, corrected int) {
	s.packetsReceived.Add(1)
	s.packetLog.Write(PacketReceived, s.mac.ErrorCorrectionScheme(), packet, corrected)

	var rp = ReceivedPacket{Packet: packet, CorrectedErrors: corrected, Time: time.Now()}

	select {
	case s.inbound <- rp:
	default:
		s.inboundDropped.Add(1)
		s.logger.Warn("Inbound queue full, packet dropped", "length", len(packet))
	}
}

func (s *Service) Stats() ServiceStats {
	return ServiceStats{
		PacketsQueued:   s.packetsQueued.Load(),
		QueueFull:       s.queueFull.Load(),
		PacketsSent:     s.packetsSent.Load(),
		SendFailures:    s.sendFailures.Load(),
		MPDUsSent:       s.mpdusSent.Load(),
		MPDUsReceived:   s.mpdusReceived.Load(),
		PacketsReceived: s.packetsReceived.Load(),
		InboundDropped:  s.inboundDropped.Load(),
		DecodeErrors:    s.decodeErrors.Load(),
	}
}
