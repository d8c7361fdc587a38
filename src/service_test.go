package uhfmac

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceEnd struct {
	service *Service
	link    *LoopbackLink
	done    chan error
}

func startService(t *testing.T, ctx context.Context, m *MAC, link *LoopbackLink, pace bool) *serviceEnd {
	t.Helper()

	var s, err = NewService(ServiceConfig{ //nolint:exhaustruct
		MAC:    m,
		Link:   link,
		Pace:   pace,
		Logger: quietLogger(),
	})
	require.NoError(t, err)

	var end = &serviceEnd{service: s, link: link, done: make(chan error, 1)}
	go func() { end.done <- s.Run(ctx) }()

	return end
}

func receivePacket(t *testing.T, s *Service) ReceivedPacket {
	t.Helper()

	select {
	case rp := <-s.Inbound():
		return rp
	case <-time.After(5 * time.Second):
		t.Fatal("no packet received")

		return ReceivedPacket{} //nolint:exhaustruct
	}
}

func TestServiceEndToEnd(t *testing.T) {
	for _, scheme := range ErrorCorrectionSchemes() {
		t.Run(scheme.String(), func(t *testing.T) {
			var ctx, cancel = context.WithCancel(context.Background())
			defer cancel()

			var la, lb = NewLoopbackPair(64)
			var a = startService(t, ctx, newTestMAC(t, scheme, true), la, false)
			var b = startService(t, ctx, newTestMAC(t, scheme, true), lb, false)

			var packets = [][]byte{cspImage(t, 300, 1), cspImage(t, 6, 0), cspImage(t, 4096, 2)}
			for _, p := range packets {
				require.NoError(t, a.service.Send(ctx, p))
			}

			for _, p := range packets {
				assert.Equal(t, p, receivePacket(t, b.service).Packet)
			}

			// And the other way.
			require.NoError(t, b.service.Send(ctx, packets[0]))
			assert.Equal(t, packets[0], receivePacket(t, a.service).Packet)

			cancel()
			require.NoError(t, <-a.done)
			require.NoError(t, <-b.done)

			assert.EqualValues(t, 3, a.service.Stats().PacketsSent)
			assert.EqualValues(t, 3, b.service.Stats().PacketsReceived)
		})
	}
}

func TestServiceRejectsBadPacket(t *testing.T) {
	var ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	var la, lb = NewLoopbackPair(16)
	var a = startService(t, ctx, newTestMAC(t, NoFEC, true), la, false)
	var b = startService(t, ctx, newTestMAC(t, NoFEC, true), lb, false)

	require.NoError(t, a.service.Send(ctx, make([]byte, 5000)))
	require.NoError(t, a.service.Send(ctx, cspImage(t, 40, 3)))

	assert.Equal(t, cspImage(t, 40, 3), receivePacket(t, b.service).Packet)
	assert.EqualValues(t, 1, a.service.Stats().SendFailures)
}

func TestServiceResubmits(t *testing.T) {
	var ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	var sender = newTestMAC(t, ReedSolomon255_223, true)

	var ping, _ = (&CSPPacket{ID: testID, Data: []byte("ping")}).MarshalImage()
	var pong, _ = (&CSPPacket{ID: CSPID{Priority: CSPPriorityNormal, Source: 5, Dest: 1, DestPort: 20, SrcPort: 10}, Data: []byte("pong")}).MarshalImage()

	require.NoError(t, sender.ReceiveCSPPacket(ping))
	var a = drain(sender)
	require.NoError(t, sender.ReceiveCSPPacket(pong))
	var b = drain(sender)

	a[0][0] ^= 0xFF
	a[0][1] ^= 0xFF

	var radio, local = NewLoopbackPair(4)
	var rx = startService(t, ctx, newTestMAC(t, ReedSolomon255_223, true), local, false)

	require.NoError(t, radio.SendMPDU(ctx, a[0]))
	require.NoError(t, radio.SendMPDU(ctx, b[0]))

	var first = receivePacket(t, rx.service)
	assert.Equal(t, ping, first.Packet)
	assert.Equal(t, 2, first.CorrectedErrors)
	assert.Equal(t, pong, receivePacket(t, rx.service).Packet)
}

func TestServiceCountsDecodeErrors(t *testing.T) {
	var ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	var radio, local = NewLoopbackPair(4)
	var rx = startService(t, ctx, newTestMAC(t, NoFEC, true), local, false)

	require.NoError(t, radio.SendMPDU(ctx, make([]byte, 64)))

	require.Eventually(t, func() bool {
		return rx.service.Stats().DecodeErrors == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServicePacing(t *testing.T) {
	var ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	var m = newTestMAC(t, NoFEC, true)
	require.NoError(t, m.SetRFModeNumber(RFMode7))

	var la, lb = NewLoopbackPair(16)
	var a = startService(t, ctx, m, la, true)

	var interval = m.RFMode().MinPacketInterval()
	var start = time.Now()

	require.NoError(t, a.service.Send(ctx, cspImage(t, 300, 0)))

	for range 3 {
		var _, err = lb.ReceiveMPDU(ctx)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return a.service.Stats().PacketsSent == 1
	}, 5*time.Second, 5*time.Millisecond)

	assert.GreaterOrEqual(t, time.Since(start), 3*interval)
}

func TestServiceStopsWhenLinkCloses(t *testing.T) {
	var la, lb = NewLoopbackPair(1)
	var a = startService(t, context.Background(), newTestMAC(t, NoFEC, true), la, false)

	require.NoError(t, lb.Close())

	select {
	case err := <-a.done:
		require.ErrorIs(t, err, ErrLinkClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("service still running")
	}
}

func TestServiceTrySendFull(t *testing.T) {
	var s, err = NewService(ServiceConfig{ //nolint:exhaustruct
		MAC:         newTestMAC(t, NoFEC, true),
		Link:        NewLoopbackLink(1),
		QueueLength: 1,
		Logger:      quietLogger(),
	})
	require.NoError(t, err)

	require.NoError(t, s.TrySend(cspImage(t, 10, 0)))
	require.ErrorIs(t, s.TrySend(cspImage(t, 10, 0)), ErrQueueFull)
	assert.EqualValues(t, 1, s.Stats().QueueFull)

	_, err = NewService(ServiceConfig{}) //nolint:exhaustruct
	require.ErrorIs(t, err, ErrServiceConfig)
}

// Stopping while paced between MPDUs drops the rest of the packet, so
// the MAC is free for configuration changes afterwards.
func TestServicePacingCancelDiscards(t *testing.T) {
	var ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	var m = newTestMAC(t, NoFEC, true)
	require.NoError(t, m.SetRFModeNumber(RFMode0))

	var la, lb = NewLoopbackPair(16)
	var a = startService(t, ctx, m, la, true)

	require.NoError(t, a.service.Send(ctx, cspImage(t, 300, 0)))

	var _, err = lb.ReceiveMPDU(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case <-a.done:
	case <-time.After(5 * time.Second):
		t.Fatal("service still running")
	}

	assert.Zero(t, m.PendingMPDUs())
	assert.Zero(t, a.service.Stats().PacketsSent)
	require.NoError(t, m.SetErrorCorrectionScheme(ReedSolomon255_223))
	require.NoError(t, m.SetRFModeNumber(RFMode7))
}
