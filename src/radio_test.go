package uhfmac

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopbackPair(t *testing.T) {
	var a, b = NewLoopbackPair(4)
	var ctx = context.Background()

	require.NoError(t, a.SendMPDU(ctx, []byte("to b")))
	require.NoError(t, b.SendMPDU(ctx, []byte("to a")))

	var got, err = b.ReceiveMPDU(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("to b"), got)

	got, err = a.ReceiveMPDU(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("to a"), got)

	require.NoError(t, a.Close())

	_, err = b.ReceiveMPDU(ctx)
	require.ErrorIs(t, err, ErrLinkClosed)
	require.ErrorIs(t, b.SendMPDU(ctx, []byte{1}), ErrLinkClosed)
}

func TestLoopbackDrop(t *testing.T) {
	var l = NewLoopbackLink(8)
	l.Drop = func(seq int) bool { return seq == 1 }

	var ctx = context.Background()
	for _, s := range []string{"zero", "one", "two"} {
		require.NoError(t, l.SendMPDU(ctx, []byte(s)))
	}

	var first, _ = l.ReceiveMPDU(ctx)
	var second, _ = l.ReceiveMPDU(ctx)

	assert.Equal(t, "zero", string(first))
	assert.Equal(t, "two", string(second))
	assert.Equal(t, 1, l.Dropped())
}

func TestLoopbackSendCopies(t *testing.T) {
	var l = NewLoopbackLink(1)
	var mpdu = []byte{1, 2, 3}

	require.NoError(t, l.SendMPDU(context.Background(), mpdu))
	mpdu[0] = 9

	var got, _ = l.ReceiveMPDU(context.Background())
	assert.Equal(t, []byte{1, 2, 3}, got)
}

func TestLoopbackCancel(t *testing.T) {
	var l = NewLoopbackLink(0)

	var ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var _, err = l.ReceiveMPDU(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUDPLinkPair(t *testing.T) {
	var a, err = NewUDPLink(UDPLinkConfig{Local: "127.0.0.1:0", Remote: "127.0.0.1:9", Logger: quietLogger()})
	require.NoError(t, err)
	defer a.Close()

	b, err := NewUDPLink(UDPLinkConfig{Local: "127.0.0.1:0", Remote: a.LocalAddr().String(), Logger: quietLogger()})
	require.NoError(t, err)
	defer b.Close()

	var ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mpdu = make([]byte, TransparentModePayloadLength)
	for i := range mpdu {
		mpdu[i] = byte(i)
	}

	require.NoError(t, b.SendMPDU(ctx, mpdu))

	got, err := a.ReceiveMPDU(ctx)
	require.NoError(t, err)
	assert.Equal(t, mpdu, got)

	require.Error(t, b.SendMPDU(ctx, make([]byte, esMaxData+1)))
}

func TestUDPLinkSkipsBadFrames(t *testing.T) {
	var a, err = NewUDPLink(UDPLinkConfig{Local: "127.0.0.1:0", Remote: "127.0.0.1:9", Logger: quietLogger()})
	require.NoError(t, err)
	defer a.Close()

	conn, err := net.DialUDP("udp", nil, a.LocalAddr())
	require.NoError(t, err)
	defer conn.Close()

	var good, _ = EncodeESFrame([]byte("hello"))
	var bad = append([]byte{}, good...)
	bad[len(bad)-1] ^= 0xff

	_, err = conn.Write(bad)
	require.NoError(t, err)
	_, err = conn.Write(good)
	require.NoError(t, err)

	var ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := a.ReceiveMPDU(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
	assert.Equal(t, uint64(1), a.BadFrames.Load())
}

func TestUDPLinkClose(t *testing.T) {
	var a, err = NewUDPLink(UDPLinkConfig{Local: "127.0.0.1:0", Remote: "127.0.0.1:9", Logger: quietLogger()})
	require.NoError(t, err)

	var done = make(chan error, 1)
	go func() {
		var _, rerr = a.ReceiveMPDU(context.Background())
		done <- rerr
	}()

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	select {
	case rerr := <-done:
		require.ErrorIs(t, rerr, ErrLinkClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("receive did not return after close")
	}

	require.ErrorIs(t, a.SendMPDU(context.Background(), []byte{1}), ErrLinkClosed)
}

// pipePort joins two io.Pipes into something that looks like a serial port.
type pipePort struct {
	io.Reader
	io.Writer
	closers []io.Closer
}

func (p *pipePort) Close() error {
	for _, c := range p.closers {
		_ = c.Close()
	}

	return nil
}

func newPipePorts() (*pipePort, *pipePort) {
	var ar, bw = io.Pipe()
	var br, aw = io.Pipe()

	return &pipePort{Reader: ar, Writer: aw, closers: []io.Closer{ar, aw}},
		&pipePort{Reader: br, Writer: bw, closers: []io.Closer{br, bw}}
}

func TestSerialLinkKISS(t *testing.T) {
	var pa, pb = newPipePorts()
	var a = NewSerialLink(pa, quietLogger())
	var b = NewSerialLink(pb, quietLogger())

	defer a.Close()
	defer b.Close()

	var ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mpdu = []byte{FEND, 0x01, FESC, 0x02}

	go func() { _ = a.SendMPDU(ctx, mpdu) }()

	var got, err = b.ReceiveMPDU(ctx)
	require.NoError(t, err)
	assert.Equal(t, mpdu, got)
}

func TestSerialLinkIgnoresOtherCommands(t *testing.T) {
	var pa, pb = newPipePorts()
	var b = NewSerialLink(pb, quietLogger())
	defer b.Close()

	go func() {
		_, _ = pa.Write(KISSEncapsulate([]byte{KISS_CMD_SET_HARDWARE, 'x'}))
		_, _ = pa.Write(KISSDataFrame(0, []byte("mpdu")))
	}()

	var ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got, err = b.ReceiveMPDU(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("mpdu"), got)

	_ = pa.Close()
}

func TestSerialLinkEOF(t *testing.T) {
	var pa, pb = newPipePorts()
	var b = NewSerialLink(pb, quietLogger())

	require.NoError(t, pa.Close())

	var ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var _, err = b.ReceiveMPDU(ctx)
	require.ErrorIs(t, err, ErrLinkClosed)

	require.ErrorIs(t, b.SendMPDU(ctx, []byte{1}), ErrLinkClosed)
}
