package uhfmac

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKISSPseudoTerminal(t *testing.T) {
	var sender = new(recordingSender)
	var link = filepath.Join(t.TempDir(), "kiss")

	var kp, err = OpenKISSPseudoTerminal(KISSPseudoTerminalConfig{Symlink: link, Sender: sender, Logger: quietLogger()})
	if err != nil {
		t.Skipf("no pseudo terminals here: %s", err)
	}

	var target, lerr = os.Readlink(link)
	require.NoError(t, lerr)
	assert.Equal(t, kp.Name(), target)

	var ctx, cancel = context.WithCancel(context.Background())
	var done = make(chan error, 1)
	go func() { done <- kp.Serve(ctx) }()

	// Application to us.
	var p = CSPPacket{ID: testID, Data: []byte("up")}
	var payload, _ = p.KISSPayload()
	_, err = kp.slave.Write(KISSDataFrame(0, payload))
	require.NoError(t, err)

	var want, _ = p.MarshalImage()
	require.Eventually(t, func() bool { return len(sender.sent()) == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, want, sender.sent()[0])

	// Us to application.
	var packet = cspImage(t, 30, 4)
	require.NoError(t, kp.Broadcast(packet))

	var frames = make(chan []byte, 1)
	go func() {
		var kf KISSDecoder
		var buf = make([]byte, 1)
		for {
			if _, rerr := kp.slave.Read(buf); rerr != nil {
				return
			}
			if frame, _ := kf.Feed(buf[0]); frame != nil {
				frames <- frame
				return
			}
		}
	}()

	select {
	case frame := <-frames:
		var got, perr = packetFromKISSFrame(frame)
		require.NoError(t, perr)
		assert.Equal(t, packet, got)
	case <-time.After(5 * time.Second):
		t.Fatal("nothing arrived on the pseudo terminal")
	}

	cancel()
	require.NoError(t, <-done)

	_, err = os.Lstat(link)
	assert.True(t, os.IsNotExist(err))
}
