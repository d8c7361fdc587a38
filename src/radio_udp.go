package uhfmac

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// UDPLink exchanges EnduroSat frames, one per datagram, with something like
// a GNU Radio flowgraph that does the actual modulation.
type UDPLink struct {
	conn   *net.UDPConn
	remote *net.UDPAddr
	logger *log.Logger

	pollInterval time.Duration
	closed       atomic.Bool

	BadFrames atomic.Uint64
}

type UDPLinkConfig struct {
	Local  string // "host:port" to receive on, ":0" for any.
	Remote string // "host:port" to send to.
	Logger *log.Logger
}

func NewUDPLink(cfg UDPLinkConfig) (*UDPLink, error) {
	var remote, err = net.ResolveUDPAddr("udp", cfg.Remote)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address %s: %w", cfg.Remote, err)
	}

	var local = cfg.Local
	if local == "" {
		local = ":0"
	}

	localAddr, err := net.ResolveUDPAddr("udp", local)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address %s: %w", local, err)
	}

	conn, err := net.ListenUDP("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", local, err)
	}

	var logger = cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &UDPLink{ //nolint:exhaustruct
		conn:         conn,
		remote:       remote,
		logger:       logger.WithPrefix("udp"),
		pollInterval: 250 * time.Millisecond,
	}, nil
}

func (u *UDPLink) LocalAddr() *net.UDPAddr {
	return u.conn.LocalAddr().(*net.UDPAddr) //nolint:forcetypeassert
}

func (u *UDPLink) SendMPDU(ctx context.Context, mpdu []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if u.closed.Load() {
		return ErrLinkClosed
	}

	var frame, err = EncodeESFrame(mpdu)
	if err != nil {
		return err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = u.conn.SetWriteDeadline(deadline)
	}

	_, err = u.conn.WriteToUDP(frame, u.remote)
	if err != nil {
		return fmt.Errorf("udp send to %s: %w", u.remote, err)
	}

	return nil
}

/*-------------------------------------------------------------------
 *
 * Name:	ReceiveMPDU
 *
 * Purpose:	Wait for the next good frame.
 *
 * Description:	Reads time out every pollInterval so a cancelled
 *		context is noticed.  Datagrams that are not valid
 *		EnduroSat frames are counted and skipped.
 *
 *---------------------------------------------------------------*/

func (u *UDPLink) ReceiveMPDU(ctx context.Context) ([]byte, error) {
	var buffer = make([]byte, 2048)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if u.closed.Load() {
			return nil, ErrLinkClosed
		}

		_ = u.conn.SetReadDeadline(time.Now().Add(u.pollInterval))

		var n, from, err = u.conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			if u.closed.Load() {
				return nil, ErrLinkClosed
			}

			return nil, fmt.Errorf("udp receive: %w", err)
		}

		var data, derr = DecodeESFrame(buffer[:n])
		if derr != nil {
			u.BadFrames.Add(1)
			u.logger.Debug("Bad frame", "from", from, "err", derr, "frame", "\n"+hexDump(buffer[:n]))

			continue
		}

		return data, nil
	}
}

func (u *UDPLink) Close() error {
	if u.closed.Swap(true) {
		return nil
	}

	return u.conn.Close()
}
