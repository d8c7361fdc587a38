package uhfmac

/*------------------------------------------------------------------
 *
 * Purpose:   	Act as a virtual KISS TNC for use by a CSP application
 *		that only knows how to talk to a serial port.
 *
 * Description:	This provides a pseudo terminal for communication with
 *		a client application.  It uses the same KISS data frames
 *		as the TCP server.
 *
 *		The pseudo terminal name is not the same every time, so
 *		a symlink with a fixed name points at it.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

const DEFAULT_KISS_PT_SYMLINK = "/tmp/uhfmac-kiss"

type KISSPseudoTerminalConfig struct {
	// Empty for no symlink.
	Symlink string

	Sender PacketSender
	Logger *log.Logger
}

type KISSPseudoTerminal struct {
	master  *os.File
	slave   *os.File
	symlink string
	sender  PacketSender
	logger  *log.Logger

	writeMu sync.Mutex
	once    sync.Once
}

// makeRaw is cfmakeraw.  No echo, no line editing, no character translation.
func makeRaw(f *os.File) error {
	var fd = int(f.Fd()) //nolint:gosec

	var t, err = unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return err
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8
	t.Cc[unix.VMIN] = 1  /* wait for at least one character */
	t.Cc[unix.VTIME] = 0 /* no fancy timing. */

	return unix.IoctlSetTermios(fd, ioctlSetTermios, t)
}

func OpenKISSPseudoTerminal(cfg KISSPseudoTerminalConfig) (*KISSPseudoTerminal, error) {
	if cfg.Sender == nil {
		return nil, errors.New("KISS pseudo terminal needs somewhere to send packets")
	}

	var ptmx, pts, err = pty.Open()
	if err != nil {
		return nil, fmt.Errorf("could not create pseudo terminal for KISS TNC: %w", err)
	}

	if err := makeRaw(pts); err != nil {
		_ = ptmx.Close()
		_ = pts.Close()

		return nil, fmt.Errorf("pseudo terminal raw mode: %w", err)
	}

	var logger = cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	var kp = &KISSPseudoTerminal{ //nolint:exhaustruct
		master: ptmx,
		slave:  pts,
		sender: cfg.Sender,
		logger: logger.WithPrefix("kisspt"),
	}

	kp.logger.Info("Virtual KISS TNC is available", "device", pts.Name())

	if cfg.Symlink != "" {
		_ = os.Remove(cfg.Symlink)

		if err := os.Symlink(pts.Name(), cfg.Symlink); err != nil {
			_ = kp.Close()

			return nil, fmt.Errorf("failed to create symlink %s: %w", cfg.Symlink, err)
		}

		kp.symlink = cfg.Symlink
		kp.logger.Info("Created symlink", "link", cfg.Symlink, "device", pts.Name())
	}

	return kp, nil
}

// Name of the terminal device the application should open.
func (kp *KISSPseudoTerminal) Name() string {
	return kp.slave.Name()
}

/*-------------------------------------------------------------------
 *
 * Name:        Serve
 *
 * Purpose:     Read messages from the KISS client application until
 *		ctx is done.
 *
 *--------------------------------------------------------------------*/

func (kp *KISSPseudoTerminal) Serve(ctx context.Context) error {
	var stop = context.AfterFunc(ctx, func() { _ = kp.Close() })
	defer stop()

	var kf KISSDecoder
	var buf = make([]byte, 512)

	for {
		var n, err = kp.master.Read(buf)

		kf.Write(buf[:n], func(frame []byte) {
			var packet, perr = packetFromKISSFrame(frame)
			if perr != nil {
				kp.logger.Debug("Ignoring KISS frame", "err", perr)
				return
			}

			if serr := kp.sender.TrySend(packet); serr != nil {
				kp.logger.Warn("Packet from client not queued", "err", serr)
			}
		})

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			kp.logger.Error("Error receiving KISS message from client application", "device", kp.slave.Name(), "err", err)
			_ = kp.Close()

			return fmt.Errorf("KISS pseudo terminal: %w", err)
		}
	}
}

// Broadcast sends a received CSP packet image to the client application.
func (kp *KISSPseudoTerminal) Broadcast(packet []byte) error {
	var frame, err = kissFrameFromPacket(packet)
	if err != nil {
		return err
	}

	kp.writeMu.Lock()
	defer kp.writeMu.Unlock()

	if _, err := kp.master.Write(frame); err != nil {
		return fmt.Errorf("KISS pseudo terminal write: %w", err)
	}

	return nil
}

func (kp *KISSPseudoTerminal) Close() error {
	kp.once.Do(func() {
		_ = kp.master.Close()
		_ = kp.slave.Close()

		if kp.symlink != "" {
			_ = os.Remove(kp.symlink)
		}
	})

	return nil
}
