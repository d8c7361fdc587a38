package uhfmac

/*------------------------------------------------------------------
 *
 * Purpose:   	Radio link over a serial port, one MPDU per KISS data frame.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/pkg/term"
)

type SerialLink struct {
	port   io.ReadWriteCloser
	logger *log.Logger

	writeMu sync.Mutex
	rx      chan []byte
	done    chan struct{}
	once    sync.Once
	err     error // Why the reader stopped.  Valid once done is closed.
}

/*-------------------------------------------------------------------
 *
 * Name:	OpenSerialLink
 *
 * Purpose:	Open serial port.
 *
 * Inputs:	devicename	- Usually like /dev/ttyUSB0.
 *
 *		baud		- Speed.  1200, 4800, 9600 bps, etc.
 *				  If 0, leave it alone.
 *
 *---------------------------------------------------------------*/

func OpenSerialLink(devicename string, baud int, logger *log.Logger) (*SerialLink, error) {
	var opts = []func(*term.Term) error{term.RawMode}

	switch baud {
	case 0: // Leave it alone.
	case 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200:
		opts = append(opts, term.Speed(baud))
	default:
		return nil, fmt.Errorf("serial port %s: unsupported speed %d", devicename, baud)
	}

	var fd, err = term.Open(devicename, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not open serial port %s: %w", devicename, err)
	}

	return NewSerialLink(fd, logger), nil
}

// NewSerialLink runs the KISS link over an already open port.
func NewSerialLink(port io.ReadWriteCloser, logger *log.Logger) *SerialLink {
	if logger == nil {
		logger = log.Default()
	}

	var s = &SerialLink{ //nolint:exhaustruct
		port:   port,
		logger: logger.WithPrefix("serial"),
		rx:     make(chan []byte, 16),
		done:   make(chan struct{}),
	}

	go s.listen()

	return s
}

// listen reads bytes from the port and pulls out KISS data frames.
func (s *SerialLink) listen() {
	var kf KISSDecoder
	var buf = make([]byte, 256)

	for {
		var n, err = s.port.Read(buf)

		for _, ch := range buf[:n] {
			var frame, ferr = kf.Feed(ch)
			if ferr != nil {
				s.logger.Debug("Bad KISS frame", "err", ferr)
				continue
			}

			if frame == nil {
				continue
			}

			var _, payload, serr = SplitKISSDataFrame(frame)
			if serr != nil {
				s.logger.Debug("Ignoring KISS frame", "err", serr)
				continue
			}

			select {
			case s.rx <- slices.Clone(payload):
			case <-s.done:
				return
			}
		}

		if err != nil {
			s.stop(err)

			return
		}
	}
}

func (s *SerialLink) stop(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}

func (s *SerialLink) SendMPDU(ctx context.Context, mpdu []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case <-s.done:
		return ErrLinkClosed
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var frame = KISSDataFrame(0, mpdu)

	var written, err = s.port.Write(frame)
	if err != nil || written != len(frame) {
		return fmt.Errorf("serial write %d of %d bytes: %w", written, len(frame), err)
	}

	return nil
}

func (s *SerialLink) ReceiveMPDU(ctx context.Context) ([]byte, error) {
	select {
	case mpdu := <-s.rx:
		return mpdu, nil
	case <-s.done:
		if s.err != nil && s.err != io.EOF { //nolint:errorlint
			return nil, fmt.Errorf("%w: %w", ErrLinkClosed, s.err)
		}

		return nil, ErrLinkClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *SerialLink) Close() error {
	s.stop(nil)

	return s.port.Close()
}
