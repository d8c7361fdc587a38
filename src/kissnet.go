package uhfmac

/*------------------------------------------------------------------
 *
 * Purpose:   	Provide service to CSP applications via KISS protocol via TCP socket.
 *
 * Description:	This provides a TCP socket for communication with a client
 *		application, typically libcsp's KISS interface pointed at
 *		a TCP to serial bridge, or a ground station script.
 *
 * 		Briefly, a frame is composed of
 *
 *			* FEND (0xC0)
 *			* Contents - with special escape sequences so a 0xc0
 *				byte in the data is not taken as end of frame.
 *			* FEND
 *
 *		Commands from application recognized:
 *
 *			_0	Data Frame	CSP identifier and data.
 *
 *			Anything else is ignored.
 *
 *		Messages sent to client application:
 *
 *			_0	Data Frame	CSP packet received over the radio.
 *
 *		Up to MAX_NET_CLIENTS applications can be connected at
 *		once.  Every one of them gets every received packet.
 *		Note that the client can go away and come back again and
 *		re-establish communication without restarting this application.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

// PacketSender takes CSP packet images from client applications.  Service
// implements it.
type PacketSender interface {
	TrySend(packet []byte) error
}

type KISSServerConfig struct {
	// "host:port" to listen on.  Port 0 picks one.
	Addr string

	Sender PacketSender

	// Also send data frames from one client to all the others.
	Copy bool

	Logger *log.Logger
}

type KISSServer struct {
	listener net.Listener
	sender   PacketSender
	copy     bool
	logger   *log.Logger

	mu      sync.Mutex
	clients [MAX_NET_CLIENTS]net.Conn
	wg      sync.WaitGroup
}

var ErrTooManyClients = errors.New("too many KISS clients")

// reuseAddr lets the daemon be restarted right away without waiting for
// the old socket to time out.
func reuseAddr(_, _ string, c syscall.RawConn) error {
	var sockErr error

	var err = c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}

	return sockErr
}

/*-------------------------------------------------------------------
 *
 * Name:        NewKISSServer
 *
 * Purpose:     Set up a server to listen for connection requests from
 *		a CSP application.
 *
 * Description:	Only binds the socket.  Serve accepts connections.
 *
 *--------------------------------------------------------------------*/

func NewKISSServer(ctx context.Context, cfg KISSServerConfig) (*KISSServer, error) {
	if cfg.Sender == nil {
		return nil, errors.New("KISS server needs somewhere to send packets")
	}

	var lc = net.ListenConfig{Control: reuseAddr} //nolint:exhaustruct

	var listener, err = lc.Listen(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("KISS TCP listen on %s: %w", cfg.Addr, err)
	}

	var logger = cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &KISSServer{ //nolint:exhaustruct
		listener: listener,
		sender:   cfg.Sender,
		copy:     cfg.Copy,
		logger:   logger.WithPrefix("kissnet"),
	}, nil
}

func (k *KISSServer) Addr() net.Addr {
	return k.listener.Addr()
}

// Port is the TCP port actually being listened on.
func (k *KISSServer) Port() int {
	if a, ok := k.listener.Addr().(*net.TCPAddr); ok {
		return a.Port
	}

	return 0
}

/*-------------------------------------------------------------------
 *
 * Name:        Serve
 *
 * Purpose:     Wait for connection requests until ctx is done.
 *
 * Description:	A connection beyond MAX_NET_CLIENTS is closed right away.
 *		Each client gets its own goroutine reading KISS frames.
 *		All clients are disconnected on return.
 *
 *--------------------------------------------------------------------*/

func (k *KISSServer) Serve(ctx context.Context) error {
	var stop = context.AfterFunc(ctx, func() { _ = k.listener.Close() })
	defer stop()

	k.logger.Info("Ready to accept KISS TCP clients", "addr", k.listener.Addr())

	for {
		var conn, err = k.listener.Accept()
		if err != nil {
			k.disconnectAll()
			k.wg.Wait()

			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("KISS TCP accept: %w", err)
		}

		var client, aerr = k.attach(conn)
		if aerr != nil {
			k.logger.Warn("Refusing KISS client", "remote", conn.RemoteAddr(), "err", aerr)
			_ = conn.Close()

			continue
		}

		k.logger.Info("Connected to KISS client application", "client", client, "remote", conn.RemoteAddr())

		k.wg.Add(1)

		go func() {
			defer k.wg.Done()
			k.listen(client, conn)
		}()
	}
}

func (k *KISSServer) attach(conn net.Conn) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for c := range MAX_NET_CLIENTS {
		if k.clients[c] == nil {
			k.clients[c] = conn
			return c, nil
		}
	}

	return -1, fmt.Errorf("%w: limit is %d", ErrTooManyClients, MAX_NET_CLIENTS)
}

func (k *KISSServer) detach(client int, conn net.Conn) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.clients[client] == conn {
		k.clients[client] = nil
	}

	_ = conn.Close()
}

func (k *KISSServer) disconnectAll() {
	k.mu.Lock()
	defer k.mu.Unlock()

	for c, conn := range k.clients {
		if conn != nil {
			_ = conn.Close()
			k.clients[c] = nil
		}
	}
}

// Clients is the number of connected client applications.
func (k *KISSServer) Clients() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	var n = 0
	for _, conn := range k.clients {
		if conn != nil {
			n++
		}
	}

	return n
}

/*-------------------------------------------------------------------
 *
 * Name:        listen
 *
 * Purpose:     Process messages from one client application.
 *
 *--------------------------------------------------------------------*/

func (k *KISSServer) listen(client int, conn net.Conn) {
	var kf KISSDecoder
	var buf = make([]byte, 1024)

	for {
		var n, err = conn.Read(buf)

		var bad = kf.Write(buf[:n], func(frame []byte) {
			k.fromClient(client, frame)
		})
		if bad > 0 {
			k.logger.Warn("Bad KISS frames from client", "client", client, "count", bad)
		}

		if err != nil {
			k.logger.Info("KISS client application has gone away", "client", client, "err", err)
			k.detach(client, conn)

			return
		}
	}
}

// fromClient handles one unwrapped KISS frame from a client.
func (k *KISSServer) fromClient(client int, frame []byte) {
	var packet, err = packetFromKISSFrame(frame)
	if err != nil {
		k.logger.Debug("Ignoring KISS frame from client", "client", client, "err", err)
		return
	}

	if err := k.sender.TrySend(packet); err != nil {
		k.logger.Warn("Packet from client not queued", "client", client, "err", err)
		return
	}

	if k.copy {
		k.send(KISSEncapsulate(frame), client)
	}
}

// packetFromKISSFrame turns a data frame, type indicator first, into a CSP
// packet image.
func packetFromKISSFrame(frame []byte) ([]byte, error) {
	var _, payload, err = SplitKISSDataFrame(frame)
	if err != nil {
		return nil, err
	}

	p, err := ParseCSPKISSPayload(payload)
	if err != nil {
		return nil, err
	}

	return p.MarshalImage()
}

// kissFrameFromPacket is the reverse of packetFromKISSFrame, FENDs included.
func kissFrameFromPacket(packet []byte) ([]byte, error) {
	var p, err = ParseCSPImage(packet)
	if err != nil {
		return nil, err
	}

	payload, err := p.KISSPayload()
	if err != nil {
		return nil, err
	}

	return KISSDataFrame(0, payload), nil
}

/*-------------------------------------------------------------------
 *
 * Name:        Broadcast
 *
 * Purpose:     Send a packet received over the radio to every
 *		attached client application.
 *
 * Inputs:	packet	- CSP packet image.
 *
 *--------------------------------------------------------------------*/

func (k *KISSServer) Broadcast(packet []byte) error {
	var frame, err = kissFrameFromPacket(packet)
	if err != nil {
		return err
	}

	k.send(frame, -1)

	return nil
}

// send writes a complete KISS frame to every client except skip.
func (k *KISSServer) send(frame []byte, skip int) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for c, conn := range k.clients {
		if conn == nil || c == skip {
			continue
		}

		if _, err := conn.Write(frame); err != nil {
			k.logger.Error("Error sending message to KISS client application. Closing connection.", "client", c, "err", err)
			_ = conn.Close()
			k.clients[c] = nil
		}
	}
}
