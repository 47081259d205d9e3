package net

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"openorders/internal/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	defaultNWorkers    = 10
	defaultConnTimeout = 30 * time.Second
)

var (
	ErrImproperConversion = errors.New("improper type conversion")
)

// Handler applies a broadcast cancellation. A returned error is reported
// back to the client.
type Handler interface {
	HandleCancel(ctx context.Context, msg CancelOrderMessage) error
}

// ClientSession contains relevant information pertaining to an individual
// connected TCP session.
type ClientSession struct {
	conn net.Conn
}

type Server struct {
	address            string
	port               int
	handler            Handler
	pool               *utils.WorkerPool
	connTimeout        time.Duration
	cancel             context.CancelFunc
	clientSessions     map[string]ClientSession
	clientSessionsLock sync.Mutex
}

func New(address string, port int, handler Handler) *Server {
	return &Server{
		address:        address,
		port:           port,
		handler:        handler,
		pool:           utils.NewWorkerPool(defaultNWorkers),
		connTimeout:    defaultConnTimeout,
		clientSessions: make(map[string]ClientSession),
	}
}

// SetConnTimeout sets how long a connection may stay idle.
func (s *Server) SetConnTimeout(timeout time.Duration) {
	s.connTimeout = timeout
}

func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is done. The listener is
// closed on return.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	// Setup a cancel on the context for future shutdown.
	ctx, s.cancel = context.WithCancel(ctx)
	t, _ := tomb.WithContext(ctx)

	// Start the worker pool.
	s.pool.Setup(t, s.handleConnection)

	// Unblock Accept and in-flight reads once dying.
	t.Go(func() error {
		<-t.Dying()
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
		s.closeClientSessions()
		return nil
	})

	// Start accepting connections.
	t.Go(func() error {
		log.Info().Str("address", listener.Addr().String()).Msg("server running")
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-t.Dying():
					return nil
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return nil
				}
				log.Error().Err(err).Msg("error accepting client")
				continue
			}

			log.Info().
				Str("address", conn.RemoteAddr().String()).
				Msg("new client added")
			s.addClientSession(conn)

			// Pass over the connection to be read from.
			if err := s.pool.AddTask(conn); err != nil {
				s.deleteClientSession(conn.RemoteAddr().String())
				conn.Close()
				return nil
			}
		}
	})

	err := t.Wait()
	s.pool.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// handleConnection is a worker method serving one connection until the
// client hangs up, goes idle, or the server dies. Each frame is answered
// with exactly one report.
// Note, any error returned from here is fatal.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}
	address := conn.RemoteAddr().String()
	ctx := t.Context(context.Background())

	defer func() {
		s.deleteClientSession(address)
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Error().Str("address", address).Err(err).Msg("unable to close connection")
		}
	}()

	for {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		// Set max idle timeout.
		if err := conn.SetDeadline(time.Now().Add(s.connTimeout)); err != nil {
			log.Error().
				Str("address", address).
				Err(err).
				Msg("failed setting deadline for connection")
			return nil
		}

		frame, err := readFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Error().
					Err(err).
					Str("address", address).
					Msg("error reading from connection")
			}
			return nil
		}

		reply, err := s.dispatch(ctx, frame)
		if err != nil {
			log.Error().
				Err(err).
				Str("address", address).
				Msg("error building report")
			return nil
		}
		if err := writeFrame(conn, reply); err != nil {
			log.Error().
				Err(err).
				Str("address", address).
				Msg("error writing report")
			return nil
		}
	}
}

// dispatch handles one frame and returns the serialized report.
func (s *Server) dispatch(ctx context.Context, frame []byte) ([]byte, error) {
	message, err := parseMessage(frame)
	if err != nil {
		return generateWireErrorReport(uuid.Nil, err)
	}

	switch msg := message.(type) {
	case CancelOrderMessage:
		log.Info().
			Str("tx", msg.TxID.String()).
			Str("order", msg.OrderID).
			Str("account", msg.Account).
			Msg("cancel order received")
		if err := s.handler.HandleCancel(ctx, msg); err != nil {
			return generateWireErrorReport(msg.TxID, err)
		}
		return generateWireAck(msg.TxID)
	default:
		return generateWireAck(uuid.Nil)
	}
}

// addClientSession is an atomic map add
func (s *Server) addClientSession(conn net.Conn) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	s.clientSessions[conn.RemoteAddr().String()] = ClientSession{
		conn: conn,
	}
}

// deleteClientSession is an atomic map remove
func (s *Server) deleteClientSession(address string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	delete(s.clientSessions, address)
}

func (s *Server) closeClientSessions() {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	for address, session := range s.clientSessions {
		session.conn.Close()
		delete(s.clientSessions, address)
	}
}
