// Package motiontest provides an in-process Motion Service for tests.
//
// The server accepts a single TCP connection on 127.0.0.1 and hands it to a
// Handler, which scripts the service side of the conversation.
package motiontest

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/motioncsv/internal/motion"
)

// Handler scripts the service side of one connection.
type Handler func(c *Conn)

// Server simulates a Motion Service listening on a loopback port.
type Server struct {
	listener net.Listener
	handler  Handler

	mu       sync.Mutex
	conn     net.Conn
	received [][]byte

	done chan struct{}
	wg   sync.WaitGroup
}

// NewServer starts a server that runs handler on the first connection.
// The server is closed automatically when the test ends.
func NewServer(t testing.TB, handler Handler) *Server {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create listener: %v", err)
	}

	s := &Server{
		listener: listener,
		handler:  handler,
		done:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.acceptLoop()

	t.Cleanup(s.Close)
	return s
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	conn, err := s.listener.Accept()
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	if s.handler != nil {
		s.handler(&Conn{conn: conn, server: s})
	}
}

// Address returns the listening address in host:port form.
func (s *Server) Address() string {
	return s.listener.Addr().String()
}

// Received returns copies of the messages the client sent.
func (s *Server) Received() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]byte, len(s.received))
	copy(out, s.received)
	return out
}

// Close stops the server and closes the active connection.
func (s *Server) Close() {
	select {
	case <-s.done:
		return
	default:
		close(s.done)
	}

	s.listener.Close()
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Conn is the service end of one client connection.
type Conn struct {
	conn   net.Conn
	server *Server
}

// ReadMessage reads one length-prefixed message and records it.
func (c *Conn) ReadMessage() ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(c.conn, header[:]); err != nil {
		return nil, err
	}

	payload := make([]byte, binary.BigEndian.Uint32(header[:]))
	if _, err := io.ReadFull(c.conn, payload); err != nil {
		return nil, err
	}

	c.server.mu.Lock()
	c.server.received = append(c.server.received, payload)
	c.server.mu.Unlock()

	return payload, nil
}

// WriteMessage writes one length-prefixed message.
func (c *Conn) WriteMessage(payload []byte) error {
	_, err := c.conn.Write(motion.EncodeMessage(payload))
	return err
}

// WriteRaw writes bytes without framing, for malformed-stream tests.
func (c *Conn) WriteRaw(b []byte) error {
	_, err := c.conn.Write(b)
	return err
}

// WriteFrame encodes and writes a Configurable data frame.
func (c *Conn) WriteFrame(frame motion.Frame) error {
	return c.WriteMessage(motion.EncodeConfigurable(frame))
}

// Close closes the connection, which the client sees as end of stream.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Hold blocks until the client disconnects or the server closes.
func (c *Conn) Hold() {
	buf := make([]byte, 64)
	for {
		select {
		case <-c.server.done:
			return
		default:
		}

		c.conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond)) //nolint:errcheck // Test helper
		if _, err := c.conn.Read(buf); err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return
		}
	}
}

// Stream returns a Handler that behaves like the Configurable service: it
// waits for the channel request, sends nodeList (if not empty) and frames,
// then keeps the connection open until the client leaves.
func Stream(nodeList string, frames []motion.Frame) Handler {
	return func(c *Conn) {
		if _, err := c.ReadMessage(); err != nil {
			return
		}
		if nodeList != "" {
			if err := c.WriteMessage([]byte(nodeList)); err != nil {
				return
			}
		}
		for _, f := range frames {
			if err := c.WriteFrame(f); err != nil {
				return
			}
		}
		c.Hold()
	}
}

// NodeList renders a flat XML node list for the given key => name pairs.
func NodeList(names map[uint32]string, keys ...uint32) string {
	out := `<?xml version="1.0"?><configurable>`
	for _, k := range keys {
		out += `<node id="` + names[k] + `" key="` + strconv.FormatUint(uint64(k), 10) + `"/>`
	}
	return out + `</configurable>`
}
