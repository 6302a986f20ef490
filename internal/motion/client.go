package motion

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Default timeouts and limits for service communication.
const (
	// DefaultAddress is the Configurable service on the loopback interface.
	DefaultAddress = "127.0.0.1:32076"

	// defaultConnectTimeout is the maximum time to wait for the TCP dial.
	defaultConnectTimeout = 5 * time.Second

	// defaultReadTimeout is the timeout for individual message reads.
	defaultReadTimeout = 5 * time.Second

	// defaultWriteTimeout is the timeout for write operations.
	defaultWriteTimeout = 5 * time.Second

	// defaultMaxMessageSize bounds a single message payload.
	defaultMaxMessageSize = 64 * 1024

	// headerSize is the length prefix in front of every message.
	headerSize = 4
)

// xmlPrefix marks a message payload as an XML string rather than a frame.
var xmlPrefix = []byte("<?xml")

// Config holds service connection configuration.
type Config struct {
	// Address is the service address in host:port form.
	// Default: 127.0.0.1:32076
	Address string

	// ConnectTimeout is the maximum time to wait for the TCP connection.
	// Default: 5 seconds.
	ConnectTimeout time.Duration

	// ReadTimeout is the timeout for ReadData.
	// Default: 5 seconds.
	ReadTimeout time.Duration

	// MaxMessageSize is the largest payload accepted, in bytes.
	// Default: 64 KiB.
	MaxMessageSize int
}

// Stats holds operational statistics.
type Stats struct {
	MessagesTx   uint64
	MessagesRx   uint64
	FramesRx     uint64 // Binary data frames
	XMLRx        uint64 // XML string messages
	BytesRx      uint64
	ErrorsTotal  uint64
	LastActivity time.Time
	Connected    bool
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Client is a connection to one Motion Service data stream.
//
// There is no automatic reconnection: once a read fails the stream is
// considered finished and the caller decides what to do.
type Client struct {
	cfg  Config
	conn net.Conn

	connMu    sync.RWMutex
	connected bool

	// Most recent XML string received from the service.
	xmlString string
	hasXML    bool
	xmlMu     sync.RWMutex

	// Frames received by WaitForData that ReadData has not returned yet.
	pending [][]byte

	done *closeOnce

	logger   Logger
	loggerMu sync.RWMutex

	messagesTx   atomic.Uint64
	messagesRx   atomic.Uint64
	framesRx     atomic.Uint64
	xmlRx        atomic.Uint64
	bytesRx      atomic.Uint64
	errorsTotal  atomic.Uint64
	lastActivity atomic.Int64 // Unix timestamp
}

// Connect opens a TCP connection to the service.
//
// Parameters:
//   - ctx: Context for cancellation of the dial
//   - cfg: Connection configuration
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: Wrapping ErrConnectionFailed if the dial fails
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(connectCtx, "tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, cfg.Address, err)
	}

	return newClient(conn, cfg), nil
}

// newClient wraps an established connection.
func newClient(conn net.Conn, cfg Config) *Client {
	c := &Client{
		cfg:       cfg,
		conn:      conn,
		connected: true,
		done:      newCloseOnce(),
	}
	c.lastActivity.Store(time.Now().Unix())
	return c
}

// WriteData sends one message to the service.
//
// The payload is prefixed with its 4-byte big-endian length.
//
// Parameters:
//   - ctx: Context for cancellation
//   - data: Message payload, typically an XML channel request
//
// Returns:
//   - error: Wrapping ErrWriteFailed, or ErrNotConnected
func (c *Client) WriteData(ctx context.Context, data []byte) error {
	conn, err := c.activeConn()
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrWriteFailed, ctx.Err())
	default:
	}

	msg := EncodeMessage(data)

	deadline := time.Now().Add(defaultWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: set deadline: %w", ErrWriteFailed, err)
	}

	if _, err := conn.Write(msg); err != nil {
		c.errorsTotal.Add(1)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	c.messagesTx.Add(1)
	c.lastActivity.Store(time.Now().Unix())
	c.logDebug("message sent", "bytes", len(data))

	return nil
}

// WaitForData blocks until the service sends any message.
//
// An XML message updates XMLString. A binary frame is kept and returned by
// the next ReadData call, so no data is lost.
//
// Parameters:
//   - ctx: Context for cancellation
//   - timeout: Maximum time to wait
//
// Returns:
//   - error: ErrTimeout, ErrStreamClosed, or another read failure
func (c *Client) WaitForData(ctx context.Context, timeout time.Duration) error {
	if len(c.pending) > 0 {
		return nil
	}

	payload, err := c.readMessage(ctx, timeout)
	if err != nil {
		return err
	}

	if !c.absorbXML(payload) {
		c.pending = append(c.pending, payload)
	}
	return nil
}

// ReadData returns the next binary data frame.
//
// XML messages that arrive in between are stored and skipped.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - []byte: The frame payload
//   - error: ErrTimeout, ErrStreamClosed, or another read failure
func (c *Client) ReadData(ctx context.Context) ([]byte, error) {
	if len(c.pending) > 0 {
		data := c.pending[0]
		c.pending = c.pending[1:]
		return data, nil
	}

	for {
		payload, err := c.readMessage(ctx, c.cfg.ReadTimeout)
		if err != nil {
			return nil, err
		}
		if !c.absorbXML(payload) {
			return payload, nil
		}
	}
}

// XMLString returns the most recent XML string sent by the service.
// The boolean is false if none has arrived yet.
func (c *Client) XMLString() (string, bool) {
	c.xmlMu.RLock()
	defer c.xmlMu.RUnlock()
	return c.xmlString, c.hasXML
}

// absorbXML stores payload as the current XML string if it is one.
func (c *Client) absorbXML(payload []byte) bool {
	if !IsXMLMessage(payload) {
		c.framesRx.Add(1)
		return false
	}

	c.xmlMu.Lock()
	c.xmlString = string(payload)
	c.hasXML = true
	c.xmlMu.Unlock()

	c.xmlRx.Add(1)
	c.logDebug("xml string received", "bytes", len(payload))
	return true
}

// readMessage reads a single length-prefixed message.
// The read is bounded by timeout and interrupted by ctx cancellation.
func (c *Client) readMessage(ctx context.Context, timeout time.Duration) ([]byte, error) {
	conn, err := c.activeConn()
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("%w: set deadline: %w", ErrReadFailed, err)
	}

	// Unblock the read as soon as ctx is cancelled.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Unix(1, 0)) //nolint:errcheck // Best effort wake-up
	})
	defer stop()

	var header [headerSize]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return nil, c.classifyReadError(ctx, "read size", err)
	}

	size := binary.BigEndian.Uint32(header[:])
	if uint64(size) > uint64(c.cfg.MaxMessageSize) {
		c.errorsTotal.Add(1)
		c.logError("oversized message, closing connection", fmt.Errorf("size %d exceeds limit %d", size, c.cfg.MaxMessageSize))
		c.Close() //nolint:errcheck // Close never fails
		return nil, fmt.Errorf("%w: message size %d exceeds limit %d", ErrProtocolDesync, size, c.cfg.MaxMessageSize)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return nil, c.classifyReadError(ctx, "read message", err)
	}

	c.messagesRx.Add(1)
	c.bytesRx.Add(uint64(headerSize) + uint64(size))
	c.lastActivity.Store(time.Now().Unix())

	return payload, nil
}

// classifyReadError maps a read failure onto the package sentinel errors.
func (c *Client) classifyReadError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	c.errorsTotal.Add(1)

	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %s", ErrTimeout, op)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
		c.markDisconnected()
		return fmt.Errorf("%w: %s: %w", ErrStreamClosed, op, err)
	default:
		c.markDisconnected()
		return fmt.Errorf("%w: %s: %w", ErrReadFailed, op, err)
	}
}

// activeConn returns the connection, or ErrNotConnected after Close.
func (c *Client) activeConn() (net.Conn, error) {
	if c.isClosed() {
		return nil, ErrNotConnected
	}

	c.connMu.RLock()
	defer c.connMu.RUnlock()
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

func (c *Client) markDisconnected() {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()
}

// isClosed returns true if the client has been closed.
func (c *Client) isClosed() bool {
	select {
	case <-c.done.Done():
		return true
	default:
		return false
	}
}

// Close closes the connection. Safe to call multiple times.
//
// Returns:
//   - error: nil (closing is best-effort)
func (c *Client) Close() error {
	c.done.Close()

	c.connMu.Lock()
	c.connected = false
	conn := c.conn
	c.connMu.Unlock()

	if conn != nil {
		conn.Close()
	}

	return nil
}

// SetLogger sets the logger for this client.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// IsConnected returns true until Close is called or the stream fails.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// HealthCheck reports whether the connection is still usable.
func (c *Client) HealthCheck(_ context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Stats returns current operational statistics.
func (c *Client) Stats() Stats {
	return Stats{
		MessagesTx:   c.messagesTx.Load(),
		MessagesRx:   c.messagesRx.Load(),
		FramesRx:     c.framesRx.Load(),
		XMLRx:        c.xmlRx.Load(),
		BytesRx:      c.bytesRx.Load(),
		ErrorsTotal:  c.errorsTotal.Load(),
		LastActivity: time.Unix(c.lastActivity.Load(), 0),
		Connected:    c.IsConnected(),
	}
}

// EncodeMessage prefixes payload with its 4-byte big-endian length.
func EncodeMessage(payload []byte) []byte {
	msg := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(msg[:headerSize], uint32(len(payload))) // #nosec G115 -- payloads are far below 4 GiB
	copy(msg[headerSize:], payload)
	return msg
}

// IsXMLMessage reports whether payload is an XML string message.
func IsXMLMessage(payload []byte) bool {
	return bytes.HasPrefix(payload, xmlPrefix)
}

func (c *Client) logDebug(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (c *Client) logError(msg string, err error) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
