package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/motioncsv/internal/infrastructure/config"
)

const (
	defaultPingTimeout = 5 * time.Second

	// drainTimeout bounds the wait for the last batch errors on Close.
	drainTimeout = 5 * time.Second

	// One point per device per frame, so batches fill quickly.
	defaultBatchSize     = 500
	defaultFlushInterval = 1

	millisecondsPerSecond = 1000
)

// Client writes capture frames to one InfluxDB bucket.
//
// Writes are batched by the underlying write API and never block the
// capture. Failed batches are reported through the SetOnError callback and
// counted, and Close reports them once the last batch has been sent.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	mu      sync.Mutex
	closed  bool
	points  int
	failed  int
	onError func(err error)

	// drained is closed when the write API error channel is exhausted.
	drained chan struct{}
}

// Connect creates a client for cfg and pings the server.
//
// The ping is bounded by ctx and a 5 second timeout, so an interrupted
// capture does not wait on an unreachable server.
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	// #nosec G115 -- values checked positive above
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.URL, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: %s: server not ready", ErrConnectionFailed, cfg.URL)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		drained:  make(chan struct{}),
	}
	go c.watchErrors(c.writeAPI.Errors())

	return c, nil
}

func (c *Client) watchErrors(errorsCh <-chan error) {
	defer close(c.drained)

	for err := range errorsCh {
		c.mu.Lock()
		c.failed++
		callback := c.onError
		c.mu.Unlock()

		if callback != nil {
			callback(err)
		}
	}
}

// SetOnError sets a callback for failed batch writes.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Close sends the pending batch and shuts the client down.
//
// Returns ErrWritesFailed if any batch was rejected during the capture.
// Calling Close more than once is a no-op.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.writeAPI.Flush()
	c.client.Close()

	select {
	case <-c.drained:
	case <-time.After(drainTimeout):
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failed > 0 {
		return fmt.Errorf("%w: %d of the batches for %d points", ErrWritesFailed, c.failed, c.points)
	}
	return nil
}

// Points returns the number of points queued since Connect.
func (c *Client) Points() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.points
}
