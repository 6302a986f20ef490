package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/motioncsv/internal/infrastructure/config"
	"github.com/nerrad567/motioncsv/internal/infrastructure/influxdb"
)

// fakeInflux stands in for the InfluxDB v2 HTTP API: it answers /ping and
// records every line protocol body posted to /api/v2/write.
type fakeInflux struct {
	*httptest.Server

	mu     sync.Mutex
	writes []string
	query  string
	reject bool
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()

	f := &fakeInflux{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			f.writes = append(f.writes, string(body))
			f.query = r.URL.RawQuery
			reject := f.reject
			f.mu.Unlock()
			if reject {
				http.Error(w, `{"code":"invalid","message":"bad line protocol"}`, http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeInflux) lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	for _, body := range f.writes {
		for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
			if line != "" {
				out = append(out, line)
			}
		}
	}
	return out
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "motioncsv-test-token",
		Org:           "motion",
		Bucket:        "capture",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func connect(t *testing.T, cfg config.InfluxDBConfig) *influxdb.Client {
	t.Helper()

	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConnect_Unreachable(t *testing.T) {
	// Reserve a port, then close it so nothing is listening.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create listener: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	_, err = influxdb.Connect(context.Background(), testConfig("http://"+addr))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_CancelledContext(t *testing.T) {
	// The server never answers the ping.
	stall := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-stall:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(stall)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err := influxdb.Connect(ctx, testConfig(server.URL))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Connect() took %v after cancel, want prompt return", elapsed)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	server := newFakeInflux(t)
	cfg := testConfig(server.URL)
	cfg.BatchSize = -5
	cfg.FlushInterval = 0

	client := connect(t, cfg)
	client.WriteDeviceChannels("Hips", 1, map[string]float64{"Lqw": 1}, time.Now())

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if lines := server.lines(); len(lines) != 1 {
		t.Errorf("lines written = %q, want 1", lines)
	}
}

// =============================================================================
// Write Tests
// =============================================================================

func TestWriteDeviceChannels(t *testing.T) {
	server := newFakeInflux(t)
	client := connect(t, testConfig(server.URL))

	ts := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	client.WriteDeviceChannels("Hips", 1, map[string]float64{"Lqw": 1, "cx": 0.5}, ts)
	client.WriteDeviceChannels("2", 2, map[string]float64{"Lqw": 0.25}, ts)

	if got := client.Points(); got != 2 {
		t.Errorf("Points() = %d, want 2", got)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	lines := server.lines()
	if len(lines) != 2 {
		t.Fatalf("lines written = %d (%q), want 2", len(lines), lines)
	}

	first := lines[0]
	for _, want := range []string{"motion_channels,", "device=Hips", "key=1", "Lqw=1", "cx=0.5", "1792411200000000000"} {
		if !strings.Contains(first, want) {
			t.Errorf("line %q missing %q", first, want)
		}
	}
	if !strings.Contains(lines[1], "device=2") {
		t.Errorf("line %q missing device=2", lines[1])
	}

	server.mu.Lock()
	query := server.query
	server.mu.Unlock()
	if !strings.Contains(query, "bucket=capture") || !strings.Contains(query, "org=motion") {
		t.Errorf("write query = %q, want org and bucket", query)
	}
}

func TestWriteDeviceChannels_EmptyIsSkipped(t *testing.T) {
	server := newFakeInflux(t)
	client := connect(t, testConfig(server.URL))

	client.WriteDeviceChannels("Hips", 1, nil, time.Now())
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if lines := server.lines(); len(lines) != 0 {
		t.Errorf("lines written = %q, want none", lines)
	}
	if client.Points() != 0 {
		t.Errorf("Points() = %d, want 0", client.Points())
	}
}

func TestWriteAfterClose(t *testing.T) {
	server := newFakeInflux(t)
	client := connect(t, testConfig(server.URL))

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Must not panic, and nothing is sent.
	client.WriteDeviceChannels("Hips", 1, map[string]float64{"Lqw": 1}, time.Now())

	if lines := server.lines(); len(lines) != 0 {
		t.Errorf("lines written after Close = %q, want none", lines)
	}
	// Second close is a no-op
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestClose_RejectedBatches(t *testing.T) {
	server := newFakeInflux(t)
	server.mu.Lock()
	server.reject = true
	server.mu.Unlock()

	client := connect(t, testConfig(server.URL))

	var (
		mu       sync.Mutex
		reported []error
	)
	client.SetOnError(func(err error) {
		mu.Lock()
		reported = append(reported, err)
		mu.Unlock()
	})

	client.WriteDeviceChannels("Hips", 1, map[string]float64{"Lqw": 1}, time.Now())

	err := client.Close()
	if !errors.Is(err, influxdb.ErrWritesFailed) {
		t.Errorf("Close() error = %v, want ErrWritesFailed", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(reported) == 0 {
		t.Error("SetOnError callback not called for rejected batch")
	}
}

func TestClose_ZeroClient(t *testing.T) {
	client := &influxdb.Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on zero client = %v", err)
	}
}
