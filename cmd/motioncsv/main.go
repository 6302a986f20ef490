// motioncsv streams channel data from a running motion service to CSV.
//
// It connects to the Configurable data service, requests the local
// quaternion and positional constraint channels of every device, and writes
// one CSV row per frame to a file or standard output. Frames can also be
// published to MQTT, written to InfluxDB, and logged as capture sessions in
// SQLite, each enabled from the configuration file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	_ "github.com/nerrad567/motioncsv/migrations"

	"github.com/nerrad567/motioncsv/internal/capture"
	"github.com/nerrad567/motioncsv/internal/export"
	"github.com/nerrad567/motioncsv/internal/infrastructure/config"
	"github.com/nerrad567/motioncsv/internal/infrastructure/database"
	"github.com/nerrad567/motioncsv/internal/infrastructure/influxdb"
	"github.com/nerrad567/motioncsv/internal/infrastructure/logging"
	"github.com/nerrad567/motioncsv/internal/infrastructure/mqtt"
	"github.com/nerrad567/motioncsv/internal/motion"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// configEnvVar selects a configuration file when --config is not given.
const configEnvVar = "MOTIONCSV_CONFIG"

// stdoutName is recorded as the output of sessions written to standard output.
const stdoutName = "-"

func main() {
	// Ctrl+C ends the capture cleanly.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// options holds the command-line flags.
type options struct {
	file       string
	frames     int
	header     bool
	address    string
	port       int
	separator  string
	newline    string
	channels   string
	configPath string
}

func (o *options) addFlags(fs *pflag.FlagSet) {
	defaults := config.Default()

	fs.StringVar(&o.file, "file", "", "output file (default standard output)")
	fs.IntVar(&o.frames, "frames", 0, "read N frames, 0 streams until interrupted")
	fs.BoolVar(&o.header, "header", false, "show channel names in the first row")
	fs.StringVar(&o.address, "address", defaults.Service.Host, "motion service host")
	fs.IntVar(&o.port, "port", defaults.Service.Port, "motion service port")
	fs.StringVar(&o.separator, "separator", defaults.Output.Separator, `value separator, escapes such as \t are allowed`)
	fs.StringVar(&o.newline, "newline", `\n`, `row terminator, escapes such as \r\n are allowed`)
	fs.StringVar(&o.channels, "channels", strings.Join(defaults.Service.Channels, ","), "comma separated channel groups to request, e.g. Lq,c or Gq,r")
	fs.StringVar(&o.configPath, "config", "", "YAML configuration file (env "+configEnvVar+")")
}

// usageError marks errors caused by the command line itself.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Cancelling ctx stops the capture cleanly
//   - args: Command-line arguments without the program name
//   - stdout: CSV destination when --file is not given
//   - stderr: Usage, error messages and logs
//
// Returns:
//   - int: Process exit code, 0 on success, --help or interruption
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	var usage usageError
	if errors.As(err, &usage) {
		fmt.Fprintf(stderr, "\n%s", cmd.UsageString())
	}
	return 1
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "motioncsv [options...]",
		Short: "Stream motion service channel data to CSV",
		Long: `Stream motion service channel data to CSV.

Connects to the Configurable data service, requests the local quaternion
(Lq) and positional constraint (c) channels of every device, and writes
one row per frame: 8 columns per device, devices in ascending key order.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError{fmt.Errorf("unrecognized option %q", args[0])}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCapture(cmd.Context(), cmd.Flags(), opts, stdout, stderr)
		},
	}

	cmd.SetOut(stderr)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
	opts.addFlags(cmd.Flags())

	return cmd
}

// loadConfig reads the configuration file, then applies the flags the user set.
func loadConfig(fs *pflag.FlagSet, opts *options) (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		path = os.Getenv(configEnvVar)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if fs.Changed("address") {
		cfg.Service.Host = opts.address
	}
	if fs.Changed("port") {
		cfg.Service.Port = opts.port
	}
	if fs.Changed("separator") {
		cfg.Output.Separator = unescape(opts.separator)
	}
	if fs.Changed("newline") {
		cfg.Output.Newline = unescape(opts.newline)
	}
	if fs.Changed("channels") {
		cfg.Service.Channels = motion.ParseChannels(opts.channels)
	}
	if opts.header {
		cfg.Output.Header = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, usageError{err}
	}
	if err := channelRequest(cfg).Validate(); err != nil {
		return nil, usageError{err}
	}
	if opts.file == "" && strings.EqualFold(cfg.Logging.Output, "stdout") {
		return nil, usageError{errors.New("logging.output stdout needs --file, standard output carries the CSV rows")}
	}
	return cfg, nil
}

// channelRequest builds the Configurable request selected in cfg.
func channelRequest(cfg *config.Config) motion.Request {
	return motion.Request{
		Channels: cfg.Service.Channels,
		Inactive: cfg.Service.Inactive,
	}
}

// unescape interprets Go escape sequences such as \t and \r\n. A value that
// is not a valid escaped string is used as given.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	if v, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return v
	}
	return s
}

// runCapture connects to the service and streams frames until the frame
// limit, an error, or cancellation.
func runCapture(ctx context.Context, fs *pflag.FlagSet, opts *options, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(fs, opts)
	if err != nil {
		return err
	}

	log := logging.New(cfg.Logging, version, logging.Streams{Stdout: stdout, Stderr: stderr})

	out, outputName, err := openOutput(opts.file, stdout)
	if err != nil {
		return err
	}
	closeOutput := sync.OnceValue(out.Close)
	defer closeOutput() //nolint:errcheck // Closed explicitly once the stream ends

	client, err := motion.Connect(ctx, motion.Config{
		Address:        cfg.Address(),
		ConnectTimeout: cfg.Service.ConnectTimeout,
		ReadTimeout:    cfg.Service.ReadTimeout,
		MaxMessageSize: cfg.Service.MaxMessageSize,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to motion service on %s: %w", cfg.Address(), err)
	}
	defer client.Close()
	client.SetLogger(log.With("component", "motion"))
	log.Info("connected to motion service", "address", cfg.Address())

	sinks, err := openSinks(ctx, cfg, outputName, log)
	if err != nil {
		return err
	}
	defer sinks.close(log)

	result, err := export.Stream(ctx, client, out, export.Options{
		Request:     channelRequest(cfg),
		Header:      cfg.Output.Header,
		Frames:      opts.frames,
		WaitTimeout: cfg.Service.WaitTimeout,
		Format: export.Format{
			Separator: cfg.Output.Separator,
			Newline:   cfg.Output.Newline,
			Precision: cfg.Output.Precision,
		},
		Logger: log,
	}, sinks.frameSinks...)

	err = endCapture(ctx, err, closeOutput, sinks, log)

	if export.IsCancellation(err) {
		log.Info("capture interrupted", "frames", result.Frames)
		return nil
	}
	if err != nil {
		return err
	}

	stats := client.Stats()
	log.Info("capture complete",
		"frames", result.Frames,
		"devices", result.Devices,
		"bytes_rx", stats.BytesRx,
	)
	return nil
}

// endCapture closes the output, then records the outcome in the session
// log. A failed close turns a completed or interrupted capture into a
// failed one.
func endCapture(ctx context.Context, streamErr error, closeOutput func() error, sinks *sinkSet, log *logging.Logger) error {
	err := streamErr
	if closeErr := closeOutput(); closeErr != nil && (err == nil || export.IsCancellation(err)) {
		err = fmt.Errorf("closing output: %w", closeErr)
	}
	sinks.finish(ctx, err, log)
	return err
}

// nopCloser keeps the caller's stdout open.
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// openOutput creates or truncates path, or returns stdout when path is empty.
func openOutput(path string, stdout io.Writer) (io.WriteCloser, string, error) {
	if path == "" {
		return nopCloser{stdout}, stdoutName, nil
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644) // #nosec G302 G304 -- user-selected CSV output
	if err != nil {
		return nil, "", fmt.Errorf("opening output file: %w", err)
	}
	return f, path, nil
}

// sinkSet holds the optional frame consumers enabled in config.
type sinkSet struct {
	frameSinks []export.FrameSink
	recorder   *capture.Recorder
	closers    []func() error
}

// openSinks connects every sink enabled in cfg. On error, sinks opened so far
// are closed.
func openSinks(ctx context.Context, cfg *config.Config, outputName string, log *logging.Logger) (s *sinkSet, err error) {
	s = &sinkSet{}
	defer func() {
		if err != nil {
			s.close(log)
		}
	}()

	if cfg.Database.Enabled {
		db, err := database.Open(database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return s, fmt.Errorf("opening session log: %w", err)
		}
		s.closers = append(s.closers, db.Close)

		if err := db.Migrate(ctx); err != nil {
			return s, fmt.Errorf("running migrations: %w", err)
		}
		if err := db.HealthCheck(ctx); err != nil {
			return s, fmt.Errorf("checking session log: %w", err)
		}

		rec, err := capture.NewRecorder(ctx, capture.NewSQLiteRepository(db.DB), cfg.Address(), outputName)
		if err != nil {
			return s, fmt.Errorf("starting capture session: %w", err)
		}
		s.recorder = rec
		s.frameSinks = append(s.frameSinks, rec)
		log.Info("capture session started", "session_id", rec.ID(), "path", db.Path())
	}

	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return s, fmt.Errorf("connecting to MQTT: %w", err)
		}
		client.SetLogger(log)
		s.closers = append(s.closers, client.Close)
		if err := client.HealthCheck(ctx); err != nil {
			return s, fmt.Errorf("checking MQTT broker: %w", err)
		}
		s.frameSinks = append(s.frameSinks, &mqttSink{client: client})
		log.Info("MQTT connected",
			"broker", net.JoinHostPort(cfg.MQTT.Broker.Host, strconv.Itoa(cfg.MQTT.Broker.Port)),
			"topic", mqtt.Topics{}.Frame(cfg.MQTT.Broker.ClientID),
		)
	}

	if cfg.InfluxDB.Enabled {
		client, err := influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return s, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		client.SetOnError(func(err error) {
			log.Warn("InfluxDB write failed", "error", err)
		})
		s.closers = append(s.closers, func() error {
			err := client.Close()
			log.Info("InfluxDB closed", "points", client.Points())
			return err
		})
		s.frameSinks = append(s.frameSinks, &influxSink{client: client})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	return s, nil
}

// finish records the outcome of the stream in the session log.
func (s *sinkSet) finish(ctx context.Context, streamErr error, log *logging.Logger) {
	if s.recorder == nil {
		return
	}
	// The capture context is already cancelled after Ctrl+C.
	if err := s.recorder.Finish(context.WithoutCancel(ctx), streamErr); err != nil {
		log.Error("failed to finalise capture session", "error", err)
	}
}

// close shuts sinks down in reverse order of opening.
func (s *sinkSet) close(log *logging.Logger) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Error("error closing sink", "error", err)
		}
	}
	s.closers = nil
}
