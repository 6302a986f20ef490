package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nerrad567/motioncsv/internal/motion"
)

// defaultWaitTimeout bounds the wait for the first message after the request.
const defaultWaitTimeout = 5 * time.Second

// Source is the part of motion.Client the pipeline needs.
type Source interface {
	WriteData(ctx context.Context, data []byte) error
	WaitForData(ctx context.Context, timeout time.Duration) error
	ReadData(ctx context.Context) ([]byte, error)
	XMLString() (string, bool)
}

// Ensure motion.Client implements Source.
var _ Source = (*motion.Client)(nil)

// Frame is a decoded sample handed to sinks.
type Frame struct {
	// Seq counts frames from 1.
	Seq int

	// Time is when the frame was read.
	Time time.Time

	// Data holds one element per device, ordered by key.
	Data motion.Frame

	// Names maps device keys to node names. May be empty.
	Names motion.NameMap

	// ChannelNames labels the channels of each device.
	ChannelNames []string
}

// FrameSink receives every frame written to the CSV output.
type FrameSink interface {
	WriteFrame(ctx context.Context, f Frame) error
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Options configures a Stream run.
type Options struct {
	// Request selects the channels. Zero value means motion.DefaultRequest().
	Request motion.Request

	// Header prints a row of column names before the first data row.
	Header bool

	// Frames stops the stream after this many frames. 0 streams until the
	// context is cancelled or the stream fails.
	Frames int

	// WaitTimeout bounds the wait for the first message. Default 5 seconds.
	WaitTimeout time.Duration

	// Format controls separators and number formatting.
	Format Format

	// Logger is optional.
	Logger Logger
}

// Result summarises a Stream run.
type Result struct {
	Frames  int
	Devices int
	Names   motion.NameMap
}

// Stream requests channels from src and writes one CSV row per frame to out.
//
// The steps are:
//  1. Send the channel request
//  2. Wait for the first message from the service
//  3. Read the node list, if a header was requested
//  4. Read frames, writing the header once and then one row per frame
//  5. Stop after opts.Frames frames, if set
//
// Parameters:
//   - ctx: Cancelling ctx stops the stream; the context error is returned
//   - src: Connected service client
//   - out: Destination for CSV rows
//   - opts: Stream options
//   - sinks: Optional extra consumers of each frame
//
// Returns:
//   - Result: Frame and device counts, and the node names seen
//   - error: One of the package sentinel errors, or the context error
func Stream(ctx context.Context, src Source, out io.Writer, opts Options, sinks ...FrameSink) (Result, error) {
	if len(opts.Request.Channels) == 0 {
		opts.Request = motion.DefaultRequest()
	}
	if opts.WaitTimeout == 0 {
		opts.WaitTimeout = defaultWaitTimeout
	}
	if opts.Format == (Format{}) {
		opts.Format = DefaultFormat()
	}

	channelNames, err := opts.Request.ChannelNames()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	s := &streamer{
		src:          src,
		opts:         opts,
		writer:       NewWriter(out, opts.Format),
		channelNames: channelNames,
		sinks:        sinks,
		printHeader:  opts.Header,
	}

	err = s.run(ctx)
	return s.result, err
}

// streamer holds the state of one Stream run.
type streamer struct {
	src          Source
	opts         Options
	writer       *Writer
	channelNames []string
	sinks        []FrameSink

	printHeader bool
	lastXML     string
	names       motion.NameMap

	result Result
}

func (s *streamer) run(ctx context.Context) error {
	if err := s.src.WriteData(ctx, s.opts.Request.Bytes()); err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	s.logDebug("channel request sent", "request", s.opts.Request.XML())

	if err := s.src.WaitForData(ctx, s.opts.WaitTimeout); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", ErrNoStream, err)
	}

	if err := s.refreshNames(); err != nil {
		return err
	}

	for {
		data, err := s.src.ReadData(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("%w: %w", ErrStreamInterrupted, err)
		}

		frame, err := motion.ParseConfigurable(data)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnknownFormat, err)
		}

		if err := s.refreshNames(); err != nil {
			return err
		}

		if err := s.writeFrame(ctx, frame); err != nil {
			return err
		}

		if s.opts.Frames > 0 && s.result.Frames >= s.opts.Frames {
			s.logDebug("frame limit reached", "frames", s.result.Frames)
			return nil
		}
	}
}

// refreshNames parses the service node list whenever a new one has arrived.
// A bad node list is fatal only while the header is still to be printed.
func (s *streamer) refreshNames() error {
	xml, ok := s.src.XMLString()
	if !ok || xml == s.lastXML {
		return nil
	}
	s.lastXML = xml

	names, err := motion.ParseNameMap(xml)
	if err != nil {
		if s.printHeader {
			return fmt.Errorf("%w: %w", ErrNameMap, err)
		}
		s.logWarn("ignoring unparsable node list", "error", err)
		return nil
	}

	s.names = names
	s.result.Names = names
	s.logDebug("node list received", "nodes", len(names))
	return nil
}

// writeFrame writes the header (once), the data row, and feeds the sinks.
func (s *streamer) writeFrame(ctx context.Context, frame motion.Frame) error {
	if s.printHeader {
		fields, err := HeaderFields(frame, s.names, s.channelNames)
		if err != nil {
			return err
		}
		if err := s.writer.WriteRow(fields); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
		s.printHeader = false
	}

	if frame.ChannelCount() == 0 {
		return ErrUnknownFormat
	}

	if err := s.writer.WriteFrame(frame); err != nil {
		return fmt.Errorf("writing row: %w", err)
	}

	s.result.Frames++
	if s.result.Frames == 1 || len(frame) != s.result.Devices {
		s.logDebug("device set", "frame", s.result.Frames, "keys", frame.Keys())
	}
	s.result.Devices = len(frame)

	f := Frame{
		Seq:          s.result.Frames,
		Time:         time.Now(),
		Data:         frame,
		Names:        s.names,
		ChannelNames: s.channelNames,
	}
	for _, sink := range s.sinks {
		if err := sink.WriteFrame(ctx, f); err != nil {
			return fmt.Errorf("%w: %w", ErrSinkFailed, err)
		}
	}

	return nil
}

func (s *streamer) logDebug(msg string, args ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Debug(msg, args...)
	}
}

func (s *streamer) logWarn(msg string, args ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Warn(msg, args...)
	}
}

// IsCancellation reports whether err only signals that ctx was cancelled,
// which callers treat as a clean stop.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
