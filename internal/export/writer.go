package export

import (
	"bufio"
	"io"
	"math"
	"strconv"

	"github.com/nerrad567/motioncsv/internal/motion"
)

// Format controls how rows are rendered.
type Format struct {
	// Separator goes between columns. Default ",".
	Separator string

	// Newline terminates every row. Default "\n".
	Newline string

	// Precision is the number of significant digits per value.
	// -1 selects the shortest representation that round-trips.
	Precision int
}

// DefaultFormat is comma separated with six significant digits.
func DefaultFormat() Format {
	return Format{Separator: ",", Newline: "\n", Precision: 6}
}

// Writer renders rows of text columns.
//
// Each row is flushed to the underlying writer as soon as it is complete so
// a consumer tailing the output sees whole rows.
type Writer struct {
	w   *bufio.Writer
	fmt Format
}

// NewWriter returns a Writer on w.
func NewWriter(w io.Writer, f Format) *Writer {
	if f.Newline == "" {
		f.Newline = "\n"
	}
	return &Writer{w: bufio.NewWriter(w), fmt: f}
}

// WriteRow writes fields joined by the separator and ends the row.
func (w *Writer) WriteRow(fields []string) error {
	for i, field := range fields {
		if i > 0 {
			w.w.WriteString(w.fmt.Separator)
		}
		w.w.WriteString(field)
	}
	w.w.WriteString(w.fmt.Newline)

	if err := w.w.Flush(); err != nil {
		return err
	}
	return nil
}

// WriteFrame writes every channel of every device as one row.
func (w *Writer) WriteFrame(frame motion.Frame) error {
	fields := make([]string, 0, frame.ChannelCount())
	for _, e := range frame {
		for _, v := range e.Channels {
			fields = append(fields, FormatValue(v, w.fmt.Precision))
		}
	}
	return w.WriteRow(fields)
}

// FormatValue renders v with the given number of significant digits, using
// exponent notation only for very large or small magnitudes. Non-finite
// values are written as nan, inf and -inf.
func FormatValue(v float32, precision int) string {
	f := float64(v)
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'g', precision, 32)
}
