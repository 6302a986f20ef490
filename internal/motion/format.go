package motion

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// elementHeaderSize is key(4) + count(4) in front of each element.
const elementHeaderSize = 8

// Element is the channel data for one device in one frame.
type Element struct {
	// Key identifies the device. It matches key="N" in the node list.
	Key uint32

	// Channels holds the requested channel values in request order.
	Channels []float32
}

// Frame is one sample from the Configurable service: one Element per device,
// ordered by ascending Key.
type Frame []Element

// ChannelCount returns the total number of channels across all devices.
func (f Frame) ChannelCount() int {
	n := 0
	for _, e := range f {
		n += len(e.Channels)
	}
	return n
}

// Keys returns the device keys in frame order.
func (f Frame) Keys() []uint32 {
	keys := make([]uint32, len(f))
	for i, e := range f {
		keys[i] = e.Key
	}
	return keys
}

// ParseConfigurable decodes a Configurable service data frame.
//
// Format (little-endian), repeated until the payload is consumed:
//
//	key(4) + count(4) + count * float32(4)
//
// Parameters:
//   - data: Frame payload as returned by Client.ReadData
//
// Returns:
//   - Frame: Elements ordered by ascending key
//   - error: Wrapping ErrInvalidFrame if the payload is truncated or a key repeats
func ParseConfigurable(data []byte) (Frame, error) {
	var frame Frame
	seen := make(map[uint32]bool)

	for offset := 0; offset < len(data); {
		if len(data)-offset < elementHeaderSize {
			return nil, fmt.Errorf("%w: truncated element header at offset %d", ErrInvalidFrame, offset)
		}

		key := binary.LittleEndian.Uint32(data[offset:])
		count := binary.LittleEndian.Uint32(data[offset+4:])
		offset += elementHeaderSize

		remaining := uint64(len(data) - offset)
		if uint64(count)*4 > remaining {
			return nil, fmt.Errorf("%w: element %d declares %d channels, only %d bytes left",
				ErrInvalidFrame, key, count, remaining)
		}

		if seen[key] {
			return nil, fmt.Errorf("%w: duplicate key %d", ErrInvalidFrame, key)
		}
		seen[key] = true

		channels := make([]float32, count)
		for i := range channels {
			channels[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[offset:]))
			offset += 4
		}

		frame = append(frame, Element{Key: key, Channels: channels})
	}

	sort.Slice(frame, func(i, j int) bool { return frame[i].Key < frame[j].Key })

	return frame, nil
}

// EncodeConfigurable is the inverse of ParseConfigurable.
func EncodeConfigurable(frame Frame) []byte {
	size := 0
	for _, e := range frame {
		size += elementHeaderSize + 4*len(e.Channels)
	}

	buf := make([]byte, 0, size)
	for _, e := range frame {
		buf = binary.LittleEndian.AppendUint32(buf, e.Key)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.Channels))) // #nosec G115 -- channel counts are small
		for _, v := range e.Channels {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
	}
	return buf
}
