package export

import (
	"fmt"

	"github.com/nerrad567/motioncsv/internal/motion"
)

// HeaderFields labels every column of frame as "<node name>.<channel>".
//
// Every device in the frame must be in names and carry exactly
// len(channelNames) channels.
func HeaderFields(frame motion.Frame, names motion.NameMap, channelNames []string) ([]string, error) {
	if frame.ChannelCount() == 0 {
		return nil, fmt.Errorf("%w: unable to print header", ErrUnknownFormat)
	}

	fields := make([]string, 0, frame.ChannelCount())
	for _, e := range frame {
		name, ok := names[e.Key]
		if !ok {
			return nil, fmt.Errorf("%w: key %d", ErrDeviceMissing, e.Key)
		}

		if len(e.Channels) != len(channelNames) {
			return nil, fmt.Errorf("%w: expected %d channels but found %d",
				ErrChannelCount, len(channelNames), len(e.Channels))
		}

		for _, ch := range channelNames {
			fields = append(fields, name+"."+ch)
		}
	}
	return fields, nil
}
