package main

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/nerrad567/motioncsv/internal/export"
	"github.com/nerrad567/motioncsv/internal/infrastructure/mqtt"
	"github.com/nerrad567/motioncsv/internal/motion"
)

var defaultChannelNames = []string{"Lqw", "Lqx", "Lqy", "Lqz", "cw", "cx", "cy", "cz"}

func TestFramePayload(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	ts := time.Date(2026, 10, 19, 14, 30, 0, 0, time.FixedZone("CEST", 2*60*60))

	tests := []struct {
		name  string
		frame export.Frame
		want  []mqtt.DevicePayload
	}{
		{
			name: "named devices",
			frame: export.Frame{
				Data: motion.Frame{
					{Key: 1, Channels: []float32{1, 0, 0, 0, 0, 0.5, 1.5, 2}},
					{Key: 2, Channels: []float32{0, 1, 0, 0, 0, 0, 0, 3}},
				},
				Names:        motion.NameMap{1: "Hips", 2: "Chest"},
				ChannelNames: defaultChannelNames,
			},
			want: []mqtt.DevicePayload{
				{Key: 1, Name: "Hips", Channels: map[string]float32{
					"Lqw": 1, "Lqx": 0, "Lqy": 0, "Lqz": 0, "cw": 0, "cx": 0.5, "cy": 1.5, "cz": 2,
				}},
				{Key: 2, Name: "Chest", Channels: map[string]float32{
					"Lqw": 0, "Lqx": 1, "Lqy": 0, "Lqz": 0, "cw": 0, "cx": 0, "cy": 0, "cz": 3,
				}},
			},
		},
		{
			name: "no node list",
			frame: export.Frame{
				Data:         motion.Frame{{Key: 7, Channels: []float32{1, 2}}},
				ChannelNames: []string{"rx", "ry"},
			},
			want: []mqtt.DevicePayload{
				{Key: 7, Channels: map[string]float32{"rx": 1, "ry": 2}},
			},
		},
		{
			name: "non-finite values dropped",
			frame: export.Frame{
				Data:         motion.Frame{{Key: 1, Channels: []float32{nan, 0.25, inf, -inf, 0, 0, 0, 1}}},
				Names:        motion.NameMap{1: "Hips"},
				ChannelNames: defaultChannelNames,
			},
			want: []mqtt.DevicePayload{
				{Key: 1, Name: "Hips", Channels: map[string]float32{
					"Lqx": 0.25, "cw": 0, "cx": 0, "cy": 0, "cz": 1,
				}},
			},
		},
		{
			name: "extra channels labelled by index",
			frame: export.Frame{
				Data:         motion.Frame{{Key: 3, Channels: []float32{1, 0, 0, 0, 0, 0, 0, 0, 9, 10}}},
				Names:        motion.NameMap{3: "Head"},
				ChannelNames: defaultChannelNames,
			},
			want: []mqtt.DevicePayload{
				{Key: 3, Name: "Head", Channels: map[string]float32{
					"Lqw": 1, "Lqx": 0, "Lqy": 0, "Lqz": 0, "cw": 0, "cx": 0, "cy": 0, "cz": 0,
					"8": 9, "9": 10,
				}},
			},
		},
		{
			name:  "empty frame",
			frame: export.Frame{ChannelNames: defaultChannelNames},
			want:  []mqtt.DevicePayload{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.frame.Seq = 42
			tt.frame.Time = ts

			got := framePayload(tt.frame)

			if got.Seq != 42 {
				t.Errorf("Seq = %d, want 42", got.Seq)
			}
			if !got.Timestamp.Equal(ts) || got.Timestamp.Location() != time.UTC {
				t.Errorf("Timestamp = %v, want %v in UTC", got.Timestamp, ts.UTC())
			}
			if !reflect.DeepEqual(got.Devices, tt.want) {
				t.Errorf("Devices = %+v, want %+v", got.Devices, tt.want)
			}
		})
	}
}

func TestChannelName(t *testing.T) {
	tests := []struct {
		i    int
		want string
	}{
		{0, "Lqw"},
		{7, "cz"},
		{8, "8"},
		{12, "12"},
	}

	for _, tt := range tests {
		if got := channelName(defaultChannelNames, tt.i); got != tt.want {
			t.Errorf("channelName(%d) = %q, want %q", tt.i, got, tt.want)
		}
	}
}
