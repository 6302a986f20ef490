package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementChannels is the measurement holding per-device channel values.
const MeasurementChannels = "motion_channels"

// WriteDeviceChannels queues one point for a device in one frame.
//
// The point is tagged with the node name and key so queries can select a
// device by either. Fields are named after the requested channels:
//
//	motion_channels,device=Hips,key=1 Lqw=1,Lqx=0,...,cz=0.2 <ts>
//
// Empty channel maps and writes after Close are dropped.
func (c *Client) WriteDeviceChannels(device string, key uint32, channels map[string]float64, ts time.Time) {
	if len(channels) == 0 {
		return
	}

	c.mu.Lock()
	if c.closed || c.writeAPI == nil {
		c.mu.Unlock()
		return
	}
	c.points++
	c.mu.Unlock()

	fields := make(map[string]any, len(channels))
	for name, v := range channels {
		fields[name] = v
	}

	tags := map[string]string{
		"device": device,
		"key":    strconv.FormatUint(uint64(key), 10),
	}
	c.writeAPI.WritePoint(write.NewPoint(MeasurementChannels, tags, fields, ts))
}
