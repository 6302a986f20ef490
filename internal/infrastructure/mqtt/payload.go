package mqtt

import "time"

// FramePayload is the JSON body published for each captured frame.
//
//	{"seq":1,"timestamp":"...","devices":[{"key":1,"name":"Hips","channels":{"Lqw":1,...}}]}
type FramePayload struct {
	Seq       int             `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	Devices   []DevicePayload `json:"devices"`
}

// DevicePayload carries the channel values of one device.
type DevicePayload struct {
	Key      uint32             `json:"key"`
	Name     string             `json:"name,omitempty"`
	Channels map[string]float32 `json:"channels"`
}
