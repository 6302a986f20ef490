package main

import (
	"context"
	"math"
	"strconv"

	"github.com/nerrad567/motioncsv/internal/export"
	"github.com/nerrad567/motioncsv/internal/infrastructure/influxdb"
	"github.com/nerrad567/motioncsv/internal/infrastructure/mqtt"
)

// mqttSink adapts the infrastructure MQTT client to export.FrameSink.
type mqttSink struct {
	client *mqtt.Client
}

func (s *mqttSink) WriteFrame(_ context.Context, f export.Frame) error {
	return s.client.PublishFrame(framePayload(f))
}

// framePayload converts a frame to its MQTT message. Channels are keyed by
// name and non-finite values are left out.
func framePayload(f export.Frame) mqtt.FramePayload {
	payload := mqtt.FramePayload{
		Seq:       f.Seq,
		Timestamp: f.Time.UTC(),
		Devices:   make([]mqtt.DevicePayload, 0, len(f.Data)),
	}

	for _, e := range f.Data {
		channels := make(map[string]float32, len(e.Channels))
		for i, v := range e.Channels {
			if isFinite(v) {
				channels[channelName(f.ChannelNames, i)] = v
			}
		}
		payload.Devices = append(payload.Devices, mqtt.DevicePayload{
			Key:      e.Key,
			Name:     f.Names[e.Key],
			Channels: channels,
		})
	}

	return payload
}

// influxSink adapts the InfluxDB client to export.FrameSink.
// Writes are batched by the client, so WriteFrame never blocks on the network.
type influxSink struct {
	client *influxdb.Client
}

func (s *influxSink) WriteFrame(_ context.Context, f export.Frame) error {
	for _, e := range f.Data {
		channels := make(map[string]float64, len(e.Channels))
		for i, v := range e.Channels {
			if isFinite(v) {
				channels[channelName(f.ChannelNames, i)] = float64(v)
			}
		}
		s.client.WriteDeviceChannels(f.Names.Name(e.Key), e.Key, channels, f.Time)
	}
	return nil
}

// channelName labels channel i, falling back to its index for devices that
// carry more channels than were requested.
func channelName(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return strconv.Itoa(i)
}

// isFinite reports whether v can be encoded as JSON or line protocol.
func isFinite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
