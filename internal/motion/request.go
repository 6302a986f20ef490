package motion

import (
	"fmt"
	"strings"
)

// channelComponents lists the channels each Configurable group produces, in
// stream order. A channel's name is the group name plus its component.
var channelComponents = map[string][]string{
	"Gq":   {"w", "x", "y", "z"}, // global rotation quaternion
	"Gdq":  {"w", "x", "y", "z"}, // global delta quaternion
	"Lq":   {"w", "x", "y", "z"}, // local rotation quaternion
	"c":    {"w", "x", "y", "z"}, // positional constraint
	"r":    {"x", "y", "z"},      // Euler angles
	"la":   {"x", "y", "z"},      // linear acceleration
	"lv":   {"x", "y", "z"},      // linear velocity
	"lt":   {"x", "y", "z"},      // linear translation
	"a":    {"x", "y", "z"},      // accelerometer
	"m":    {"x", "y", "z"},      // magnetometer
	"g":    {"x", "y", "z"},      // gyroscope
	"temp": {""},                 // sensor temperature
}

// Request selects the channels the Configurable service should stream.
type Request struct {
	// Channels are group names, e.g. "Lq" or "c", in stream order.
	Channels []string

	// Inactive also streams nodes that have no sensor attached but are
	// animated as part of the skeleton.
	Inactive bool
}

// DefaultRequest selects the local quaternion (Lq) and positional
// constraint (c) groups for every node, 8 channels per device.
func DefaultRequest() Request {
	return Request{
		Channels: []string{"Lq", "c"},
		Inactive: true,
	}
}

// Validate checks that every group is known.
func (r Request) Validate() error {
	if len(r.Channels) == 0 {
		return fmt.Errorf("%w: no channels requested", ErrUnknownChannel)
	}
	for _, ch := range r.Channels {
		if _, ok := channelComponents[ch]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
		}
	}
	return nil
}

// XML renders the request document sent to the service.
func (r Request) XML() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?>`)
	if r.Inactive {
		b.WriteString(`<configurable inactive="1">`)
	} else {
		b.WriteString(`<configurable>`)
	}
	for _, ch := range r.Channels {
		b.WriteString("<" + ch + "/>")
	}
	b.WriteString(`</configurable>`)
	return b.String()
}

// Bytes returns the XML document as a message payload.
func (r Request) Bytes() []byte {
	return []byte(r.XML())
}

// ChannelNames returns the per-device channel names this request produces.
// For DefaultRequest: Lqw Lqx Lqy Lqz cw cx cy cz.
func (r Request) ChannelNames() ([]string, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	var names []string
	for _, ch := range r.Channels {
		for _, comp := range channelComponents[ch] {
			names = append(names, ch+comp)
		}
	}
	return names, nil
}

// ParseChannels splits a comma separated group list such as "Lq,c".
func ParseChannels(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
