package mqtt

import "fmt"

// TopicPrefix is the root of every topic published by motioncsv.
const TopicPrefix = "motioncsv"

// Topics provides builders for motioncsv MQTT topics.
//
//	topics := mqtt.Topics{}
//	frameTopic := topics.Frame("studio-a")
//	// Returns: "motioncsv/studio-a/frame"
type Topics struct{}

// Frame returns the topic carrying one JSON message per captured frame.
//
// Example: motioncsv/studio-a/frame
func (Topics) Frame(clientID string) string {
	return fmt.Sprintf("%s/%s/frame", TopicPrefix, clientID)
}

// Status returns the retained online/offline status topic.
//
// Example: motioncsv/studio-a/status
func (Topics) Status(clientID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefix, clientID)
}
