// Package export turns a Configurable motion stream into CSV rows.
//
// One frame becomes one row. Each device contributes one column per channel,
// devices in ascending key order. With the default request every device has
// eight channels:
//
//	Lqw Lqx Lqy Lqz   local unit quaternion, skeletal joint frame
//	cw                constraint weight, 0 unconstrained to 1 fully constrained
//	cx cy cz          global position in centimetres
//
// An optional header row labels each column "<node name>.<channel>", using the
// node list the service sends after the channel request.
//
// Frames may also be handed to FrameSink implementations (MQTT, InfluxDB,
// session log) alongside the CSV output.
package export
