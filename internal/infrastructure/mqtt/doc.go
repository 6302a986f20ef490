// Package mqtt publishes motioncsv capture frames to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect after the first connect
//   - One JSON message per frame on motioncsv/{client_id}/frame
//   - Retained online/offline status on motioncsv/{client_id}/status
//   - Last Will and Testament (LWT) for crash detection
//
// # Security Considerations
//
//   - Use TLS (cfg.Broker.TLS=true) when the broker is not on localhost
//   - Credentials are only sent when a username is configured
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishFrame(mqtt.FramePayload{Seq: 1, Timestamp: time.Now()})
package mqtt
