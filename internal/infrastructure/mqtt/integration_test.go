//go:build integration

package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Integration tests against a live broker.
// These tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func subscriber(t *testing.T, topic string) <-chan []byte {
	t.Helper()

	received := make(chan []byte, 16)
	opts := pahomqtt.NewClientOptions().
		AddBroker("tcp://127.0.0.1:1883").
		SetClientID("motioncsv-int-subscriber")

	sub := pahomqtt.NewClient(opts)
	if token := sub.Connect(); !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("subscriber connect failed: %v", token.Error())
	}
	t.Cleanup(func() { sub.Disconnect(250) })

	token := sub.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		received <- msg.Payload()
	})
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("subscribe failed: %v", token.Error())
	}
	return received
}

func TestIntegration_PublishFrame(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "motioncsv-int-frame"

	frames := subscriber(t, Topics{}.Frame(cfg.Broker.ClientID))

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	want := FramePayload{
		Seq:       1,
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Devices:   []DevicePayload{{Key: 1, Name: "Hips", Channels: map[string]float32{"Lqw": 1}}},
	}
	if err := client.PublishFrame(want); err != nil {
		t.Fatalf("PublishFrame() error = %v", err)
	}

	select {
	case raw := <-frames:
		var got FramePayload
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("frame payload is not JSON: %v", err)
		}
		if got.Seq != 1 || len(got.Devices) != 1 || got.Devices[0].Name != "Hips" {
			t.Errorf("received %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for frame")
	}
}

func TestIntegration_StatusOnClose(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "motioncsv-int-status"

	status := subscriber(t, Topics{}.Status(cfg.Broker.ClientID))

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	client.Close()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case raw := <-status:
			var got StatusPayload
			if err := json.Unmarshal(raw, &got); err != nil {
				t.Fatalf("status payload is not JSON: %v", err)
			}
			if got.Status == StatusOffline && got.Reason == "capture_finished" {
				return
			}
		case <-deadline:
			t.Fatal("Timeout waiting for offline status")
		}
	}
}
