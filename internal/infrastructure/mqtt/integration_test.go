//go:build integration

package mqtt

import (
	"bytes"
	"testing"
	"time"

	"github.com/nerrad567/feedback-core/internal/infrastructure/config"
)

// These tests require a broker at 127.0.0.1:1883:
//
//	go test -tags=integration -count=1 ./internal/infrastructure/mqtt/...

func integrationClient(t *testing.T, clientID string) *Client {
	t.Helper()
	client, err := Connect(config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	})
	if err != nil {
		t.Fatalf("Connect(%s) error = %v", clientID, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

type received struct {
	topic   string
	payload []byte
}

func collect(t *testing.T, c *Client, topic string) <-chan received {
	t.Helper()
	ch := make(chan received, 16)
	err := c.Subscribe(topic, 1, func(topic string, payload []byte) error {
		ch <- received{topic: topic, payload: append([]byte(nil), payload...)}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe(%s) error = %v", topic, err)
	}
	if !c.HasSubscription(topic) {
		t.Fatalf("subscription %s not tracked", topic)
	}
	return ch
}

func await(t *testing.T, ch <-chan received) received {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
		return received{}
	}
}

// TestIntegration_LayerIngress publishes a layer write the way an external
// show controller would and checks the wildcard subscription decodes it.
func TestIntegration_LayerIngress(t *testing.T) {
	cabinet := integrationClient(t, "feedbackd-int-cabinet")
	show := integrationClient(t, "feedbackd-int-show")

	ch := collect(t, cabinet, Topics{}.AllToyLayers())

	payload := []byte(`{"r":255,"g":0,"b":0}`)
	if err := show.Publish(Topics{}.ToyLayer("flasher_left", 3), payload, 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	got := await(t, ch)
	toy, layer, ok := ParseToyLayer(got.topic)
	if !ok || toy != "flasher_left" || layer != 3 {
		t.Errorf("ParseToyLayer(%q) = %q, %d, %v", got.topic, toy, layer, ok)
	}
	if !bytes.Equal(got.payload, payload) {
		t.Errorf("payload = %s, want %s", got.payload, payload)
	}
}

// TestIntegration_OutputFrame verifies fire-and-forget QoS 0 frames arrive
// byte for byte.
func TestIntegration_OutputFrame(t *testing.T) {
	cabinet := integrationClient(t, "feedbackd-int-frames")
	viewer := integrationClient(t, "feedbackd-int-viewer")

	topic := Topics{}.Output("backbox")
	ch := collect(t, viewer, topic)

	frame := []byte{0, 64, 128, 255}
	if err := cabinet.Publish(topic, frame, 0, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if got := await(t, ch); !bytes.Equal(got.payload, frame) {
		t.Errorf("frame = %v, want %v", got.payload, frame)
	}
}

// TestIntegration_RetainedState checks that a subscriber arriving after the
// publish still sees the controller state.
func TestIntegration_RetainedState(t *testing.T) {
	cabinet := integrationClient(t, "feedbackd-int-state")

	topic := Topics{}.ControllerState("int-dmx")
	state := []byte(`{"state":"connected","previous":"verifying"}`)
	if err := cabinet.PublishRetained(topic, state); err != nil {
		t.Fatalf("PublishRetained() error = %v", err)
	}
	t.Cleanup(func() { cabinet.PublishRetained(topic, nil) })

	late := integrationClient(t, "feedbackd-int-late")
	if got := await(t, collect(t, late, topic)); !bytes.Equal(got.payload, state) {
		t.Errorf("retained state = %s, want %s", got.payload, state)
	}

	if err := late.Unsubscribe(topic); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if late.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after unsubscribe", late.SubscriptionCount())
	}
}
