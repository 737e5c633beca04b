package mqttout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/feedback-core/internal/output/controller"
)

type message struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type fakePublisher struct {
	connected bool
	err       error
	messages  []message
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, message{topic, append([]byte(nil), payload...), qos, retained})
	return nil
}

func (f *fakePublisher) IsConnected() bool { return f.connected }

func TestVerifySettings(t *testing.T) {
	pub := &fakePublisher{}
	tests := []struct {
		name string
		cfg  Config
		pub  Publisher
		ok   bool
	}{
		{"valid", Config{Name: "remote", Outputs: 64, QoS: 1}, pub, true},
		{"no outputs", Config{Name: "remote", Outputs: 0}, pub, false},
		{"too many outputs", Config{Name: "remote", Outputs: MaxOutputs + 1}, pub, false},
		{"bad qos", Config{Name: "remote", Outputs: 8, QoS: 3}, pub, false},
		{"no client", Config{Name: "remote", Outputs: 8}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.cfg, tt.pub).VerifySettings()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, controller.KindConfiguration, controller.KindOf(err))
		})
	}
}

func TestTopic(t *testing.T) {
	c := New(Config{Name: "backbox", Outputs: 4}, &fakePublisher{})
	assert.Equal(t, "feedback/output/backbox", c.Topic())
}

func TestConnectRequiresBroker(t *testing.T) {
	pub := &fakePublisher{}
	c := New(Config{Name: "remote", Outputs: 4}, pub)

	err := c.ConnectToController(context.Background())
	require.ErrorIs(t, err, ErrBrokerDown)
	assert.Equal(t, controller.KindConnection, controller.KindOf(err))

	pub.connected = true
	assert.NoError(t, c.ConnectToController(context.Background()))
}

func TestPublishesChangedFrames(t *testing.T) {
	pub := &fakePublisher{connected: true}
	ctrl := controller.New(New(Config{Name: "remote", Outputs: 4, QoS: 1}, pub))

	ctx := context.Background()
	require.NoError(t, ctrl.Init(ctx))

	ctrl.SetValue(1, 200)
	require.NoError(t, ctrl.Update(ctx))
	require.NoError(t, ctrl.Update(ctx))

	require.Len(t, pub.messages, 1, "unchanged frame must be skipped")
	assert.Equal(t, message{topic: "feedback/output/remote", payload: []byte{0, 200, 0, 0}, qos: 1}, pub.messages[0])

	require.NoError(t, ctrl.Finish())
	last := pub.messages[len(pub.messages)-1]
	assert.Equal(t, make([]byte, 4), last.payload, "finish publishes all off")
}

func TestPublishFailure(t *testing.T) {
	pub := &fakePublisher{connected: true, err: errors.New("not connected")}
	c := New(Config{Name: "remote", Outputs: 2}, pub)

	err := c.UpdateOutputs(context.Background(), []byte{1, 2})
	assert.Equal(t, controller.KindTransient, controller.KindOf(err))

	assert.ErrorIs(t, c.UpdateOutputs(context.Background(), []byte{1}), controller.ErrOutputCount)
}

func TestDisconnectWhileBrokerDown(t *testing.T) {
	pub := &fakePublisher{}
	c := New(Config{Name: "remote", Outputs: 2}, pub)
	assert.NoError(t, c.DisconnectFromController())
	assert.Empty(t, pub.messages, "nothing should be published while the broker is down")
}
