package publish

import (
	"context"
	"errors"
	"github.com/dancavallaro/serial2influx/pkg/lineproto"
	"github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error, complete bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	payload string
}

// fakeClient embeds the interface so only the methods the mirror uses need
// implementing.
type fakeClient struct {
	mqtt.Client
	published    []published
	token        *fakeToken
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.published = append(c.published, published{topic, qos, payload.(string)})
	return c.token
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.disconnected = true
}

func TestMQTTMirrorPublishesLineProtocol(t *testing.T) {
	client := &fakeClient{token: newFakeToken(nil, true)}
	m := newMQTTMirror(client, "sensors/", 1)

	err := m.Mirror(context.Background(), lineproto.NewPoint("temperature,room=lab", 21.5))
	require.NoError(t, err)

	require.Len(t, client.published, 1)
	assert.Equal(t, published{"sensors/temperature", 1, "temperature,room=lab value=21.500000"}, client.published[0])
}

func TestMQTTMirrorTopicSanitised(t *testing.T) {
	m := newMQTTMirror(&fakeClient{}, "base", 0)
	assert.Equal(t, "base/a_b_c_d", m.topic("a/b+c#d"))
	assert.Equal(t, "base", m.topic(""))

	bare := newMQTTMirror(&fakeClient{}, "", 0)
	assert.Equal(t, "temp", bare.topic("temp"))
}

func TestMQTTMirrorPublishError(t *testing.T) {
	client := &fakeClient{token: newFakeToken(errors.New("not connected"), true)}
	m := newMQTTMirror(client, "sensors", 0)

	err := m.Mirror(context.Background(), lineproto.NewPoint("temp", 1))
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "mqtt", te.Sink)
	assert.Equal(t, "sensors/temp", te.URL)
	assert.Equal(t, "not connected", te.Message)
}

func TestMQTTMirrorCancelWhileWaiting(t *testing.T) {
	client := &fakeClient{token: newFakeToken(nil, false)}
	m := newMQTTMirror(client, "sensors", 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Mirror(ctx, lineproto.NewPoint("temp", 1)), context.Canceled)
}

func TestMQTTMirrorClose(t *testing.T) {
	client := &fakeClient{}
	m := newMQTTMirror(client, "sensors", 0)
	require.NoError(t, m.Close())
	assert.True(t, client.disconnected)
}

func TestNewMQTTMirrorRejectsQoS(t *testing.T) {
	_, err := NewMQTTMirror(MQTTMirrorConfig{BrokerAddress: "tcp://localhost:1883", QoS: 3})
	var ie *InitError
	assert.ErrorAs(t, err, &ie)
}
