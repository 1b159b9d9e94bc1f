package publish

import (
	"context"
	"fmt"
	"github.com/dancavallaro/serial2influx/pkg/lineproto"
	"github.com/eclipse/paho.mqtt.golang"
	"math/rand"
	"strings"
	"time"
)

type Logger interface {
	Println(v ...interface{})
	Printf(format string, v ...interface{})
}

type MQTTMirrorConfig struct {
	Username      string
	Password      string
	BrokerAddress string
	TopicPrefix   string
	QoS           byte
	Logger        Logger
	DebugLogger   Logger
}

// MQTTMirror republishes each point, as line protocol, to
// "<prefix>/<measurement>".
type MQTTMirror struct {
	client mqtt.Client
	prefix string
	qos    byte
}

func NewMQTTMirror(cfg MQTTMirrorConfig) (*MQTTMirror, error) {
	if cfg.QoS > 2 {
		return nil, &InitError{Sink: "mqtt", Err: fmt.Errorf("invalid qos %d", cfg.QoS)}
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerAddress)
	opts.SetClientID(generateClientId())
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(false)

	if cfg.Logger != nil {
		mqtt.ERROR = cfg.Logger
		mqtt.CRITICAL = cfg.Logger
		mqtt.WARN = cfg.Logger
	}
	if cfg.DebugLogger != nil {
		mqtt.DEBUG = cfg.DebugLogger
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, &InitError{Sink: "mqtt", Err: token.Error()}
	}

	return newMQTTMirror(client, cfg.TopicPrefix, cfg.QoS), nil
}

func newMQTTMirror(client mqtt.Client, prefix string, qos byte) *MQTTMirror {
	return &MQTTMirror{client: client, prefix: strings.TrimRight(prefix, "/"), qos: qos}
}

func (m *MQTTMirror) Name() string {
	return "mqtt"
}

func (m *MQTTMirror) Mirror(ctx context.Context, point lineproto.Point) error {
	name, _ := lineproto.SplitSeries(point.Series)
	topic := m.topic(name)

	token := m.client.Publish(topic, m.qos, false, point.String())
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return &TransportError{Sink: "mqtt", URL: topic, Message: err.Error(), Err: err}
	}
	return nil
}

func (m *MQTTMirror) Close() error {
	m.client.Disconnect(250)
	return nil
}

var topicReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_")

func (m *MQTTMirror) topic(measurement string) string {
	measurement = topicReplacer.Replace(measurement)
	switch {
	case m.prefix == "":
		return measurement
	case measurement == "":
		return m.prefix
	default:
		return m.prefix + "/" + measurement
	}
}

func generateClientId() string {
	now := time.Now().Unix()
	random := rand.Intn(1000000)
	return fmt.Sprintf("serial2influx-%v-%v", now, random)
}
