package output

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/shaunagostinho/relalt/internal/altitude"
	"github.com/shaunagostinho/relalt/internal/pipeline"
)

// MQTTConfig holds broker settings for the MQTT sink.
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
	Session  string
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes the baseline (retained) to <topic>/baseline and each
// relative reading to <topic>/reading.
type MQTTSink struct {
	client  publisher
	conn    mqtt.Client
	topic   string
	session string
	log     *zap.SugaredLogger
	now     func() time.Time
}

// Message is the JSON payload published for each event.
type Message struct {
	Session  string             `json:"session"`
	Stamp    int64              `json:"stamp"` // Unix ms
	Baseline *altitude.Baseline `json:"baseline,omitempty"`
	Report   *altitude.Report   `json:"report,omitempty"`
}

// DialMQTT connects to the broker and returns a sink publishing to it.
func DialMQTT(cfg MQTTConfig, log *zap.SugaredLogger) (*MQTTSink, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "relalt-" + cfg.Session
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}

	s := newMQTTSink(client, cfg, log)
	s.conn = client
	s.log.Infof("connected to MQTT broker at %s", cfg.Broker)
	return s, nil
}

func newMQTTSink(p publisher, cfg MQTTConfig, log *zap.SugaredLogger) *MQTTSink {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &MQTTSink{
		client:  p,
		topic:   cfg.Topic,
		session: cfg.Session,
		log:     log.With("component", "mqtt"),
		now:     time.Now,
	}
}

func (s *MQTTSink) Handle(ev pipeline.Event) {
	msg := Message{Session: s.session, Stamp: s.now().UnixMilli()}
	var topic string
	var retained bool

	switch ev := ev.(type) {
	case pipeline.BaselineReady:
		b := ev.Baseline
		msg.Baseline = &b
		topic = s.topic + "/baseline"
		retained = true
	case pipeline.Reading:
		r := ev.Report
		msg.Report = &r
		topic = s.topic + "/reading"
	default:
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Warnf("marshal error: %v", err)
		return
	}
	// QoS 0: never wait on the pipeline goroutine. While paho reconnects
	// the token may stay pending for a long time.
	token := s.client.Publish(topic, 0, retained, payload)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			s.log.Warnf("publish to %s: %v", topic, err)
		}
	}()
}

func (s *MQTTSink) Close() error {
	if s.conn != nil {
		s.conn.Disconnect(250)
	}
	return nil
}
