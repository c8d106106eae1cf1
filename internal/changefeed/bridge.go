package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/worx-notes/internal/db"
)

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
	Close()
}

// Bridge republishes repair sheet change events to MQTT so shop floor
// displays can follow along. Each event goes to <topic>/<type>.
type Bridge struct {
	source db.RepairCollection
	pub    Publisher
	topic  string
}

// NewBridge creates a bridge from source to pub.
func NewBridge(source db.RepairCollection, pub Publisher, topic string) *Bridge {
	return &Bridge{source: source, pub: pub, topic: strings.TrimSuffix(topic, "/")}
}

// Topic returns the topic an event is published to.
func (b *Bridge) Topic(ev db.ChangeEvent) string {
	return b.topic + "/" + strings.ToLower(string(ev.Type))
}

// Run forwards events until ctx ends. Publish failures are logged and the
// event is dropped.
func (b *Bridge) Run(ctx context.Context) error {
	sub, err := b.source.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to repair sheet changes: %w", err)
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				log.WithError(err).WithField("id", ev.ID).Error("Failed to encode change event")
				continue
			}
			if err := b.pub.Publish(b.Topic(ev), payload); err != nil {
				log.WithError(err).WithFields(log.Fields{"id": ev.ID, "type": ev.Type}).Warn("Failed to publish change event")
				continue
			}
			log.WithFields(log.Fields{"id": ev.ID, "type": ev.Type}).Debug("Published change event")
		}
	}
}

// MQTTOptions configures the broker connection.
type MQTTOptions struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	QoS       byte
	Timeout   time.Duration
}

// MQTTPublisher publishes through a paho client.
type MQTTPublisher struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
}

// ErrPublishTimeout is returned when the broker does not acknowledge in time.
var ErrPublishTimeout = errors.New("mqtt publish timed out")

// ConnectMQTT connects to the broker.
func ConnectMQTT(o MQTTOptions) (*MQTTPublisher, error) {
	if o.BrokerURL == "" {
		return nil, fmt.Errorf("mqtt broker URL is empty")
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	opts := mqtt.NewClientOptions().
		AddBroker(o.BrokerURL).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(o.Timeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost")
		})
	if o.Username != "" {
		opts.SetUsername(o.Username).SetPassword(o.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(o.Timeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", o.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", o.BrokerURL, err)
	}
	return &MQTTPublisher{client: client, qos: o.QoS, timeout: o.Timeout}, nil
}

func (p *MQTTPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return ErrPublishTimeout
	}
	return token.Error()
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
