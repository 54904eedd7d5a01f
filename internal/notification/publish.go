package notification

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"gear-maintenance-backend/config"
)

// Publisher delivers an encoded alert for a user to a message broker.
type Publisher interface {
	Publish(ctx context.Context, owner int64, payload []byte) error
}

// Poster delivers a human-readable alert digest to a chat channel.
type Poster interface {
	Post(ctx context.Context, a Alert) error
}

const publishTimeout = 5 * time.Second

// MQTTPublisher publishes alerts to <topic>/<user id>.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	qos    byte
}

// NewMQTTPublisher connects to the configured broker.
func NewMQTTPublisher(cfg config.MQTTConfig) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(publishTimeout)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.WithError(err).Warn("mqtt: connection lost")
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.Broker, err)
	}
	log.Infof("mqtt: connected to %s", cfg.Broker)
	return newMQTTPublisher(client, cfg.Topic), nil
}

func newMQTTPublisher(client mqtt.Client, topic string) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic, qos: 1}
}

// Publish sends payload and waits for the broker to acknowledge it.
func (p *MQTTPublisher) Publish(ctx context.Context, owner int64, payload []byte) error {
	topic := fmt.Sprintf("%s/%d", p.topic, owner)
	token := p.client.Publish(topic, p.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("mqtt: publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

// SlackPoster posts alert digests to an incoming webhook.
type SlackPoster struct {
	url     string
	channel string
}

// NewSlackPoster returns a poster for the configured webhook.
func NewSlackPoster(cfg config.SlackConfig) *SlackPoster {
	return &SlackPoster{url: cfg.WebhookURL, channel: cfg.Channel}
}

// Post sends the digest of a.
func (p *SlackPoster) Post(ctx context.Context, a Alert) error {
	msg := &slack.WebhookMessage{
		Channel: p.channel,
		Text:    fmt.Sprintf("*User %d: %s*\n%s", a.Owner, a.Title(), a.Body()),
	}
	if err := slack.PostWebhookContext(ctx, p.url, msg); err != nil {
		return fmt.Errorf("slack: post digest for user %d: %w", a.Owner, err)
	}
	return nil
}
