// Package publish mirrors the countdown and share actions onto an MQTT broker.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/neexbeast/aruba-countdown/internal/countdown"
)

const (
	publishTimeout = 5 * time.Second
	quiesceMillis  = 1000
)

// ErrNotConnected is returned by Ping while the broker connection is down.
var ErrNotConnected = errors.New("mqtt broker not connected")

// Client is the subset of mqtt.Client the publisher uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Config holds broker settings. A disabled config yields a no-op Publisher.
type Config struct {
	Enabled     bool
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// Publisher sends retained countdown updates and share events.
type Publisher struct {
	client  Client
	prefix  string
	enabled bool
	log     *slog.Logger

	last int64
}

// NewPublisher connects to the broker described by cfg.
func NewPublisher(cfg Config, log *slog.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return &Publisher{log: log}, nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn("mqtt connection lost", "err", err)
		}).
		SetOnConnectHandler(func(_ mqtt.Client) {
			log.Info("mqtt connected", "broker", cfg.Broker)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		// Connect keeps retrying in the background.
		log.Warn("mqtt connect still pending", "broker", cfg.Broker)
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to mqtt broker %s: %w", cfg.Broker, err)
	}

	return NewPublisherWithClient(client, cfg.TopicPrefix, log), nil
}

// NewPublisherWithClient wraps an existing client. Used in tests.
func NewPublisherWithClient(client Client, prefix string, log *slog.Logger) *Publisher {
	return &Publisher{client: client, prefix: prefix, enabled: true, log: log, last: -1}
}

// Enabled reports whether a broker is configured.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// PublishCountdown publishes s retained to <prefix>/countdown.
// Repeated calls with the same remaining seconds are skipped.
func (p *Publisher) PublishCountdown(s countdown.State) error {
	if !p.enabled {
		return nil
	}
	if s.TotalSeconds() == p.last {
		return nil
	}

	if err := p.publishJSON("countdown", true, s); err != nil {
		return err
	}
	p.last = s.TotalSeconds()
	return nil
}

// Share publishes msg to <prefix>/share. It reports false without error when
// no broker is configured.
func (p *Publisher) Share(msg countdown.ShareMessage) (bool, error) {
	if !p.enabled {
		return false, nil
	}
	if err := p.publishJSON("share", false, msg); err != nil {
		return false, err
	}
	return true, nil
}

// IsConnected reports the broker connection state.
func (p *Publisher) IsConnected() bool {
	if !p.enabled {
		return false
	}
	return p.client.IsConnected()
}

// Ping satisfies the health check interface.
func (p *Publisher) Ping(_ context.Context) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p.enabled && p.client != nil {
		p.client.Disconnect(quiesceMillis)
	}
}

func (p *Publisher) publishJSON(name string, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", name, err)
	}

	topic := p.prefix + "/" + name
	token := p.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publishing to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}
