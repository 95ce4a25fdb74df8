// Package publish sends link quality reports to an MQTT broker.
package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dbehnke/bts-codec/pkg/logger"
)

// ErrTimeout is returned when the broker does not acknowledge a publish in
// time.
var ErrTimeout = errors.New("mqtt publish timed out")

// Config holds the broker connection settings
type Config struct {
	Broker      string
	TopicPrefix string
	ClientID    string
	Username    string
	Password    string
	QoS         byte
	Retained    bool
	Timeout     time.Duration
}

// Report is the payload published for every decoded block.
type Report struct {
	RequestID  string    `json:"request_id"`
	Channel    string    `json:"channel"`
	Scheme     string    `json:"scheme"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	FACCH      bool      `json:"facch,omitempty"`
	NErrors    int       `json:"n_errors"`
	NBitsTotal int       `json:"n_bits_total"`
	BER        float64   `json:"ber"`
	Timestamp  time.Time `json:"timestamp"`
}

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher publishes reports under <prefix>/<kind>/<channel>.
type Publisher struct {
	client client
	config Config
	log    *logger.Logger
}

// New connects to the broker.
func New(cfg Config, log *logger.Logger) (*Publisher, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("mqtt")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info("Connected to broker", logger.String("broker", cfg.Broker))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("Connection lost", logger.Error(err))
	})

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(timeoutOf(cfg)) {
		// SetConnectRetry keeps trying in the background.
		log.Warn("Broker not reachable yet, retrying in background", logger.String("broker", cfg.Broker))
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	return newPublisher(c, cfg, log), nil
}

func newPublisher(c client, cfg Config, log *logger.Logger) *Publisher {
	cfg.TopicPrefix = strings.TrimSuffix(cfg.TopicPrefix, "/")
	return &Publisher{client: c, config: cfg, log: log}
}

func timeoutOf(cfg Config) time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return 5 * time.Second
}

// Topic returns the topic reports of the given kind and channel go to.
func (p *Publisher) Topic(kind, channel string) string {
	return p.config.TopicPrefix + "/" + kind + "/" + channel
}

// PublishDecode publishes one decode report.
func (p *Publisher) PublishDecode(r Report) error {
	return p.publish(p.Topic("decode", r.Channel), r)
}

// PublishJSON publishes an arbitrary document, used for self test summaries.
func (p *Publisher) PublishJSON(kind, channel string, v interface{}) error {
	return p.publish(p.Topic(kind, channel), v)
}

func (p *Publisher) publish(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	token := p.client.Publish(topic, p.config.QoS, p.config.Retained, payload)
	if !token.WaitTimeout(timeoutOf(p.config)) {
		return fmt.Errorf("%s: %w", topic, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
