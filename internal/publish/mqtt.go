package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/afroash/soilsim/internal/config"
	"github.com/afroash/soilsim/internal/models"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	maxConnectRetries = 5
	flushChunkSize    = 50
)

// Connect establishes the MQTT broker connection with exponential
// backoff. Failing to reach the broker after all retries is a setup
// error: the run should not start with a dead uplink.
func Connect(ctx context.Context, cfg config.MQTTConfig, logger zerolog.Logger) (mqtt.Client, error) {
	addr := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(addr)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetAutoReconnect(true)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			logger.Warn().Err(token.Error()).Str("broker", addr).Msg("MQTT connect failed, retrying")
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, maxConnectRetries-1), ctx))
	if err != nil {
		return nil, fmt.Errorf("could not establish MQTT connection after retries: %w", err)
	}

	logger.Info().Str("broker", addr).Msg("Connected to MQTT broker")
	return client, nil
}

// Publisher ships readings to an MQTT topic as JSON, buffering them
// while the broker is unreachable and flushing the backlog once the
// connection returns.
type Publisher struct {
	client mqtt.Client
	topic  string
	qos    byte
	buffer *ReadingBuffer
	logger zerolog.Logger
}

// NewPublisher creates a publisher over an established client
func NewPublisher(client mqtt.Client, cfg config.MQTTConfig, logger zerolog.Logger) *Publisher {
	return &Publisher{
		client: client,
		topic:  cfg.Topic,
		qos:    cfg.QoS,
		buffer: NewReadingBuffer(cfg.BufferSize, true),
		logger: logger,
	}
}

// Publish sends one reading, flushing any backlog first so ordering is
// preserved. While disconnected the reading goes to the buffer instead.
func (p *Publisher) Publish(reading *models.Reading) error {
	if !p.client.IsConnected() {
		p.buffer.Push(reading)
		p.logger.Debug().Str("buffer", p.buffer.String()).Msg("Broker unreachable, reading buffered")
		return nil
	}

	if err := p.flushBacklog(); err != nil {
		p.buffer.Push(reading)
		return err
	}

	if err := p.send(reading); err != nil {
		p.buffer.Push(reading)
		return err
	}
	return nil
}

// flushBacklog drains buffered readings in order
func (p *Publisher) flushBacklog() error {
	for !p.buffer.IsEmpty() {
		batch := p.buffer.PopBatch(flushChunkSize)
		for i, reading := range batch {
			if err := p.send(reading); err != nil {
				// Re-buffer what did not make it out
				for _, r := range batch[i:] {
					p.buffer.Push(r)
				}
				return err
			}
		}
		p.logger.Info().Int("count", len(batch)).Msg("Flushed buffered readings")
	}
	return nil
}

// send publishes a single reading to the topic
func (p *Publisher) send(reading *models.Reading) error {
	payload, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	token := p.client.Publish(p.topic, p.qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timed out after %s", publishTimeout)
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to publish reading: %w", token.Error())
	}
	return nil
}

// Pending returns how many readings are waiting for the broker
func (p *Publisher) Pending() int {
	return p.buffer.Size()
}

// Close flushes what it can and disconnects from the broker
func (p *Publisher) Close() {
	if p.client.IsConnected() {
		if err := p.flushBacklog(); err != nil {
			p.logger.Warn().Err(err).Int("pending", p.buffer.Size()).Msg("Could not flush backlog on close")
		}
		p.client.Disconnect(250)
		p.logger.Info().Msg("MQTT client disconnected")
	}
}
