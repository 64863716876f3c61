// Package telemetry periodically publishes statistics snapshots to an AMQP
// queue for diagnostics collaborators outside the cipher core.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"github.com/DavidOeztuerk/Skillswap-sub014/pkg/stats"
)

// StatsSource yields the current statistics snapshot to publish.
type StatsSource func() stats.Statistics

// Channel is the subset of *amqp.Channel the publisher needs; it exists so
// tests can substitute a fake.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher pushes periodic snapshots to a queue. Publish failures are
// logged and retried on the next tick; they never affect the cipher core.
type Publisher struct {
	logger   *logrus.Logger
	channel  Channel
	queue    string
	interval time.Duration
	source   StatsSource

	closeConn func() error
}

// snapshotEnvelope is the published message body.
type snapshotEnvelope struct {
	Service   string           `json:"service"`
	Timestamp time.Time        `json:"timestamp"`
	Stats     stats.Statistics `json:"stats"`
}

// NewPublisher builds a publisher over an existing channel.
func NewPublisher(logger *logrus.Logger, channel Channel, queue string, interval time.Duration, source StatsSource) *Publisher {
	return &Publisher{
		logger:   logger,
		channel:  channel,
		queue:    queue,
		interval: interval,
		source:   source,
	}
}

// Dial connects to the AMQP broker, declares a durable queue, and returns a
// ready publisher.
func Dial(logger *logrus.Logger, url, queue string, interval time.Duration, source StatsSource) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP server: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	if _, err := channel.QueueDeclare(
		queue,
		true,  // Durable
		false, // Delete when unused
		false, // Exclusive
		false, // No-wait
		nil,   // Arguments
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare AMQP queue %s: %w", queue, err)
	}

	logger.WithFields(logrus.Fields{
		"queue":    queue,
		"interval": interval,
	}).Info("Connected to AMQP server for stats publishing")

	p := NewPublisher(logger, channel, queue, interval, source)
	p.closeConn = conn.Close
	return p, nil
}

// Run publishes snapshots until ctx is canceled.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer func() {
		if p.closeConn != nil {
			if err := p.closeConn(); err != nil {
				p.logger.WithError(err).Warn("Failed to close AMQP connection")
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Stats publisher stopped")
			return
		case <-ticker.C:
			if err := p.publishOnce(); err != nil {
				p.logger.WithError(err).Error("Failed to publish stats snapshot")
			}
		}
	}
}

func (p *Publisher) publishOnce() error {
	envelope := snapshotEnvelope{
		Service:   "framecipher",
		Timestamp: time.Now().UTC(),
		Stats:     p.source(),
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal stats snapshot: %w", err)
	}

	if err := p.channel.Publish(
		"",      // Exchange
		p.queue, // Routing key (queue name)
		false,   // Mandatory
		false,   // Immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	); err != nil {
		return fmt.Errorf("failed to publish to AMQP: %w", err)
	}

	return nil
}
