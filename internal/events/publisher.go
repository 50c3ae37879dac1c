package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/kasirpos/platform/internal/domain"
	"github.com/kasirpos/platform/internal/metric"
)

// streamSubjects are the routing-key spaces bound to the platform stream.
var streamSubjects = []string{"order.*", "payment.*"}

// Publisher publishes durable domain events to the shared stream. One
// long-lived connection is held per process.
//
// Delivery is at-least-once. Publication happens after the caller's local
// transaction has committed; if the broker is unreachable at that point the
// event is lost and the error surfaces to the caller, who has no automatic
// retry. That gap is deliberate.
type Publisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	stream  string
	logger  *slog.Logger
	metrics *metric.Metrics
}

// NewPublisher connects to the broker and idempotently declares the stream
// covering the order.* and payment.* routing keys.
func NewPublisher(ctx context.Context, url, stream string, logger *slog.Logger, metrics *metric.Metrics) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	p := &Publisher{
		conn:    conn,
		js:      js,
		stream:  stream,
		logger:  logger,
		metrics: metrics,
	}

	if err := p.ensureStream(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	return p, nil
}

// ensureStream declares the durable stream. Safe to repeat.
func (p *Publisher) ensureStream(ctx context.Context) error {
	_, err := p.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      p.stream,
		Subjects:  streamSubjects,
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
	})
	if err != nil {
		return fmt.Errorf("declare stream %s: %w", p.stream, err)
	}
	return nil
}

// Publish serializes payload and publishes it under routingKey. The
// payload must be one of the typed event structs from this package.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		p.count(routingKey, "error")
		return domain.ErrMessaging("Failed to encode event").Wrap(err)
	}

	if _, err := p.js.Publish(ctx, routingKey, data); err != nil {
		p.count(routingKey, "error")
		p.logger.Error("event publish failed",
			slog.String("routing_key", routingKey),
			slog.String("error", err.Error()),
		)
		return domain.ErrMessaging("Failed to publish event").Wrap(err)
	}

	p.count(routingKey, "ok")
	p.logger.Info("event published", slog.String("routing_key", routingKey))
	return nil
}

func (p *Publisher) count(routingKey, status string) {
	if p.metrics != nil {
		p.metrics.EventsPublished.WithLabelValues(routingKey, status).Inc()
	}
}

// Close drains the broker connection.
func (p *Publisher) Close() {
	p.conn.Close()
}
