package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/kasirpos/platform/internal/metric"
)

// Handler processes one delivered message. Returning nil acknowledges the
// message; returning an error drops it permanently (no redelivery, no
// dead-letter). The handler is injected so saga steps stay testable without
// a broker.
type Handler func(ctx context.Context, routingKey string, data []byte) error

// Consumer is a long-lived subscriber bound to one durable queue on the
// shared stream. Messages are handled strictly one at a time per process;
// horizontal scaling means running more processes bound to the same queue,
// which yields at-least-once, unordered-across-consumers delivery.
type Consumer struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	stream  string
	logger  *slog.Logger
	metrics *metric.Metrics
}

// NewConsumer connects to the broker for consuming from the given stream.
func NewConsumer(url, stream string, logger *slog.Logger, metrics *metric.Metrics) (*Consumer, error) {
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

	return &Consumer{
		conn:    conn,
		js:      js,
		stream:  stream,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Run declares the durable queue bound to the given routing keys and enters
// a blocking receive loop, invoking handler per message. It returns nil
// when ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, queue string, routingKeys []string, handler Handler) error {
	durable := strings.ReplaceAll(queue, ".", "-")

	cons, err := c.js.CreateOrUpdateConsumer(ctx, c.stream, jetstream.ConsumerConfig{
		Durable:        durable,
		FilterSubjects: routingKeys,
		AckPolicy:      jetstream.AckExplicitPolicy,
		MaxAckPending:  1,
	})
	if err != nil {
		return fmt.Errorf("declare consumer %s: %w", durable, err)
	}

	iter, err := cons.Messages(jetstream.PullMaxMessages(1))
	if err != nil {
		return fmt.Errorf("open message iterator: %w", err)
	}

	// Stop the iterator when the run context is cancelled so Next
	// unblocks and the loop exits cleanly.
	go func() {
		<-ctx.Done()
		iter.Stop()
	}()

	c.logger.Info("consumer started",
		slog.String("queue", durable),
		slog.String("routing_keys", strings.Join(routingKeys, ",")),
	)

	for {
		msg, err := iter.Next()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, jetstream.ErrMsgIteratorClosed) {
				c.logger.Info("consumer stopped", slog.String("queue", durable))
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}

		c.dispatch(ctx, msg, handler)
	}
}

// dispatch runs the handler for one message. Success acknowledges; any
// handler error terminates the message so it is dropped, not retried.
func (c *Consumer) dispatch(ctx context.Context, msg jetstream.Msg, handler Handler) {
	routingKey := msg.Subject()

	// Shutdown cancels the receive loop, not work already in flight: the
	// handler runs under an un-cancellable context so a SIGTERM mid-message
	// cannot fail its store calls and drop a healthy message.
	if err := handler(context.WithoutCancel(ctx), routingKey, msg.Data()); err != nil {
		c.count(routingKey, "dropped")
		c.logger.Error("handler failed, dropping message",
			slog.String("routing_key", routingKey),
			slog.String("error", err.Error()),
		)
		if termErr := msg.Term(); termErr != nil {
			c.logger.Error("terminate failed", slog.String("error", termErr.Error()))
		}
		return
	}

	c.count(routingKey, "ok")
	if ackErr := msg.Ack(); ackErr != nil {
		c.logger.Error("ack failed",
			slog.String("routing_key", routingKey),
			slog.String("error", ackErr.Error()),
		)
	}
}

func (c *Consumer) count(routingKey, result string) {
	if c.metrics != nil {
		c.metrics.EventsConsumed.WithLabelValues(routingKey, result).Inc()
	}
}

// Close drains the broker connection.
func (c *Consumer) Close() {
	c.conn.Close()
}
