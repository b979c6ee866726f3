package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPReporter publishes crash reports as JSON to a durable RabbitMQ
// queue. Reports that cannot be published fall back to the log.
type AMQPReporter struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  publisher
	queue    string
	fallback CrashReporter
	now      func() time.Time
}

func NewAMQPReporter(url, queue string) (*AMQPReporter, error) {
	queue = strings.TrimSpace(queue)
	if queue == "" {
		queue = "edusync.crashes"
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	r := newAMQPReporter(ch, queue)
	r.conn = conn
	return r, nil
}

func newAMQPReporter(ch publisher, queue string) *AMQPReporter {
	return &AMQPReporter{
		channel:  ch,
		queue:    queue,
		fallback: NewLogReporter(nil),
		now:      time.Now,
	}
}

func (r *AMQPReporter) ReportNonFatal(ctx context.Context, err error) {
	if err == nil {
		return
	}
	body, merr := json.Marshal(newReport(ctx, err, r.now()))
	if merr != nil {
		r.fallback.ReportNonFatal(ctx, err)
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()

	r.mu.Lock()
	perr := r.channel.PublishWithContext(pubCtx, "", r.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    r.now(),
		Body:         body,
	})
	r.mu.Unlock()
	if perr != nil {
		slog.Warn("crash report publish failed", "queue", r.queue, "err", perr)
		r.fallback.ReportNonFatal(ctx, err)
	}
}

func (r *AMQPReporter) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}
