package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestChannelSinkDropsOldest(t *testing.T) {
	s := NewChannelSink(2)
	s.Notify(Message{Text: "one"})
	s.Notify(Message{Text: "two"})
	s.Notify(Message{Text: "three"})

	first := <-s.Messages()
	second := <-s.Messages()
	if first.Text != "two" || second.Text != "three" {
		t.Fatalf("got %q, %q; want two, three", first.Text, second.Text)
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := NewChannelSink(1), NewChannelSink(1)
	MultiSink{a, nil, b}.Notify(Message{Text: "saved"})
	if (<-a.Messages()).Text != "saved" || (<-b.Messages()).Text != "saved" {
		t.Fatalf("message not delivered to every sink")
	}
}

func TestLogReporterIncludesScope(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(slog.New(slog.NewJSONHandler(&buf, nil)))
	ctx := WithScope(context.Background(), "join_group", "u1")
	r.ReportNonFatal(ctx, errors.New("permission denied"))
	r.ReportNonFatal(ctx, nil)

	out := buf.String()
	if strings.Count(out, "non_fatal") != 1 {
		t.Fatalf("expected exactly one record, got %q", out)
	}
	if !strings.Contains(out, `"screen":"join_group"`) || !strings.Contains(out, `"user_id":"u1"`) {
		t.Fatalf("scope missing from %q", out)
	}
}

type fakeChannel struct {
	published []amqp.Publishing
	keys      []string
	err       error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

type countingReporter struct{ n int }

func (c *countingReporter) ReportNonFatal(context.Context, error) { c.n++ }

func TestAMQPReporterPublishesJSON(t *testing.T) {
	ch := &fakeChannel{}
	r := newAMQPReporter(ch, "crashes")
	r.now = func() time.Time { return time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC) }

	r.ReportNonFatal(WithScope(context.Background(), "home", "u7"), errors.New("boom"))

	if len(ch.published) != 1 || ch.keys[0] != "crashes" {
		t.Fatalf("published %d messages to %v", len(ch.published), ch.keys)
	}
	var rep Report
	if err := json.Unmarshal(ch.published[0].Body, &rep); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if rep.Screen != "home" || rep.UserID != "u7" || rep.Error != "boom" {
		t.Fatalf("report = %+v", rep)
	}
	if ch.published[0].DeliveryMode != amqp.Persistent {
		t.Fatalf("expected persistent delivery")
	}
}

func TestAMQPReporterFallsBackOnPublishError(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	r := newAMQPReporter(ch, "crashes")
	fallback := &countingReporter{}
	r.fallback = fallback

	r.ReportNonFatal(context.Background(), errors.New("boom"))
	if fallback.n != 1 {
		t.Fatalf("fallback called %d times, want 1", fallback.n)
	}
}
