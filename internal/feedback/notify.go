package feedback

import (
	"log/slog"
	"sync"
)

// Message is a transient notification shown to the user, the equivalent
// of a snackbar.
type Message struct {
	Text string `json:"text"`
}

// Notifier receives transient user notifications. Implementations must be
// safe for concurrent use and must not block.
type Notifier interface {
	Notify(Message)
}

// ChannelSink buffers up to a fixed number of messages. When the buffer
// is full the oldest message is dropped.
type ChannelSink struct {
	mu sync.Mutex
	ch chan Message
}

func NewChannelSink(size int) *ChannelSink {
	if size <= 0 {
		size = 16
	}
	return &ChannelSink{ch: make(chan Message, size)}
}

func (s *ChannelSink) Notify(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		select {
		case s.ch <- m:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Messages is drained by the transport that renders notifications.
func (s *ChannelSink) Messages() <-chan Message {
	return s.ch
}

type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(m Message) {
	s.logger.Info("user_notification", "text", m.Text)
}

// MultiSink forwards every message to each sink in order.
type MultiSink []Notifier

func (m MultiSink) Notify(msg Message) {
	for _, s := range m {
		if s != nil {
			s.Notify(msg)
		}
	}
}
