package live

import (
	"context"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier fans change signals out across processes with Redis
// PUBLISH/SUBSCRIBE on channels named "<prefix>:<topic>".
type RedisNotifier struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisNotifier(client redis.UniversalClient, prefix string) *RedisNotifier {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "edusync:changes"
	}
	return &RedisNotifier{client: client, prefix: prefix}
}

func (n *RedisNotifier) channel(topic string) string {
	return n.prefix + ":" + topic
}

func (n *RedisNotifier) Publish(ctx context.Context, topic string) error {
	return n.client.Publish(ctx, n.channel(topic), "changed").Err()
}

// Subscribe waits for Redis to confirm the subscription so a change
// published right after it returns is not missed.
func (n *RedisNotifier) Subscribe(ctx context.Context, topic string) (<-chan struct{}, func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := n.client.Subscribe(subCtx, n.channel(topic))
	if _, err := sub.Receive(subCtx); err != nil {
		cancel()
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan struct{}, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				signal(out)
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			_ = sub.Close()
			wg.Wait()
		})
	}
	return out, stop, nil
}
