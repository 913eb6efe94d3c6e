// FilePath: internal/uploader/uploader.notifier.go
package uploader

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	nuts "github.com/vaudience/go-nuts"

	"github.com/LowellObservatory/indi-allsky/internal/config"
)

// uploadChannel is the redis pub/sub channel used to wake workers in
// other processes. The database remains the source of truth; a lost
// notification only delays pickup until the next poll tick.
const uploadChannel = "indi_allsky:upload"

// Notifier wakes workers after an enqueue and exposes the wakeup
// stream they block on.
type Notifier interface {
	Notify(ctx context.Context)
	Wakeups() <-chan struct{}
	Close() error
}

// localNotifier wakes workers within the same process.
type localNotifier struct {
	ch chan struct{}
}

func NewLocalNotifier() Notifier {
	return &localNotifier{ch: make(chan struct{}, 1)}
}

func (n *localNotifier) Notify(ctx context.Context) {
	select {
	case n.ch <- struct{}{}:
	default: // a pending wakeup already covers this enqueue
	}
}

func (n *localNotifier) Wakeups() <-chan struct{} {
	return n.ch
}

func (n *localNotifier) Close() error {
	return nil
}

// redisNotifier wakes workers across processes via pub/sub.
type redisNotifier struct {
	client *redis.Client
	pubsub *redis.PubSub
	ch     chan struct{}
	done   chan struct{}
}

func NewRedisNotifier(ctx context.Context, cfg config.RedisConfig) (Notifier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	n := &redisNotifier{
		client: client,
		pubsub: client.Subscribe(ctx, uploadChannel),
		ch:     make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go n.forward()
	return n, nil
}

func (n *redisNotifier) forward() {
	msgs := n.pubsub.Channel()
	for {
		select {
		case <-n.done:
			return
		case _, ok := <-msgs:
			if !ok {
				return
			}
			select {
			case n.ch <- struct{}{}:
			default:
			}
		}
	}
}

func (n *redisNotifier) Notify(ctx context.Context) {
	if err := n.client.Publish(ctx, uploadChannel, "1").Err(); err != nil {
		nuts.L.Warnf("[uploader] redis notify failed: %v", err)
	}
}

func (n *redisNotifier) Wakeups() <-chan struct{} {
	return n.ch
}

func (n *redisNotifier) Close() error {
	close(n.done)
	n.pubsub.Close()
	return n.client.Close()
}
