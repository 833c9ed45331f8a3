package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/ngo-hub/internal/apperror"
)

// MemoryBindings keeps bindings in process memory. Bindings are lost on
// restart, which signs every instance out. Used when no Redis is configured.
type MemoryBindings struct {
	mu       sync.RWMutex
	bindings map[string]string
}

// NewMemoryBindings returns an empty in-memory binding store.
func NewMemoryBindings() *MemoryBindings {
	return &MemoryBindings{bindings: make(map[string]string)}
}

func (m *MemoryBindings) Bind(_ context.Context, instance, identityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[instance] = identityID
	return nil
}

func (m *MemoryBindings) Lookup(_ context.Context, instance string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bindings[instance], nil
}

func (m *MemoryBindings) Unbind(_ context.Context, instance string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bindings, instance)
	return nil
}

// RedisBindings stores bindings in Redis with a TTL, so sign-ins survive
// restarts and are shared between portal replicas.
//
// Keys look like "binding:<instanceID>" and hold the identity ID as a plain
// string. Every Bind refreshes the TTL. Replicas learn about each other's
// sign-ins and sign-outs through a RedisFeed on the same server; an expired
// key is noticed when the session manager re-validates.
type RedisBindings struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisBindings wraps an already-connected client.
func NewRedisBindings(client *redis.Client, ttl time.Duration) *RedisBindings {
	return &RedisBindings{
		client: client,
		prefix: "binding:",
		ttl:    ttl,
	}
}

func (r *RedisBindings) key(instance string) string {
	return r.prefix + instance
}

func (r *RedisBindings) Bind(ctx context.Context, instance, identityID string) error {
	if err := r.client.Set(ctx, r.key(instance), identityID, r.ttl).Err(); err != nil {
		return apperror.Network("binding store unavailable", err)
	}
	return nil
}

func (r *RedisBindings) Lookup(ctx context.Context, instance string) (string, error) {
	val, err := r.client.Get(ctx, r.key(instance)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", apperror.Network("binding store unavailable", err)
	}
	return val, nil
}

func (r *RedisBindings) Unbind(ctx context.Context, instance string) error {
	if err := r.client.Del(ctx, r.key(instance)).Err(); err != nil {
		return apperror.Network("binding store unavailable", err)
	}
	return nil
}

// RedisFeed is a ChangeFeed on a Redis pub/sub channel.
//
// Pub/sub is fire-and-forget: a replica that is disconnected when a message
// is published never sees it. The session manager's periodic re-validation
// covers that gap.
type RedisFeed struct {
	client  *redis.Client
	channel string
}

// NewRedisFeed publishes and subscribes on the "binding-changes" channel.
func NewRedisFeed(client *redis.Client) *RedisFeed {
	return &RedisFeed{client: client, channel: "binding-changes"}
}

func (f *RedisFeed) Publish(ctx context.Context, c RemoteChange) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("identity: encoding change: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return apperror.Network("change feed unavailable", err)
	}
	return nil
}

func (f *RedisFeed) Subscribe(ctx context.Context, fn func(RemoteChange)) (func() error, error) {
	ps := f.client.Subscribe(ctx, f.channel)
	// The first reply confirms the subscription.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, apperror.Network("change feed unavailable", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range ps.Channel() {
			var c RemoteChange
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				continue
			}
			fn(c)
		}
	}()

	return func() error {
		err := ps.Close()
		<-done
		return err
	}, nil
}

// DialRedis connects to Redis and verifies the connection with a PING.
func DialRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
