// Package cache memoizes computed dashboard views. Values live in a local TTL
// map and, when a Redis client is configured, in Redis as well so that
// several dashboard replicas share their work.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when no tier holds the key.
var ErrMiss = errors.New("cache miss")

const (
	keyPrefix       = "dashboard:"
	cleanupInterval = time.Minute
)

type Manager struct {
	redis  *redis.Client
	local  *localCache
	ttl    time.Duration
	logger *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

type localCache struct {
	mu   sync.RWMutex
	data map[string]item
}

type item struct {
	value     []byte
	expiresAt time.Time
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewManager creates a manager whose entries expire after ttl. A nil client
// keeps everything local.
func NewManager(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		redis:  client,
		local:  &localCache{data: make(map[string]item)},
		ttl:    ttl,
		logger: logger,
		stop:   make(chan struct{}),
	}

	go m.cleanupLoop()

	return m
}

// NewRedisClient dials Redis and verifies the connection.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return client, nil
}

// Get decodes the cached value for key into dest, trying the local tier
// before Redis.
func (m *Manager) Get(ctx context.Context, key string, dest any) error {
	key = keyPrefix + key

	if data, ok := m.local.get(key); ok {
		return json.Unmarshal(data, dest)
	}

	if m.redis == nil {
		return ErrMiss
	}

	data, err := m.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		m.logger.Warn("redis get failed", "key", key, "error", err)
		return ErrMiss
	}

	m.local.set(key, data, m.ttl)
	return json.Unmarshal(data, dest)
}

// Set stores value under key in every tier.
func (m *Manager) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	key = keyPrefix + key
	m.local.set(key, data, m.ttl)

	if m.redis != nil {
		if err := m.redis.Set(ctx, key, data, m.ttl).Err(); err != nil {
			return fmt.Errorf("redis set %s: %w", key, err)
		}
	}
	return nil
}

// Len reports the number of live local entries.
func (m *Manager) Len() int {
	m.local.mu.RLock()
	defer m.local.mu.RUnlock()
	return len(m.local.data)
}

// Purge drops all local entries. Redis entries expire on their own.
func (m *Manager) Purge() {
	m.local.mu.Lock()
	m.local.data = make(map[string]item)
	m.local.mu.Unlock()
}

func (m *Manager) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	if m.redis != nil {
		return m.redis.Close()
	}
	return nil
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.local.evictExpired(now)
		}
	}
}

func (c *localCache) get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.data[key]
	if !ok || time.Now().After(it.expiresAt) {
		return nil, false
	}
	return it.value, true
}

func (c *localCache) set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = item{value: value, expiresAt: time.Now().Add(ttl)}
}

func (c *localCache) evictExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, it := range c.data {
		if now.After(it.expiresAt) {
			delete(c.data, key)
		}
	}
}
