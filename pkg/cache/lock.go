package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrLocked indica che la risorsa è già bloccata da un'altra richiesta
var ErrLocked = errors.New("resource is locked")

// Locker fornisce un lock esclusivo con scadenza per chiave.
// La funzione di release restituita è idempotente.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// MemoryLocker è un Locker in-process
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLock
}

type memoryLock struct {
	token   string
	expires time.Time
}

// NewMemoryLocker crea un nuovo MemoryLocker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]memoryLock)}
}

// TryLock implementa Locker
func (m *MemoryLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if l, ok := m.locks[key]; ok && (ttl <= 0 || now.Before(l.expires)) {
		return nil, ErrLocked
	}

	token := uuid.NewString()
	expires := now.Add(ttl)
	if ttl <= 0 {
		expires = time.Time{}
	}
	m.locks[key] = memoryLock{token: token, expires: expires}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if l, ok := m.locks[key]; ok && l.token == token {
				delete(m.locks, key)
			}
		})
	}, nil
}

// RedisLocker è un Locker distribuito basato su SET NX PX
type RedisLocker struct {
	client *RedisClient
	prefix string
}

// NewRedisLocker crea un Locker che salva i lock sotto prefix
func NewRedisLocker(client *RedisClient, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

// TryLock implementa Locker
func (r *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	k := r.prefix + key
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, k, token, ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The request context may already be cancelled here
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()

			if _, err := r.client.DelIfEqual(ctx, k, token); err != nil {
				log.Warn().Err(err).Str("key", k).Msg("Failed to release lock")
			}
		})
	}, nil
}
