// Package sessionstore keeps dashboard session records in Redis.
//
// Records are JSON documents replaced whole on every write. Update runs the
// caller's mutation under WATCH/MULTI so concurrent writers never lose each
// other's changes silently.
package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/ev-dealer-bfa-go/internal/domain"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/port"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix     = "dashboard:session:"
	defaultMaxRetries = 5
)

// Store is a port.SessionStore backed by Redis.
type Store struct {
	client     redis.UniversalClient
	prefix     string
	ttl        time.Duration
	maxRetries int
	now        func() time.Time
}

var _ port.SessionStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithMaxRetries bounds how often Update retries after a concurrent write.
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store whose records expire ttl after their last write.
func New(client redis.UniversalClient, ttl time.Duration, opts ...Option) *Store {
	s := &Store{
		client:     client,
		prefix:     defaultPrefix,
		ttl:        ttl,
		maxRetries: defaultMaxRetries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewClient connects to Redis at url (redis://...) and pings it.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: parse url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sessionstore: ping: %w", err)
	}
	return client, nil
}

func (s *Store) key(sid string) string {
	return s.prefix + sid
}

// Get loads the record for sid.
func (s *Store) Get(ctx context.Context, sid string) (*domain.SessionRecord, error) {
	raw, err := s.client.Get(ctx, s.key(sid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, &domain.ErrNotFound{Resource: "session", ID: sid}
		}
		return nil, fmt.Errorf("sessionstore: get: %w", err)
	}
	return decode(sid, raw)
}

// Set writes rec unconditionally.
func (s *Store) Set(ctx context.Context, sid string, rec *domain.SessionRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	rec.UpdatedAt = s.now()
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("sessionstore: encode: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sid), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("sessionstore: set: %w", err)
	}
	return nil
}

// Update applies fn to the current record and writes the result only if nobody
// else wrote the key in between. It retries a bounded number of times and then
// gives up with *domain.ErrConflict.
func (s *Store) Update(ctx context.Context, sid string, fn port.SessionMutator) (*domain.SessionRecord, error) {
	key := s.key(sid)
	var result *domain.SessionRecord

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return &domain.ErrNotFound{Resource: "session", ID: sid}
			}
			return err
		}
		current, err := decode(sid, raw)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			result = current
			return nil
		}
		next.Version = current.Version + 1
		next.CreatedAt = current.CreatedAt
		next.UpdatedAt = s.now()
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("sessionstore: encode: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err == nil {
			result = next
		}
		return err
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, &domain.ErrConflict{Message: "session " + sid + " changed concurrently too many times"}
}

// Clear deletes the record. Clearing a missing record is not an error.
func (s *Store) Clear(ctx context.Context, sid string) error {
	if err := s.client.Del(ctx, s.key(sid)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("sessionstore: clear: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func decode(sid string, raw []byte) (*domain.SessionRecord, error) {
	var rec domain.SessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, &domain.ErrCorruptSession{SessionID: sid, Err: err}
	}
	return &rec, nil
}
