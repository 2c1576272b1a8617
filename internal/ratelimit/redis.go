package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "bluecut:ratelimit:"
	maxTxRetries       = 8
)

// RedisStore shares records between API instances. Updates use optimistic
// WATCH/MULTI transactions and retry when another instance raced them.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps client. The caller owns the client lifecycle.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: defaultRedisPrefix}
}

func (s *RedisStore) key(k string) string { return s.prefix + k }

func decodeRecord(raw []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("ratelimit: decode record: %w", err)
	}
	return rec, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (Record, bool, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("ratelimit: get: %w", err)
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *RedisStore) Update(ctx context.Context, key string, ttl time.Duration, fn func(Record, bool) Record) (Record, error) {
	rkey := s.key(key)
	var out Record
	txf := func(tx *redis.Tx) error {
		var (
			rec Record
			ok  bool
		)
		raw, err := tx.Get(ctx, rkey).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if rec, err = decodeRecord(raw); err != nil {
				return err
			}
			ok = true
		}
		out = fn(rec, ok)
		data, err := json.Marshal(out)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rkey, data, ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, rkey)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return Record{}, fmt.Errorf("ratelimit: update: %w", err)
	}
	return Record{}, errors.New("ratelimit: update: too much contention")
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("ratelimit: delete: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
