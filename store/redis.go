// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/siemens/netprobe/types"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix is the default key prefix of Redis-backed records.
const DefaultPrefix = "netprobe"

// maxTxRetries limits the optimistic transaction retries of an update.
const maxTxRetries = 10

// RedisStore keeps records as JSON documents under "<prefix>:scan:<id>" keys,
// with a "<prefix>:scans" sorted set indexing the records by creation time.
type RedisStore struct {
	client *redis.Client
	prefix string
	max    int
}

var _ Store = (*RedisStore)(nil)

// RedisOption can be passed to NewRedisStore.
type RedisOption func(*RedisStore)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithHistory sets the maximum number of records kept.
func WithHistory(max int) RedisOption {
	return func(s *RedisStore) {
		if max > 0 {
			s.max = max
		}
	}
}

// NewRedisStore returns a store using the specified Redis client.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: DefaultPrefix,
		max:    DefaultHistory,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial connects to the Redis server at the specified address and checks that
// it is reachable.
func Dial(ctx context.Context, addr string, opts ...RedisOption) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cannot connect to redis at %s: %w", addr, err)
	}
	return NewRedisStore(client, opts...), nil
}

// Close the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) recordKey(id string) string {
	return s.prefix + ":scan:" + id
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":scans"
}

// Put creates or replaces a record, trimming the history to its capacity.
func (s *RedisStore) Put(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(rec.ID), data, 0)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{
			Score:  float64(rec.CreatedAt.UnixNano()),
			Member: rec.ID,
		})
		return nil
	})
	if err != nil {
		return err
	}
	return s.trim(ctx)
}

// trim deletes records beyond the capacity, evicting the oldest finished
// records first, and only then the oldest unfinished ones.
func (s *RedisStore) trim(ctx context.Context) error {
	count, err := s.client.ZCard(ctx, s.indexKey()).Result()
	if err != nil || count <= int64(s.max) {
		return err
	}
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil || len(ids) == 0 {
		return err
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.recordKey(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return err
	}
	finished := make(map[string]bool, len(ids))
	for idx, v := range values {
		data, ok := v.(string)
		if !ok {
			finished[ids[idx]] = true // dangling index entry.
			continue
		}
		rec, err := decode([]byte(data))
		if err != nil {
			return err
		}
		finished[ids[idx]] = rec.Status.IsTerminal()
	}
	gone := victims(ids, s.max, func(id string) bool { return finished[id] })
	if len(gone) == 0 {
		return nil
	}
	keys = keys[:0]
	members := make([]interface{}, 0, len(gone))
	for _, id := range gone {
		keys = append(keys, s.recordKey(id))
		members = append(members, id)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, s.indexKey(), members...)
		return nil
	})
	return err
}

// Get returns the record with the specified ID.
func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	data, err := s.client.Get(ctx, s.recordKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decode(data)
}

// Update atomically modifies the record with the specified ID, using an
// optimistic transaction that gets retried when the record changed
// concurrently.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*Record) error) (*Record, error) {
	key := s.recordKey(id)
	var updated *Record
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}
		rec, err := decode(data)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		data, err = json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			updated = rec
		}
		return err
	}
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("cannot update scan %s: too much contention", id)
}

// List returns up to limit records, newest first; a limit below 1 lists all
// records.
func (s *RedisStore) List(ctx context.Context, limit int) ([]*Record, error) {
	stop := int64(limit) - 1
	if limit < 1 {
		stop = -1
	}
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, stop).Result()
	if err != nil || len(ids) == 0 {
		return []*Record{}, err
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.recordKey(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	recs := make([]*Record, 0, len(values))
	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			continue // record expired or trimmed meanwhile.
		}
		rec, err := decode([]byte(data))
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func decode(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("malformed scan record: %w", err)
	}
	if rec.Hosts == nil {
		rec.Hosts = map[string]types.HostResult{}
	}
	return &rec, nil
}
