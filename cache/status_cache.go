// Package cache keeps the derived lifecycle state of each unit in Redis so
// list and kiosk views do not have to scan the usage ledger on every request.
// Every method is safe on a nil *StatusCache, which behaves as a permanent miss.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const indexKey = "eut:state:index"

// ErrStale reports a Set whose generation was superseded by an Invalidate.
var ErrStale = errors.New("cache: state generation changed")

type StatusCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStatusCache(rdb *redis.Client, ttl time.Duration) *StatusCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &StatusCache{rdb: rdb, ttl: ttl}
}

func key(equipmentID string) string { return fmt.Sprintf("eut:state:%s", equipmentID) }

func genKey(equipmentID string) string { return fmt.Sprintf("eut:state:gen:%s", equipmentID) }

func (s *StatusCache) Get(ctx context.Context, equipmentID string) (string, bool, error) {
	if s == nil {
		return "", false, nil
	}
	v, err := s.rdb.Get(ctx, key(equipmentID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Generation returns the invalidation counter of a unit. Read it before
// deriving a state and hand it to Set.
func (s *StatusCache) Generation(ctx context.Context, equipmentID string) (int64, error) {
	if s == nil {
		return 0, nil
	}
	gen, err := s.rdb.Get(ctx, genKey(equipmentID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Set stores state only if no Invalidate ran since gen was read. It reports
// false when the write was dropped as stale.
func (s *StatusCache) Set(ctx context.Context, equipmentID, state string, gen int64) (bool, error) {
	if s == nil {
		return false, nil
	}
	gk := genKey(equipmentID)
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, gk).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return ErrStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key(equipmentID), state, s.ttl)
			pipe.SAdd(ctx, indexKey, equipmentID)
			return nil
		})
		return err
	}, gk)
	if errors.Is(err, ErrStale) || errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *StatusCache) Invalidate(ctx context.Context, equipmentIDs ...string) error {
	if s == nil || len(equipmentIDs) == 0 {
		return nil
	}
	pipe := s.rdb.TxPipeline()
	members := make([]any, 0, len(equipmentIDs))
	for _, id := range equipmentIDs {
		pipe.Incr(ctx, genKey(id))
		pipe.Del(ctx, key(id))
		members = append(members, id)
	}
	pipe.SRem(ctx, indexKey, members...)
	_, err := pipe.Exec(ctx)
	return err
}

// Purge drops every cached state. Generation counters are kept so they never
// move backwards. Run at startup so a fresh process never
// serves state computed by an older schema.
func (s *StatusCache) Purge(ctx context.Context) error {
	if s == nil {
		return nil
	}
	ids, err := s.rdb.SMembers(ctx, indexKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	pipe := s.rdb.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, key(id))
	}
	pipe.Del(ctx, indexKey)
	_, err = pipe.Exec(ctx)
	return err
}
