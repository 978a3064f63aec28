package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const presenceKey = "presence:identities"

// RedisPresenceStore keeps one ZSET of identity ids scored by the unix time
// their online mark expires.
type RedisPresenceStore struct {
	rdb *redis.Client
}

func NewRedisPresenceStore(rdb *redis.Client) *RedisPresenceStore {
	return &RedisPresenceStore{
		rdb: rdb,
	}
}

func (p *RedisPresenceStore) MarkOnline(
	ctx context.Context,
	identityID int64,
	ttl time.Duration,
) error {
	return p.rdb.ZAdd(ctx, presenceKey, redis.Z{
		Score:  float64(time.Now().Add(ttl).Unix()),
		Member: strconv.FormatInt(identityID, 10),
	}).Err()
}

func (p *RedisPresenceStore) MarkOffline(ctx context.Context, identityID int64) error {
	return p.rdb.ZRem(ctx, presenceKey, strconv.FormatInt(identityID, 10)).Err()
}

func (p *RedisPresenceStore) OnlineAmong(
	ctx context.Context,
	ids []int64,
) (map[int64]bool, error) {
	online := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return online, nil
	}
	now := strconv.FormatInt(time.Now().Unix(), 10)
	// Remove expired members first (self-cleaning)
	if err := p.rdb.ZRemRangeByScore(ctx, presenceKey, "-inf", "("+now).Err(); err != nil {
		return nil, err
	}
	members := make([]string, len(ids))
	for i, id := range ids {
		members[i] = strconv.FormatInt(id, 10)
	}
	scores, err := p.rdb.ZMScore(ctx, presenceKey, members...).Result()
	if err != nil {
		return nil, err
	}
	for i, id := range ids {
		online[id] = i < len(scores) && scores[i] > 0
	}
	return online, nil
}
