package quiz

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const defaultLeaderboardKey = "worldnet:leaderboard"

// RedisLeaderboard keeps scores in a Redis sorted set.
type RedisLeaderboard struct {
	client *redis.Client
	key    string
}

// NewRedisLeaderboard creates a Redis-backed leaderboard. An empty key uses
// "worldnet:leaderboard".
func NewRedisLeaderboard(client *redis.Client, key string) *RedisLeaderboard {
	if key == "" {
		key = defaultLeaderboardKey
	}
	return &RedisLeaderboard{client: client, key: key}
}

func (l *RedisLeaderboard) Record(ctx context.Context, name string, score int) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("player name is required")
	}
	// GT only ever raises an existing member's score.
	if err := l.client.ZAddGT(ctx, l.key, redis.Z{Score: float64(score), Member: name}).Err(); err != nil {
		return fmt.Errorf("record score: %w", err)
	}
	return nil
}

func (l *RedisLeaderboard) Top(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	zs, err := l.client.ZRevRangeWithScores(ctx, l.key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(zs))
	for _, z := range zs {
		name, _ := z.Member.(string)
		entries = append(entries, LeaderboardEntry{Name: name, Score: int(z.Score)})
	}
	return entries, nil
}

// Seed adds entries that are not already on the board.
func (l *RedisLeaderboard) Seed(ctx context.Context, entries []LeaderboardEntry) error {
	if len(entries) == 0 {
		return nil
	}
	zs := make([]redis.Z, 0, len(entries))
	for _, e := range entries {
		zs = append(zs, redis.Z{Score: float64(e.Score), Member: e.Name})
	}
	if err := l.client.ZAddNX(ctx, l.key, zs...).Err(); err != nil {
		return fmt.Errorf("seed leaderboard: %w", err)
	}
	return nil
}
