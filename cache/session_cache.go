package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"Decibel/logger"
	"Decibel/model"

	"github.com/go-redis/redis/v8"
)

// RedisSessionStore keeps the saved tracklist in Redis.
// Tracks live in a sorted set scored by position; members are prefixed with
// their position so that duplicate tracks stay distinct.
type RedisSessionStore struct {
	client *redis.Client
	name   string
	ttl    time.Duration
}

// NewRedisSessionStore returns a store for the named session. A zero ttl never expires.
func NewRedisSessionStore(client *redis.Client, name string, ttl time.Duration) *RedisSessionStore {
	if name == "" {
		name = "default"
	}
	return &RedisSessionStore{client: client, name: name, ttl: ttl}
}

// sessionKeyPrefix 所有会话键的命名空间
const sessionKeyPrefix = "decibel:session:"

// GetSessionKey 会话曲目有序集合的键
func GetSessionKey(name string) string {
	return fmt.Sprintf("%s%s:tracks", sessionKeyPrefix, name)
}

// GetSessionMetaKey 会话元数据哈希的键
func GetSessionMetaKey(name string) string {
	return fmt.Sprintf("%s%s:meta", sessionKeyPrefix, name)
}

// GetSessionProbeKey 连接测试使用的临时键
func GetSessionProbeKey(name string) string {
	return fmt.Sprintf("%s%s:probe", sessionKeyPrefix, name)
}

// Name returns the session the store saves to.
func (s *RedisSessionStore) Name() string {
	return s.name
}

// Check round-trips a probe key next to the session keys and returns how many
// tracks are saved under the session.
func (s *RedisSessionStore) Check(ctx context.Context) (int64, error) {
	probeKey := GetSessionProbeKey(s.name)
	probeValue := strconv.FormatInt(time.Now().UnixNano(), 10)

	if err := s.client.Set(ctx, probeKey, probeValue, time.Minute).Err(); err != nil {
		return 0, fmt.Errorf("failed to set %s: %w", probeKey, err)
	}
	val, err := s.client.Get(ctx, probeKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get %s: %w", probeKey, err)
	}
	if val != probeValue {
		return 0, fmt.Errorf("unexpected value for %s: got %s", probeKey, val)
	}
	if err := s.client.Del(ctx, probeKey).Err(); err != nil {
		return 0, fmt.Errorf("failed to delete %s: %w", probeKey, err)
	}

	saved, err := s.client.ZCard(ctx, GetSessionKey(s.name)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count session %s: %w", s.name, err)
	}
	return saved, nil
}

func encodeMember(position int, serialized string) string {
	return strconv.Itoa(position) + " " + serialized
}

func decodeMember(member string) (string, error) {
	pos, serialized, ok := strings.Cut(member, " ")
	if !ok {
		return "", fmt.Errorf("malformed session member %q", member)
	}
	if _, err := strconv.Atoi(pos); err != nil {
		return "", fmt.Errorf("malformed session member position %q", pos)
	}
	return serialized, nil
}

// SaveSession 以事务覆盖保存播放列表
func (s *RedisSessionStore) SaveSession(ctx context.Context, session *model.Session) error {
	key := GetSessionKey(s.name)
	metaKey := GetSessionMetaKey(s.name)

	members := make([]*redis.Z, len(session.Tracks))
	for i, t := range session.Tracks {
		members[i] = &redis.Z{Score: float64(i), Member: encodeMember(i, t.Serialize())}
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key, metaKey)
		if len(members) > 0 {
			pipe.ZAdd(ctx, key, members...)
		}
		pipe.HSet(ctx, metaKey, map[string]interface{}{
			"current":  session.Current,
			"count":    len(session.Tracks),
			"saved_at": time.Now().Unix(),
		})
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
			pipe.Expire(ctx, metaKey, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", s.name, err)
	}
	return nil
}

// LoadSession returns nil, nil when nothing was saved.
func (s *RedisSessionStore) LoadSession(ctx context.Context) (*model.Session, error) {
	members, err := s.client.ZRangeByScore(ctx, GetSessionKey(s.name), &redis.ZRangeBy{
		Min: "-inf",
		Max: "+inf",
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to load session %s: %w", s.name, err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	current := -1
	raw, err := s.client.HGet(ctx, GetSessionMetaKey(s.name), "current").Result()
	switch {
	case err == nil:
		if n, convErr := strconv.Atoi(raw); convErr == nil {
			current = n
		}
	case err != redis.Nil:
		return nil, fmt.Errorf("failed to load session meta %s: %w", s.name, err)
	}

	return decodeSession(members, current), nil
}

func (s *RedisSessionStore) ClearSession(ctx context.Context) error {
	if err := s.client.Del(ctx, GetSessionKey(s.name), GetSessionMetaKey(s.name)).Err(); err != nil {
		return fmt.Errorf("failed to clear session %s: %w", s.name, err)
	}
	return nil
}

// decodeSession rebuilds tracks in member order. current is a position among
// all members and is remapped onto the members that decoded.
func decodeSession(members []string, current int) *model.Session {
	session := &model.Session{Current: -1}
	for i, m := range members {
		serialized, err := decodeMember(m)
		if err != nil {
			logger.Warn("skipping session member", logger.Int("position", i), logger.ErrorField(err))
			continue
		}
		t, err := model.Unserialize(serialized)
		if err != nil {
			logger.Warn("skipping session track", logger.Int("position", i), logger.ErrorField(err))
			continue
		}
		if i == current {
			session.Current = len(session.Tracks)
		}
		session.Tracks = append(session.Tracks, t)
	}
	return session
}
