package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"credit-risk-backend/internal/ensemble"
)

// DefaultRedisKey 模型包所在的 hash
const DefaultRedisKey = "credit-risk:models"

const manifestField = "__manifest"

// RedisStore 模型包存为一个 hash：清单字段加每个模型一个字段
type RedisStore struct {
	rdb redis.UniversalClient
	key string
}

// NewRedisStore key 为空时用 DefaultRedisKey
func NewRedisStore(rdb redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{rdb: rdb, key: key}
}

// Save MULTI/EXEC 中先删除旧 hash 再整体写入
func (s *RedisStore) Save(ctx context.Context, b ensemble.Bundle) error {
	m := newManifest(b)
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	fields := make(map[string]any, len(m.Models)+1)
	fields[manifestField] = string(data)
	for _, name := range m.Models {
		fields[name] = string(b.Models[name])
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		pipe.HSet(ctx, s.key, fields)
		return nil
	})
	if err != nil {
		return fmt.Errorf("保存模型到Redis失败: %w", err)
	}
	return nil
}

// Load 读取整个 hash
func (s *RedisStore) Load(ctx context.Context) (ensemble.Bundle, error) {
	vals, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return ensemble.Bundle{}, fmt.Errorf("从Redis读取模型失败: %w", err)
	}
	data, ok := vals[manifestField]
	if !ok {
		return ensemble.Bundle{}, ErrNotFound
	}
	m, err := decodeManifest([]byte(data))
	if err != nil {
		return ensemble.Bundle{}, err
	}

	b := m.bundle()
	for field, v := range vals {
		if field == manifestField {
			continue
		}
		b.Models[field] = json.RawMessage(v)
	}
	return b, nil
}
