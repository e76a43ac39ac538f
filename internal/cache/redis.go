package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions Redis 连接参数
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient 创建客户端并测试连接
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	addr := opts.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	// 测试连接
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("Redis连接失败: %w", err)
	}
	return rdb, nil
}

// Redis 以 JSON 存放的 Redis 缓存，key 统一加前缀
type Redis struct {
	rdb     redis.UniversalClient
	prefix  string
	timeout time.Duration
}

// NewRedis 创建 Redis 缓存
func NewRedis(rdb redis.UniversalClient, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix, timeout: 2 * time.Second}
}

func (p *Redis) Get(key string, dest any) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	data, err := p.rdb.Get(ctx, p.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (p *Redis) Set(key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.rdb.Set(ctx, p.prefix+key, data, expiration).Err()
}

// Delete 删除缓存
func (p *Redis) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.rdb.Del(ctx, p.prefix+key).Err()
}
