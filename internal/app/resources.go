// Package app 按配置组装存储、缓存与训练数据来源，供 server 与 riskctl 共用
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"

	"credit-risk-backend/internal/cache"
	"credit-risk-backend/internal/config"
	"credit-risk-backend/internal/ensemble"
	"credit-risk-backend/internal/service"
	"credit-risk-backend/internal/store"
)

// Resources 运行时依赖的外部资源，Close 统一释放
type Resources struct {
	cfg     *config.Config
	redis   *redis.Client
	closers []io.Closer
}

func NewResources(cfg *config.Config) *Resources {
	return &Resources{cfg: cfg}
}

// Redis 首次调用时连接
func (r *Resources) Redis(ctx context.Context) (*redis.Client, error) {
	if r.redis != nil {
		return r.redis, nil
	}
	rdb, err := cache.NewRedisClient(ctx, cache.RedisOptions{
		Addr:     r.cfg.Redis.Addr,
		Password: r.cfg.Redis.Password,
		DB:       r.cfg.Redis.DB,
	})
	if err != nil {
		return nil, err
	}
	r.redis = rdb
	r.closers = append(r.closers, rdb)
	return rdb, nil
}

// ModelStore 按 MODEL_STORE 选择模型存储
func (r *Resources) ModelStore(ctx context.Context) (store.ModelStore, error) {
	switch r.cfg.ModelStore {
	case "file":
		return store.NewFileStore(r.cfg.ModelDir), nil
	case "sqlite":
		s, err := store.OpenSQLiteStore(r.cfg.ModelDBPath)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, s)
		return s, nil
	case "redis":
		rdb, err := r.Redis(ctx)
		if err != nil {
			return nil, err
		}
		return store.NewRedisStore(rdb, r.cfg.Redis.ModelKey), nil
	}
	return nil, fmt.Errorf("未知的模型存储: %s", r.cfg.ModelStore)
}

// EvalCache 评估缓存，未启用时返回 nil
func (r *Resources) EvalCache(ctx context.Context) (cache.Provider, error) {
	if !r.cfg.EvalCache.Enabled {
		return nil, nil
	}
	switch r.cfg.EvalCache.Backend {
	case "memory":
		return cache.NewMemory(r.cfg.EvalCache.Size), nil
	case "redis":
		rdb, err := r.Redis(ctx)
		if err != nil {
			return nil, err
		}
		return cache.NewRedis(rdb, r.cfg.Redis.KeyPrefix), nil
	}
	return nil, fmt.Errorf("未知的缓存类型: %s", r.cfg.EvalCache.Backend)
}

// DatasetLoader 按 TRAIN_DATA_SOURCE 选择训练数据
func (r *Resources) DatasetLoader() (service.DatasetLoader, error) {
	return service.NewDatasetLoader(r.cfg.TrainDataSource, r.cfg.DatasetPath, r.cfg.SamplesDBPath)
}

// Close 逆序关闭
func (r *Resources) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	r.redis = nil
	return errors.Join(errs...)
}

// ScorerOptions 训练参数，未设置的使用默认值
func ScorerOptions(cfg *config.Config) ensemble.Options {
	opts := ensemble.DefaultOptions()
	if cfg.Training.ForestTrees > 0 {
		opts.ForestTrees = cfg.Training.ForestTrees
	}
	if cfg.Training.BoostRounds > 0 {
		opts.BoostRounds = cfg.Training.BoostRounds
	}
	return opts
}
