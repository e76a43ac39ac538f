// Package store 模型包的持久化：本地目录、SQLite 或 Redis
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"credit-risk-backend/internal/ensemble"
	"credit-risk-backend/internal/model"
)

// ErrNotFound 尚未保存过模型
var ErrNotFound = errors.New("未找到已保存的模型")

// ModelStore 模型包的保存与读取
// Load 只负责读出数据，完整性由 ensemble.Scorer.Restore 校验
type ModelStore interface {
	Save(ctx context.Context, b ensemble.Bundle) error
	Load(ctx context.Context) (ensemble.Bundle, error)
}

// 存储类型
const (
	KindFile   = "file"
	KindSQLite = "sqlite"
	KindRedis  = "redis"
)

// manifest 模型包除各模型状态以外的部分
type manifest struct {
	Version   int                           `json:"version"`
	TrainedAt time.Time                     `json:"trained_at"`
	Metrics   map[string]model.ModelMetrics `json:"metrics,omitempty"`
	Models    []string                      `json:"models"`
}

func newManifest(b ensemble.Bundle) manifest {
	m := manifest{Version: b.Version, TrainedAt: b.TrainedAt, Metrics: b.Metrics}
	for _, name := range model.ModelNames {
		if _, ok := b.Models[name]; ok {
			m.Models = append(m.Models, name)
		}
	}
	return m
}

func (m manifest) bundle() ensemble.Bundle {
	return ensemble.Bundle{
		Version:   m.Version,
		TrainedAt: m.TrainedAt,
		Metrics:   m.Metrics,
		Models:    make(map[string]json.RawMessage, len(m.Models)),
	}
}

func decodeManifest(data []byte) (manifest, error) {
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("解析模型清单失败: %w", err)
	}
	return m, nil
}
