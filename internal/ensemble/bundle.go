package ensemble

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"credit-risk-backend/internal/model"
)

// BundleVersion 模型包格式版本
const BundleVersion = 2

// Bundle 四个模型的序列化状态，按模型名存放
type Bundle struct {
	Version   int                           `json:"version"`
	TrainedAt time.Time                     `json:"trained_at"`
	Metrics   map[string]model.ModelMetrics `json:"metrics,omitempty"`
	Models    map[string]json.RawMessage    `json:"models"`
}

// 每个模型状态都带上所属训练批次，混入其他批次的模型时 Restore 拒绝
type baseState struct {
	Generation string          `json:"generation"`
	Imputer    Imputer         `json:"imputer"`
	Estimator  json.RawMessage `json:"estimator"`
}

type stackingState struct {
	Generation string    `json:"generation"`
	Bases      []string  `json:"bases"`
	Meta       *Logistic `json:"meta"`
}

func generation(trainedAt time.Time) string {
	return trainedAt.UTC().Format(time.RFC3339Nano)
}

// Bundle 导出当前模型组
func (s *Scorer) Bundle() (Bundle, error) {
	st := s.state.Load()
	if st == nil {
		return Bundle{}, ErrModelNotReady
	}

	b := Bundle{
		Version:   BundleVersion,
		TrainedAt: st.trainedAt,
		Metrics:   maps.Clone(st.metrics),
		Models:    make(map[string]json.RawMessage, len(model.ModelNames)),
	}
	gen := generation(st.trainedAt)
	for k, name := range baseNames {
		est, err := json.Marshal(st.bases[k].est)
		if err != nil {
			return Bundle{}, fmt.Errorf("序列化 %s 失败: %w", name, err)
		}
		raw, err := json.Marshal(baseState{Generation: gen, Imputer: st.bases[k].imputer, Estimator: est})
		if err != nil {
			return Bundle{}, fmt.Errorf("序列化 %s 失败: %w", name, err)
		}
		b.Models[name] = raw
	}
	raw, err := json.Marshal(stackingState{Generation: gen, Bases: baseNames[:], Meta: st.meta})
	if err != nil {
		return Bundle{}, fmt.Errorf("序列化 %s 失败: %w", model.ModelStacking, err)
	}
	b.Models[model.ModelStacking] = raw
	return b, nil
}

// Restore 加载模型包；任一模型缺失或损坏都返回 ErrPersistence，且不改变当前模型
func (s *Scorer) Restore(b Bundle) error {
	st, err := s.decode(b)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.state.Store(st)
	return nil
}

func (s *Scorer) decode(b Bundle) (*state, error) {
	if b.Version != BundleVersion {
		return nil, fmt.Errorf("版本 %d 不受支持", b.Version)
	}

	gen := generation(b.TrainedAt)
	st := &state{trainedAt: b.TrainedAt, metrics: maps.Clone(b.Metrics)}
	for k, name := range baseNames {
		raw, ok := b.Models[name]
		if !ok {
			return nil, fmt.Errorf("缺少模型 %s", name)
		}
		var bs baseState
		if err := json.Unmarshal(raw, &bs); err != nil {
			return nil, fmt.Errorf("解析 %s 失败: %w", name, err)
		}
		if bs.Generation != gen {
			return nil, fmt.Errorf("%s 与模型包不属于同一次训练", name)
		}
		if err := bs.Imputer.validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		est := s.opts.estimator(name)
		if err := json.Unmarshal(bs.Estimator, est); err != nil {
			return nil, fmt.Errorf("解析 %s 失败: %w", name, err)
		}
		if err := est.validate(model.RatioCount); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		st.bases[k] = pipeline{imputer: bs.Imputer, est: est}
	}

	raw, ok := b.Models[model.ModelStacking]
	if !ok {
		return nil, fmt.Errorf("缺少模型 %s", model.ModelStacking)
	}
	var ss stackingState
	if err := json.Unmarshal(raw, &ss); err != nil {
		return nil, fmt.Errorf("解析 %s 失败: %w", model.ModelStacking, err)
	}
	if ss.Generation != gen {
		return nil, fmt.Errorf("%s 与模型包不属于同一次训练", model.ModelStacking)
	}
	if !slices.Equal(ss.Bases, baseNames[:]) {
		return nil, fmt.Errorf("%s 的基模型顺序不匹配", model.ModelStacking)
	}
	if ss.Meta == nil {
		return nil, errors.New("缺少元模型参数")
	}
	if err := ss.Meta.validate(len(baseNames)); err != nil {
		return nil, fmt.Errorf("%s: %w", model.ModelStacking, err)
	}
	st.meta = ss.Meta
	return st, nil
}
