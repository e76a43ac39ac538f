package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"credit-risk-backend/internal/ensemble"
	"credit-risk-backend/internal/logger"
	"credit-risk-backend/internal/metrics"
	"credit-risk-backend/internal/model"
	"credit-risk-backend/internal/store"
)

// ErrTrainingBusy 已有训练在进行
var ErrTrainingBusy = errors.New("已有训练任务在进行中")

// 训练触发方式
const (
	TriggerBootstrap = "bootstrap"
	TriggerManual    = "manual"
	TriggerSchedule  = "schedule"
	TriggerCLI       = "cli"
)

// TrainingNotifier 训练结束通知
type TrainingNotifier interface {
	NotifyTraining(trigger string, resp model.TrainResponse, err error) error
}

// ModelStatus 模型状态
type ModelStatus struct {
	Ready     bool                          `json:"models_trained"`
	TrainedAt *time.Time                    `json:"trained_at,omitempty"`
	Metrics   map[string]model.ModelMetrics `json:"metrics,omitempty"`
	Source    string                        `json:"dataset"`
}

// ModelService 模型的加载、训练与保存
type ModelService struct {
	scorer   *ensemble.Scorer
	store    store.ModelStore
	loader   DatasetLoader
	notifier TrainingNotifier
	log      *logrus.Entry

	trainMu sync.Mutex
}

// NewModelService 创建模型服务
func NewModelService(scorer *ensemble.Scorer, st store.ModelStore, loader DatasetLoader, log logrus.FieldLogger) *ModelService {
	return &ModelService{
		scorer: scorer,
		store:  st,
		loader: loader,
		log:    logger.Component(log, "model"),
	}
}

// SetNotifier 设置训练通知，nil 表示不通知
func (s *ModelService) SetNotifier(n TrainingNotifier) {
	s.notifier = n
}

// Scorer 当前评分器
func (s *ModelService) Scorer() *ensemble.Scorer {
	return s.scorer
}

// Bootstrap 优先加载已保存的模型，失败时用训练数据重新训练并保存
func (s *ModelService) Bootstrap(ctx context.Context) error {
	b, err := s.store.Load(ctx)
	if err == nil {
		err = s.scorer.Restore(b)
	}
	if err == nil {
		s.publish()
		s.log.WithField("trained_at", s.scorer.TrainedAt()).Info("已加载保存的模型")
		return nil
	}

	if errors.Is(err, store.ErrNotFound) {
		s.log.Info("没有已保存的模型，开始训练")
	} else {
		s.log.WithError(err).Warn("加载模型失败，重新训练")
	}
	_, err = s.Retrain(ctx, TriggerBootstrap)
	return err
}

// Retrain 训练并替换当前模型；同一时间只允许一个训练
// 训练成功但保存失败时新模型仍然生效，同时返回错误
func (s *ModelService) Retrain(ctx context.Context, trigger string) (resp model.TrainResponse, err error) {
	if !s.trainMu.TryLock() {
		return resp, ErrTrainingBusy
	}
	defer s.trainMu.Unlock()

	start := time.Now()
	log := s.log.WithFields(logrus.Fields{"trigger": trigger, "dataset": s.loader.Describe()})
	defer func() {
		metrics.TrainingsTotal.WithLabelValues(trigger, metrics.Result(err)).Inc()
		if s.notifier != nil {
			if nerr := s.notifier.NotifyTraining(trigger, resp, err); nerr != nil {
				log.WithError(nerr).Warn("发送训练通知失败")
			}
		}
	}()

	log.Info("开始训练")
	ds, err := s.loader.Load(ctx)
	if err != nil {
		return resp, fmt.Errorf("读取训练数据失败: %w", err)
	}

	m, err := s.scorer.Train(ctx, ds)
	metrics.Since(metrics.TrainingDuration, start)
	if err != nil {
		log.WithError(err).Error("训练失败")
		return resp, err
	}
	s.publish()

	resp = model.TrainResponse{Metrics: m, TrainedAt: s.scorer.TrainedAt(), Samples: ds.Len()}
	log.WithFields(logrus.Fields{
		"samples":  ds.Len(),
		"duration": time.Since(start).Round(time.Millisecond).String(),
		"auc":      m[model.ModelStacking].AUC,
	}).Info("训练完成")

	b, err := s.scorer.Bundle()
	if err == nil {
		err = s.store.Save(ctx, b)
	}
	if err != nil {
		log.WithError(err).Error("保存模型失败")
		return resp, fmt.Errorf("保存模型失败: %w", err)
	}
	return resp, nil
}

// Status 当前模型状态
func (s *ModelService) Status() ModelStatus {
	st := ModelStatus{Ready: s.scorer.Ready(), Source: s.loader.Describe()}
	if st.Ready {
		t := s.scorer.TrainedAt()
		st.TrainedAt = &t
		st.Metrics = s.scorer.Metrics()
	}
	return st
}

func (s *ModelService) publish() {
	metrics.ModelsReady.Set(1)
	for name, m := range s.scorer.Metrics() {
		if m.AUC.Valid {
			metrics.ModelAUC.WithLabelValues(name).Set(m.AUC.Value)
		}
	}
}
