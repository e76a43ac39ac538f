// Package metrics Prometheus 指标
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EvaluationsTotal 评估次数，按结果和来源统计
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_risk_evaluations_total",
		Help: "Total evaluations by result and source",
	}, []string{"result", "source"})

	// EvaluationDuration 评估耗时
	EvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "credit_risk_evaluation_duration_seconds",
		Help:    "Evaluation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	// RiskBandTotal 评估结果的风险等级分布
	RiskBandTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_risk_band_total",
		Help: "Evaluations by resulting risk band",
	}, []string{"band"})

	// CacheTotal 评估缓存命中情况
	CacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_risk_eval_cache_total",
		Help: "Evaluation cache lookups by result",
	}, []string{"result"})

	// TrainingsTotal 训练次数，按触发方式和结果统计
	TrainingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_risk_trainings_total",
		Help: "Total training runs by trigger and result",
	}, []string{"trigger", "result"})

	// TrainingDuration 训练耗时
	TrainingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "credit_risk_training_duration_seconds",
		Help:    "Training duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})

	// ModelAUC 当前模型的留出集 AUC
	ModelAUC = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "credit_risk_model_auc",
		Help: "Holdout AUC of the active models",
	}, []string{"model"})

	// ModelsReady 模型是否就绪（0/1）
	ModelsReady = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "credit_risk_models_ready",
		Help: "Whether all four models are loaded",
	})
)

// Since 记录到直方图
func Since(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Result 错误为 nil 时为 ok
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
