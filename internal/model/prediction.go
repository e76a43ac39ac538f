package model

import "time"

// 模型名称
const (
	ModelLogistic         = "Logistic"
	ModelRandomForest     = "RandomForest"
	ModelGradientBoosting = "GradientBoosting"
	ModelStacking         = "Stacking"
)

// ModelNames 四个模型，Stacking 依赖前三个
var ModelNames = []string{ModelLogistic, ModelRandomForest, ModelGradientBoosting, ModelStacking}

// 预测标签
const (
	LabelDefault    = "Default"
	LabelNonDefault = "Non-Default"
)

// PredictionResult 单个模型的预测结果
type PredictionResult struct {
	PD    float64 `json:"pd"`    // 违约概率
	Label string  `json:"label"` // Default / Non-Default
}

// Predictions 模型名 -> 预测结果
type Predictions map[string]PredictionResult

// Final 集成模型（Stacking）的 PD
func (p Predictions) Final() Amount {
	r, ok := p[ModelStacking]
	if !ok {
		return Missing
	}
	return Some(r.PD)
}

// RiskBand 违约概率分级
type RiskBand struct {
	Range          string `json:"range"`
	Classification string `json:"classification"`
	Rating         string `json:"rating"`
	Meaning        string `json:"meaning"`
	Color          string `json:"color"`
	GradientColor  string `json:"gradient_color"`
}

// ModelMetrics 留出集上的评估指标
type ModelMetrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	AUC       Amount  `json:"auc"` // 留出集只有一类时缺失
}

// Evaluation 一次完整评估的结果
type Evaluation struct {
	ID             string                `json:"id"`
	CompanyName    string                `json:"company_name,omitempty"`
	Ratios         map[string]Amount     `json:"ratios"`
	Features       map[string]Amount     `json:"features"`
	Predictions    Predictions           `json:"predictions"`
	Classification RiskBand              `json:"pd_classification"`
	Resolved       map[string]PeriodPair `json:"resolved,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

// EvaluateRequest JSON 方式提交三张报表
type EvaluateRequest struct {
	CompanyName string     `json:"company_name"`
	Statements  Statements `json:"statements"`
}

// EvaluateResponse 评估响应
type EvaluateResponse struct {
	Success bool `json:"success"`
	Evaluation
	Message string `json:"message"`
}

// TrainResponse 训练结果
type TrainResponse struct {
	Metrics   map[string]ModelMetrics `json:"metrics"`
	TrainedAt time.Time               `json:"trained_at"`
	Samples   int                     `json:"samples"`
}
