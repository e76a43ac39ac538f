package ensemble

import (
	"context"
	"errors"
	"math"
)

// Boost 对数损失的梯度提升树，叶子权重用牛顿步
type Boost struct {
	Rounds       int     `json:"n_estimators"`
	MaxDepth     int     `json:"max_depth"`
	LearningRate float64 `json:"learning_rate"`
	Lambda       float64 `json:"lambda"`

	BaseScore float64 `json:"base_score"`
	Trees     []Tree  `json:"trees"`
}

// Fit 初始分数取训练集违约率的对数几率
func (m *Boost) Fit(ctx context.Context, X [][]float64, y []int) error {
	n := len(X)
	if n == 0 || m.Rounds <= 0 {
		return ErrInsufficientData
	}

	var pos float64
	for _, v := range y {
		pos += float64(v)
	}
	rate := math.Min(math.Max(pos/float64(n), 1e-6), 1-1e-6)
	m.BaseScore = math.Log(rate / (1 - rate))

	margin := make([]float64, n)
	idx := make([]int, n)
	for i := range margin {
		margin[i] = m.BaseScore
		idx[i] = i
	}

	crit := newton{lambda: m.Lambda, minChild: 1}
	grad := make([]float64, n)
	hess := make([]float64, n)
	trees := make([]Tree, 0, m.Rounds)
	for r := 0; r < m.Rounds; r++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range margin {
			p := sigmoid(margin[i])
			grad[i] = p - float64(y[i])
			hess[i] = p * (1 - p)
		}
		t := growTree(X, idx, hess, grad, crit, m.MaxDepth, 0, nil)
		for i := range margin {
			margin[i] += m.LearningRate * t.Predict(X[i])
		}
		trees = append(trees, t)
	}
	m.Trees = trees
	return nil
}

// Proba 违约概率
func (m *Boost) Proba(x []float64) float64 {
	margin := m.BaseScore
	for _, t := range m.Trees {
		margin += m.LearningRate * t.Predict(x)
	}
	return sigmoid(margin)
}

func (m *Boost) validate(dims int) error {
	if len(m.Trees) == 0 {
		return errors.New("梯度提升没有树")
	}
	if math.IsNaN(m.BaseScore) || math.IsInf(m.BaseScore, 0) {
		return errors.New("梯度提升初始分数非有限值")
	}
	for _, t := range m.Trees {
		if err := t.validate(dims); err != nil {
			return err
		}
	}
	return nil
}
