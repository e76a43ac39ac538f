package ensemble

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// Logistic L2 正则逻辑回归，L-BFGS 求解
type Logistic struct {
	C           float64 `json:"c"`
	Balanced    bool    `json:"balanced"`
	Standardize bool    `json:"standardize"`
	MaxIter     int     `json:"max_iter"`

	Mean      []float64 `json:"mean,omitempty"`
	Scale     []float64 `json:"scale,omitempty"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

// Fit 最小化 0.5*|w|^2 + C*Σ s_i*logloss_i，截距不参与正则
func (m *Logistic) Fit(ctx context.Context, X [][]float64, y []int) error {
	if len(X) == 0 {
		return ErrInsufficientData
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p := len(X[0])
	m.Mean, m.Scale = nil, nil
	if m.Standardize {
		m.Mean, m.Scale = columnStats(X)
	}
	Z := make([][]float64, len(X))
	for i, x := range X {
		Z[i] = m.scaled(x)
	}

	cw := classWeights(y, m.Balanced)
	c := m.C
	if c <= 0 {
		c = 1
	}
	w := make([]float64, len(y))
	for i, v := range y {
		w[i] = c * cw[v]
	}

	problem := optimize.Problem{
		Func: func(beta []float64) float64 {
			loss := 0.5 * floats.Dot(beta[:p], beta[:p])
			for i, z := range Z {
				margin := floats.Dot(beta[:p], z) + beta[p]
				if y[i] == 1 {
					loss += w[i] * softplus(-margin)
				} else {
					loss += w[i] * softplus(margin)
				}
			}
			return loss
		},
		Grad: func(grad, beta []float64) {
			copy(grad[:p], beta[:p])
			grad[p] = 0
			for i, z := range Z {
				margin := floats.Dot(beta[:p], z) + beta[p]
				r := w[i] * (sigmoid(margin) - float64(y[i]))
				floats.AddScaled(grad[:p], r, z)
				grad[p] += r
			}
		},
	}

	maxIter := m.MaxIter
	if maxIter <= 0 {
		maxIter = 1000
	}
	settings := &optimize.Settings{
		MajorIterations:   maxIter,
		GradientThreshold: 1e-6,
	}
	res, err := optimize.Minimize(problem, make([]float64, p+1), settings, &optimize.LBFGS{})
	if res == nil {
		return fmt.Errorf("逻辑回归求解失败: %w", err)
	}
	if !finite(res.X) {
		return errors.New("逻辑回归求解失败: 参数发散")
	}

	m.Coef = append([]float64(nil), res.X[:p]...)
	m.Intercept = res.X[p]
	return nil
}

// Proba 违约概率
func (m *Logistic) Proba(x []float64) float64 {
	return sigmoid(floats.Dot(m.Coef, m.scaled(x)) + m.Intercept)
}

func (m *Logistic) scaled(x []float64) []float64 {
	if len(m.Mean) == 0 {
		return x
	}
	z := make([]float64, len(x))
	for j, v := range x {
		z[j] = (v - m.Mean[j]) / m.Scale[j]
	}
	return z
}

func (m *Logistic) validate(dims int) error {
	if len(m.Coef) != dims {
		return fmt.Errorf("逻辑回归系数个数 %d，应为 %d", len(m.Coef), dims)
	}
	if m.Standardize && (len(m.Mean) != dims || len(m.Scale) != dims) {
		return errors.New("逻辑回归缺少标准化参数")
	}
	for _, s := range m.Scale {
		if s == 0 {
			return errors.New("逻辑回归标准差为0")
		}
	}
	if !finite(m.Coef) || !finite(m.Mean) || !finite(m.Scale) || !finite([]float64{m.Intercept}) {
		return errors.New("逻辑回归参数非有限值")
	}
	return nil
}

// columnStats 列均值和总体标准差，标准差为0时取1
func columnStats(X [][]float64) (mean, scale []float64) {
	p := len(X[0])
	mean = make([]float64, p)
	scale = make([]float64, p)
	n := float64(len(X))
	for _, x := range X {
		floats.Add(mean, x)
	}
	floats.Scale(1/n, mean)
	for _, x := range X {
		for j, v := range x {
			d := v - mean[j]
			scale[j] += d * d
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / n)
		if scale[j] == 0 || math.IsNaN(scale[j]) || math.IsInf(scale[j], 0) {
			scale[j] = 1
		}
	}
	return mean, scale
}
