package ensemble

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Forest 随机森林：bootstrap + 每次分裂随机抽取 √p 个特征
type Forest struct {
	NTrees   int   `json:"n_estimators"`
	MaxDepth int   `json:"max_depth"`
	Seed     int64 `json:"seed"`
	Balanced bool  `json:"balanced"`

	Trees []Tree `json:"trees"`
}

// Fit 每棵树使用独立种子 Seed+t，结果与并发调度无关
func (m *Forest) Fit(ctx context.Context, X [][]float64, y []int) error {
	n := len(X)
	if n == 0 || m.NTrees <= 0 {
		return ErrInsufficientData
	}
	p := len(X[0])
	maxFeatures := max(1, int(math.Sqrt(float64(p))))
	cw := classWeights(y, m.Balanced)

	trees := make([]Tree, m.NTrees)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for t := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(m.Seed + int64(t)))
			counts := make([]int, n)
			for range n {
				counts[rng.Intn(n)]++
			}

			a := make([]float64, n)
			b := make([]float64, n)
			idx := make([]int, 0, n)
			for i, c := range counts {
				if c == 0 {
					continue
				}
				idx = append(idx, i)
				a[i] = float64(c) * cw[y[i]]
				b[i] = a[i] * float64(y[i])
			}
			trees[t] = growTree(X, idx, a, b, gini{}, m.MaxDepth, maxFeatures, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	m.Trees = trees
	return nil
}

// Proba 各树叶子正类占比的平均
func (m *Forest) Proba(x []float64) float64 {
	var sum float64
	for _, t := range m.Trees {
		sum += t.Predict(x)
	}
	return sum / float64(len(m.Trees))
}

func (m *Forest) validate(dims int) error {
	if len(m.Trees) == 0 {
		return errors.New("随机森林没有树")
	}
	for _, t := range m.Trees {
		if err := t.validate(dims); err != nil {
			return err
		}
	}
	return nil
}
