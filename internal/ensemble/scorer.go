// Package ensemble 违约概率集成模型：逻辑回归、随机森林、梯度提升三个基模型
// 加一个以基模型袋外概率为输入的 Stacking 元模型
package ensemble

import (
	"context"
	"fmt"
	"maps"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"credit-risk-backend/internal/model"
)

// baseNames 基模型顺序，也是元模型输入列的顺序
var baseNames = [3]string{model.ModelLogistic, model.ModelRandomForest, model.ModelGradientBoosting}

// Options 训练参数
type Options struct {
	Seed     int64   // 划分与随机森林的随机种子
	TestSize float64 // 留出集比例
	Folds    int     // Stacking 交叉验证折数
	MaxIter  int     // 逻辑回归最大迭代次数

	ForestTrees int
	ForestDepth int

	BoostRounds  int
	BoostDepth   int
	LearningRate float64
}

// DefaultOptions 默认训练参数
func DefaultOptions() Options {
	return Options{
		Seed:         42,
		TestSize:     0.2,
		Folds:        5,
		MaxIter:      1000,
		ForestTrees:  100,
		ForestDepth:  10,
		BoostRounds:  100,
		BoostDepth:   6,
		LearningRate: 0.1,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TestSize <= 0 || o.TestSize >= 1 {
		o.TestSize = d.TestSize
	}
	if o.Folds < 2 {
		o.Folds = d.Folds
	}
	if o.MaxIter <= 0 {
		o.MaxIter = d.MaxIter
	}
	if o.ForestTrees <= 0 {
		o.ForestTrees = d.ForestTrees
	}
	if o.ForestDepth <= 0 {
		o.ForestDepth = d.ForestDepth
	}
	if o.BoostRounds <= 0 {
		o.BoostRounds = d.BoostRounds
	}
	if o.BoostDepth <= 0 {
		o.BoostDepth = d.BoostDepth
	}
	if o.LearningRate <= 0 {
		o.LearningRate = d.LearningRate
	}
	return o
}

type estimator interface {
	Fit(ctx context.Context, X [][]float64, y []int) error
	Proba(x []float64) float64
	validate(dims int) error
}

func (o Options) estimator(name string) estimator {
	switch name {
	case model.ModelLogistic:
		return &Logistic{C: 1, Balanced: true, Standardize: true, MaxIter: o.MaxIter}
	case model.ModelRandomForest:
		return &Forest{NTrees: o.ForestTrees, MaxDepth: o.ForestDepth, Seed: o.Seed, Balanced: true}
	case model.ModelGradientBoosting:
		return &Boost{Rounds: o.BoostRounds, MaxDepth: o.BoostDepth, LearningRate: o.LearningRate, Lambda: 1}
	}
	return nil
}

func (o Options) meta() *Logistic {
	return &Logistic{C: 1, MaxIter: o.MaxIter}
}

// pipeline 缺失值填补 + 基模型
type pipeline struct {
	imputer Imputer
	est     estimator
}

func (p pipeline) proba(row [model.RatioCount]model.Amount) float64 {
	return p.est.Proba(p.imputer.Transform(row))
}

// state 一组训练好的四个模型，发布后只读
type state struct {
	bases     [3]pipeline
	meta      *Logistic
	trainedAt time.Time
	metrics   map[string]model.ModelMetrics
}

func (st *state) predict(row [model.RatioCount]model.Amount) model.Predictions {
	probs := make([]float64, len(baseNames))
	out := make(model.Predictions, len(model.ModelNames))
	for k, name := range baseNames {
		probs[k] = st.bases[k].proba(row)
		out[name] = model.PredictionResult{PD: probs[k], Label: label(probs[k])}
	}
	pd := st.meta.Proba(probs)
	out[model.ModelStacking] = model.PredictionResult{PD: pd, Label: label(pd)}
	return out
}

func (st *state) evaluate(rows [][model.RatioCount]model.Amount, y []int) map[string]model.ModelMetrics {
	proba := make(map[string][]float64, len(model.ModelNames))
	for _, row := range rows {
		for name, r := range st.predict(row) {
			proba[name] = append(proba[name], r.PD)
		}
	}
	out := make(map[string]model.ModelMetrics, len(model.ModelNames))
	for _, name := range model.ModelNames {
		out[name] = score(y, proba[name])
	}
	return out
}

// Scorer 集成评分器；训练或加载完成后整体替换模型组，预测期间无锁读取
type Scorer struct {
	opts  Options
	state atomic.Pointer[state]
}

// New 创建未训练的评分器
func New(opts Options) *Scorer {
	return &Scorer{opts: opts.withDefaults()}
}

// Options 当前训练参数
func (s *Scorer) Options() Options {
	return s.opts
}

// Ready 四个模型是否都可用
func (s *Scorer) Ready() bool {
	return s.state.Load() != nil
}

// TrainedAt 当前模型组的训练时间，未就绪时为零值
func (s *Scorer) TrainedAt() time.Time {
	if st := s.state.Load(); st != nil {
		return st.trainedAt
	}
	return time.Time{}
}

// Metrics 当前模型组的留出集指标
func (s *Scorer) Metrics() map[string]model.ModelMetrics {
	if st := s.state.Load(); st != nil {
		return maps.Clone(st.metrics)
	}
	return nil
}

// Predict 对一组指标输出四个模型的 PD 与标签
func (s *Scorer) Predict(features [model.RatioCount]model.Amount) (model.Predictions, error) {
	st := s.state.Load()
	if st == nil {
		return nil, ErrModelNotReady
	}
	return st.predict(features), nil
}

// Train 分层划分训练/留出集，并行拟合基模型与袋外预测，再拟合元模型
// 成功后整体替换当前模型组；失败时保留原模型
func (s *Scorer) Train(ctx context.Context, ds model.Dataset) (map[string]model.ModelMetrics, error) {
	if len(ds.Rows) != len(ds.Labels) {
		return nil, fmt.Errorf("%w: 样本数 %d 与标签数 %d 不一致", ErrInsufficientData, len(ds.Rows), len(ds.Labels))
	}
	for i, y := range ds.Labels {
		if y != 0 && y != 1 {
			return nil, fmt.Errorf("%w: 第 %d 条样本标签 %d 无效", ErrInsufficientData, i, y)
		}
	}

	trainIdx, testIdx := stratifiedSplit(ds.Labels, s.opts.TestSize, s.opts.Seed)
	trainRows, ytr := pickRows(ds, trainIdx)
	testRows, yte := pickRows(ds, testIdx)

	var cnt [2]int
	for _, y := range ytr {
		cnt[y]++
	}
	if cnt[0] < s.opts.Folds || cnt[1] < s.opts.Folds {
		return nil, fmt.Errorf("%w: 训练集违约 %d 条、未违约 %d 条，每类至少需要 %d 条",
			ErrInsufficientData, cnt[1], cnt[0], s.opts.Folds)
	}

	imp := fitImputer(trainRows)
	Xtr := make([][]float64, len(trainRows))
	for i, row := range trainRows {
		Xtr[i] = imp.Transform(row)
	}

	folds := stratifiedFolds(ytr, s.opts.Folds)
	oof := make([][]float64, len(Xtr))
	for i := range oof {
		oof[i] = make([]float64, len(baseNames))
	}
	var bases [3]estimator

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for k, name := range baseNames {
		g.Go(func() error {
			est := s.opts.estimator(name)
			if err := est.Fit(gctx, Xtr, ytr); err != nil {
				return fmt.Errorf("训练 %s 失败: %w", name, err)
			}
			bases[k] = est
			return nil
		})
		for f := range s.opts.Folds {
			g.Go(func() error {
				var fitIdx, holdIdx []int
				for i, fi := range folds {
					if fi == f {
						holdIdx = append(holdIdx, i)
					} else {
						fitIdx = append(fitIdx, i)
					}
				}
				Xf, yf := subset(Xtr, ytr, fitIdx)
				est := s.opts.estimator(name)
				if err := est.Fit(gctx, Xf, yf); err != nil {
					return fmt.Errorf("交叉验证 %s 第 %d 折失败: %w", name, f+1, err)
				}
				for _, i := range holdIdx {
					oof[i][k] = est.Proba(Xtr[i])
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	meta := s.opts.meta()
	if err := meta.Fit(ctx, oof, ytr); err != nil {
		return nil, fmt.Errorf("训练 %s 失败: %w", model.ModelStacking, err)
	}

	st := &state{meta: meta, trainedAt: time.Now()}
	for k := range bases {
		st.bases[k] = pipeline{imputer: imp, est: bases[k]}
	}
	st.metrics = st.evaluate(testRows, yte)

	// 已取消的训练不得替换当前模型组
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.state.Store(st)
	return maps.Clone(st.metrics), nil
}

func pickRows(ds model.Dataset, idx []int) ([][model.RatioCount]model.Amount, []int) {
	rows := make([][model.RatioCount]model.Amount, len(idx))
	labels := make([]int, len(idx))
	for k, i := range idx {
		rows[k] = ds.Rows[i]
		labels[k] = ds.Labels[i]
	}
	return rows, labels
}
