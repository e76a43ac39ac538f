package ensemble

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"credit-risk-backend/internal/model"
)

// Imputer 按训练集中位数填补缺失特征
type Imputer struct {
	Medians []float64 `json:"medians"`
}

func fitImputer(rows [][model.RatioCount]model.Amount) Imputer {
	med := make([]float64, model.RatioCount)
	col := make([]float64, 0, len(rows))
	for j := range med {
		col = col[:0]
		for _, r := range rows {
			if r[j].Valid {
				col = append(col, r[j].Value)
			}
		}
		med[j] = median(col)
	}
	return Imputer{Medians: med}
}

// median 空列返回0
func median(x []float64) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// Transform 缺失值替换为中位数
func (m Imputer) Transform(row [model.RatioCount]model.Amount) []float64 {
	out := make([]float64, model.RatioCount)
	for j, a := range row {
		if a.Valid {
			out[j] = a.Value
		} else {
			out[j] = m.Medians[j]
		}
	}
	return out
}

func (m Imputer) validate() error {
	if len(m.Medians) != model.RatioCount {
		return fmt.Errorf("中位数个数 %d，应为 %d", len(m.Medians), model.RatioCount)
	}
	for _, v := range m.Medians {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("中位数非有限值")
		}
	}
	return nil
}

// byClass 按标签分组的样本下标
func byClass(labels []int) [2][]int {
	var out [2][]int
	for i, y := range labels {
		out[y] = append(out[y], i)
	}
	return out
}

// stratifiedSplit 分层抽样，每个类别各取 testSize 比例作为留出集
func stratifiedSplit(labels []int, testSize float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))
	for _, cls := range byClass(labels) {
		rng.Shuffle(len(cls), func(i, j int) { cls[i], cls[j] = cls[j], cls[i] })
		n := int(math.Round(float64(len(cls)) * testSize))
		if n >= len(cls) {
			n = len(cls) - 1
		}
		if n < 0 {
			n = 0
		}
		test = append(test, cls[:n]...)
		train = append(train, cls[n:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

// stratifiedFolds 每个类别内按出现顺序轮流分到 k 折
func stratifiedFolds(labels []int, k int) []int {
	fold := make([]int, len(labels))
	var seen [2]int
	for i, y := range labels {
		fold[i] = seen[y] % k
		seen[y]++
	}
	return fold
}

// classWeights balanced: n / (2 * n_c)
func classWeights(y []int, balanced bool) [2]float64 {
	w := [2]float64{1, 1}
	if !balanced {
		return w
	}
	var cnt [2]int
	for _, v := range y {
		cnt[v]++
	}
	for c := range w {
		if cnt[c] > 0 {
			w[c] = float64(len(y)) / (2 * float64(cnt[c]))
		}
	}
	return w
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// softplus log(1+e^z)，数值稳定
func softplus(z float64) float64 {
	return math.Max(z, 0) + math.Log1p(math.Exp(-math.Abs(z)))
}

func finite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func subset(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for k, i := range idx {
		xs[k] = X[i]
		ys[k] = y[i]
	}
	return xs, ys
}
