package ensemble

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Node 决策树节点，Feature<0 表示叶子
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

// Tree 以先序数组存储的二叉树，x[f] <= t 走左子树
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict 叶子取值
func (t Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (t Tree) validate(dims int) error {
	if len(t.Nodes) == 0 {
		return errors.New("空决策树")
	}
	for i, n := range t.Nodes {
		if math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
			return fmt.Errorf("节点 %d 取值非有限值", i)
		}
		if n.Feature < 0 {
			continue
		}
		if n.Feature >= dims {
			return fmt.Errorf("节点 %d 特征下标越界", i)
		}
		// 先序存储，子节点下标必然大于父节点
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("节点 %d 子节点下标无效", i)
		}
	}
	return nil
}

// stats 节点统计量：a 为权重（或二阶导）之和，b 为正类权重（或一阶导）之和
type stats struct {
	a, b float64
}

func (s stats) sub(o stats) stats { return stats{s.a - o.a, s.b - o.b} }

// criterion 分裂准则
type criterion interface {
	gain(parent, left, right stats) float64
	admissible(left, right stats) bool
	leaf(s stats) float64
}

// gini 加权基尼不纯度，叶子为正类占比
type gini struct{}

func (gini) impurity(s stats) float64 {
	if s.a <= 0 {
		return 0
	}
	return 2 * s.b * (s.a - s.b) / s.a
}

func (g gini) gain(parent, left, right stats) float64 {
	return g.impurity(parent) - g.impurity(left) - g.impurity(right)
}

func (gini) admissible(left, right stats) bool { return left.a > 0 && right.a > 0 }

func (gini) leaf(s stats) float64 {
	if s.a <= 0 {
		return 0.5
	}
	return s.b / s.a
}

// newton 二阶梯度提升的分裂增益，叶子为 -G/(H+λ)
type newton struct {
	lambda   float64
	minChild float64
}

func (n newton) score(s stats) float64 { return s.b * s.b / (s.a + n.lambda) }

func (n newton) gain(parent, left, right stats) float64 {
	return 0.5 * (n.score(left) + n.score(right) - n.score(parent))
}

func (n newton) admissible(left, right stats) bool {
	return left.a >= n.minChild && right.a >= n.minChild
}

func (n newton) leaf(s stats) float64 { return -s.b / (s.a + n.lambda) }

const minGain = 1e-12

type grower struct {
	X           [][]float64
	a, b        []float64
	crit        criterion
	maxDepth    int
	maxFeatures int
	rng         *rand.Rand
	nodes       []Node
}

// growTree 在 idx 上生长一棵树；maxFeatures 小于特征数时每次分裂随机抽取特征
func growTree(X [][]float64, idx []int, a, b []float64, crit criterion, maxDepth, maxFeatures int, rng *rand.Rand) Tree {
	g := &grower{X: X, a: a, b: b, crit: crit, maxDepth: maxDepth, maxFeatures: maxFeatures, rng: rng}
	g.grow(idx, 0)
	return Tree{Nodes: g.nodes}
}

func (g *grower) sum(idx []int) stats {
	var s stats
	for _, i := range idx {
		s.a += g.a[i]
		s.b += g.b[i]
	}
	return s
}

func (g *grower) grow(idx []int, depth int) int {
	s := g.sum(idx)
	id := len(g.nodes)
	g.nodes = append(g.nodes, Node{Feature: -1, Value: g.crit.leaf(s)})
	if depth >= g.maxDepth || len(idx) < 2 {
		return id
	}

	f, thr, ok := g.split(idx, s)
	if !ok {
		return id
	}
	var left, right []int
	for _, i := range idx {
		if g.X[i][f] <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	g.nodes[id] = Node{Feature: f, Threshold: thr, Left: l, Right: r, Value: g.nodes[id].Value}
	return id
}

func (g *grower) features() []int {
	p := len(g.X[0])
	if g.rng == nil || g.maxFeatures <= 0 || g.maxFeatures >= p {
		all := make([]int, p)
		for j := range all {
			all[j] = j
		}
		return all
	}
	return g.rng.Perm(p)[:g.maxFeatures]
}

func (g *grower) split(idx []int, parent stats) (feature int, threshold float64, ok bool) {
	best := minGain
	sorted := make([]int, len(idx))
	for _, f := range g.features() {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(i, j int) bool { return g.X[sorted[i]][f] < g.X[sorted[j]][f] })

		var left stats
		for k := 0; k < len(sorted)-1; k++ {
			i := sorted[k]
			left.a += g.a[i]
			left.b += g.b[i]
			lo, hi := g.X[i][f], g.X[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			right := parent.sub(left)
			if !g.crit.admissible(left, right) {
				continue
			}
			if gain := g.crit.gain(parent, left, right); gain > best {
				best = gain
				feature = f
				threshold = lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				ok = true
			}
		}
	}
	return feature, threshold, ok
}
