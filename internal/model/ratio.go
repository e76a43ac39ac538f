package model

import "fmt"

// RatioCount 财务指标个数
const RatioCount = 14

// RatioNames 14个指标的展示名称（X1-X14）
var RatioNames = [RatioCount]string{
	"Gross margin (X1)",
	"Pre-tax margin (X2)",
	"ROA pre-tax (X3)",
	"ROE pre-tax (X4)",
	"Debt/Assets (X5)",
	"Debt/Equity (X6)",
	"Current ratio (X7)",
	"Quick ratio (X8)",
	"Interest coverage (X9)",
	"Debt-service coverage (X10)",
	"Cash/Equity (X11)",
	"Inventory turnover (X12)",
	"Days receivable (X13)",
	"Asset turnover (X14)",
}

// FeatureName 模型特征名 X_1..X_14，i 从0开始
func FeatureName(i int) string {
	return fmt.Sprintf("X_%d", i+1)
}

// FeatureNames 全部模型特征名
func FeatureNames() []string {
	names := make([]string, RatioCount)
	for i := range names {
		names[i] = FeatureName(i)
	}
	return names
}

// RatioVector 14个指标，缺失的指标仍占位
type RatioVector [RatioCount]Amount

// Get 按 1..14 的编号取指标
func (v RatioVector) Get(n int) Amount {
	if n < 1 || n > RatioCount {
		return Missing
	}
	return v[n-1]
}

// Features 模型输入特征（按 X_1..X_14 顺序）
func (v RatioVector) Features() [RatioCount]Amount {
	return v
}

// Named 展示名 -> 数值
func (v RatioVector) Named() map[string]Amount {
	out := make(map[string]Amount, RatioCount)
	for i, name := range RatioNames {
		out[name] = v[i]
	}
	return out
}

// Positional X_1..X_14 -> 数值
func (v RatioVector) Positional() map[string]Amount {
	out := make(map[string]Amount, RatioCount)
	for i := range v {
		out[FeatureName(i)] = v[i]
	}
	return out
}
