// Package risk 把违约概率映射为五级风险等级
package risk

import (
	"math"

	"credit-risk-backend/internal/model"
)

// 各等级的上界（百分比，不含）
const (
	VeryLowUpper = 2.0
	LowUpper     = 5.0
	MediumUpper  = 10.0
	HighUpper    = 20.0
)

var (
	veryLow = model.RiskBand{
		Range:          "< 2%",
		Classification: "very low",
		Rating:         "AAA-AA",
		Meaning:        "Excellent enterprise",
		Color:          "#28a745",
		GradientColor:  "linear-gradient(135deg, #28a745 0%, #20c997 100%)",
	}
	low = model.RiskBand{
		Range:          "2-5%",
		Classification: "low",
		Rating:         "A-BBB",
		Meaning:        "Good enterprise",
		Color:          "#5cb85c",
		GradientColor:  "linear-gradient(135deg, #5cb85c 0%, #4cae4c 100%)",
	}
	medium = model.RiskBand{
		Range:          "5-10%",
		Classification: "medium",
		Rating:         "BB",
		Meaning:        "Needs monitoring",
		Color:          "#ffc107",
		GradientColor:  "linear-gradient(135deg, #ffc107 0%, #ffca2c 100%)",
	}
	high = model.RiskBand{
		Range:          "10-20%",
		Classification: "high",
		Rating:         "B",
		Meaning:        "Significant risk",
		Color:          "#fd7e14",
		GradientColor:  "linear-gradient(135deg, #fd7e14 0%, #ff851b 100%)",
	}
	veryHigh = model.RiskBand{
		Range:          "> 20%",
		Classification: "very high",
		Rating:         "CCC-D",
		Meaning:        "High probability of default",
		Color:          "#dc3545",
		GradientColor:  "linear-gradient(135deg, #dc3545 0%, #c82333 100%)",
	}
	undetermined = model.RiskBand{
		Range:          "N/A",
		Classification: "undetermined",
		Rating:         "N/A",
		Meaning:        "Insufficient data",
		Color:          "#6c757d",
		GradientColor:  "linear-gradient(135deg, #6c757d 0%, #95a5a6 100%)",
	}
)

// Classify 按 PD×100 分级，边界取左闭右开
func Classify(pd model.Amount) model.RiskBand {
	if !pd.Valid || math.IsNaN(pd.Value) {
		return undetermined
	}

	pct := pd.Value * 100
	switch {
	case pct < VeryLowUpper:
		return veryLow
	case pct < LowUpper:
		return low
	case pct < MediumUpper:
		return medium
	case pct < HighUpper:
		return high
	}
	return veryHigh
}

// Bands 五个等级，按 PD 升序
func Bands() []model.RiskBand {
	return []model.RiskBand{veryLow, low, medium, high, veryHigh}
}

// Undetermined 数据不足时的等级
func Undetermined() model.RiskBand {
	return undetermined
}
