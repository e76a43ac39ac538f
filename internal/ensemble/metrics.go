package ensemble

import (
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"credit-risk-backend/internal/model"
)

// DefaultThreshold PD 大于该值判为违约
const DefaultThreshold = 0.5

func label(pd float64) string {
	if pd > DefaultThreshold {
		return model.LabelDefault
	}
	return model.LabelNonDefault
}

// score 留出集指标；分母为0的比例记为0
func score(y []int, proba []float64) model.ModelMetrics {
	var tp, fp, tn, fn float64
	for i, p := range proba {
		pred := p > DefaultThreshold
		switch {
		case pred && y[i] == 1:
			tp++
		case pred:
			fp++
		case y[i] == 1:
			fn++
		default:
			tn++
		}
	}

	m := model.ModelMetrics{
		Accuracy:  ratio(tp+tn, tp+tn+fp+fn),
		Precision: ratio(tp, tp+fp),
		Recall:    ratio(tp, tp+fn),
		AUC:       auc(y, proba),
	}
	m.F1 = ratio(2*m.Precision*m.Recall, m.Precision+m.Recall)
	return m
}

func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// auc ROC 曲线下面积；只有一个类别时缺失
func auc(y []int, proba []float64) model.Amount {
	var pos, neg int
	classes := make([]bool, len(y))
	for i, v := range y {
		classes[i] = v == 1
		if classes[i] {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return model.Missing
	}

	scores := append([]float64(nil), proba...)
	stat.SortWeightedLabeled(scores, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, scores, classes, nil)
	return model.Some(integrate.Trapezoidal(fpr, tpr))
}
