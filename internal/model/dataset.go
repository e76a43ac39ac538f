package model

// Dataset 训练样本：每行14个指标，标签 1=违约 0=未违约
type Dataset struct {
	Rows   [][RatioCount]Amount
	Labels []int
}

// Len 样本数
func (d Dataset) Len() int {
	return len(d.Labels)
}

// Append 追加一条样本
func (d *Dataset) Append(row [RatioCount]Amount, label int) {
	d.Rows = append(d.Rows, row)
	d.Labels = append(d.Labels, label)
}

// ClassCounts 返回 (未违约数, 违约数)
func (d Dataset) ClassCounts() (neg, pos int) {
	for _, y := range d.Labels {
		if y == 1 {
			pos++
		} else {
			neg++
		}
	}
	return neg, pos
}
