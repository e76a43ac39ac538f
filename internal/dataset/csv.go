// Package dataset 训练样本的读取与存储
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"credit-risk-backend/internal/model"
	"credit-risk-backend/internal/statement"
)

// LabelColumn 标签列名
const LabelColumn = "default"

// ErrBadDataset 样本文件格式错误
var ErrBadDataset = errors.New("样本文件格式错误")

// ReadCSV 读取含 X_1..X_14 和 default 列的样本文件
// 指标为空或无法解析时记为缺失
func ReadCSV(r io.Reader) (model.Dataset, error) {
	var ds model.Dataset

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return ds, fmt.Errorf("%w: 读取表头失败: %v", ErrBadDataset, err)
	}
	cols, labelCol, err := headerIndex(header)
	if err != nil {
		return ds, err
	}

	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return ds, fmt.Errorf("%w: 第 %d 行: %v", ErrBadDataset, line, err)
		}

		label, ok := parseLabel(cell(rec, labelCol))
		if !ok {
			return ds, fmt.Errorf("%w: 第 %d 行标签 %q 无效", ErrBadDataset, line, cell(rec, labelCol))
		}
		var row [model.RatioCount]model.Amount
		for j, c := range cols {
			row[j] = statement.ParseAmount(cell(rec, c))
		}
		ds.Append(row, label)
	}
	return ds, nil
}

func headerIndex(header []string) ([model.RatioCount]int, int, error) {
	var cols [model.RatioCount]int
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}

	var missing []string
	for j, name := range model.FeatureNames() {
		i, ok := pos[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		cols[j] = i
	}
	labelCol, ok := pos[LabelColumn]
	if !ok {
		missing = append(missing, LabelColumn)
	}
	if len(missing) > 0 {
		return cols, 0, fmt.Errorf("%w: 缺少列 %s", ErrBadDataset, strings.Join(missing, ", "))
	}
	return cols, labelCol, nil
}

func cell(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

// parseLabel 接受 0/1 或 true/false
func parseLabel(s string) (int, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "true":
		return 1, true
	case "false":
		return 0, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || (v != 0 && v != 1) {
		return 0, false
	}
	return int(v), true
}

// WriteCSV 按 ReadCSV 的格式写出样本
func WriteCSV(w io.Writer, ds model.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append(model.FeatureNames(), LabelColumn)); err != nil {
		return err
	}
	rec := make([]string, model.RatioCount+1)
	for i, row := range ds.Rows {
		for j, a := range row {
			rec[j] = ""
			if a.Valid {
				rec[j] = strconv.FormatFloat(a.Value, 'g', -1, 64)
			}
		}
		rec[model.RatioCount] = strconv.Itoa(ds.Labels[i])
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
