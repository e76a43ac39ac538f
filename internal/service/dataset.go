package service

import (
	"context"
	"fmt"
	"os"

	"credit-risk-backend/internal/dataset"
	"credit-risk-backend/internal/model"
)

// DatasetLoader 训练数据来源
type DatasetLoader interface {
	Load(ctx context.Context) (model.Dataset, error)
	Describe() string
}

// CSVDataset 从 CSV 文件读取
type CSVDataset struct {
	Path string
}

func (d CSVDataset) Load(ctx context.Context) (model.Dataset, error) {
	f, err := os.Open(d.Path)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("打开训练数据失败: %w", err)
	}
	defer f.Close()
	return dataset.ReadCSV(f)
}

func (d CSVDataset) Describe() string { return "csv:" + d.Path }

// SQLiteDataset 从样本库读取
type SQLiteDataset struct {
	Path string
}

func (d SQLiteDataset) Load(ctx context.Context) (model.Dataset, error) {
	st, err := dataset.Open(d.Path)
	if err != nil {
		return model.Dataset{}, err
	}
	defer st.Close()
	return st.LoadAll(ctx)
}

func (d SQLiteDataset) Describe() string { return "sqlite:" + dataset.ResolvePath(d.Path) }

// NewDatasetLoader source 为 csv 或 sqlite
func NewDatasetLoader(source, csvPath, dbPath string) (DatasetLoader, error) {
	switch source {
	case "csv":
		return CSVDataset{Path: csvPath}, nil
	case "sqlite":
		return SQLiteDataset{Path: dbPath}, nil
	}
	return nil, fmt.Errorf("未知的训练数据来源: %s", source)
}
