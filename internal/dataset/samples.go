package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"credit-risk-backend/internal/model"
)

// DefaultDBFileName 样本库默认文件名
const DefaultDBFileName = "samples.db"

// Sample 一条带标签的历史样本
type Sample struct {
	ID       string
	Source   string
	Features [model.RatioCount]model.Amount
	Label    int
}

// ResolvePath 目录或无扩展名路径补上默认文件名
func ResolvePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return p
	}
	if filepath.Ext(p) == "" {
		return filepath.Join(p, DefaultDBFileName)
	}
	if fi, err := os.Stat(p); err == nil && fi.IsDir() {
		return filepath.Join(p, DefaultDBFileName)
	}
	return p
}

func featureColumns() []string {
	cols := make([]string, model.RatioCount)
	for i := range cols {
		cols[i] = fmt.Sprintf("x%d", i+1)
	}
	return cols
}

// EnsureSchema 建表
func EnsureSchema(db *sql.DB) error {
	var defs strings.Builder
	for _, c := range featureColumns() {
		defs.WriteString("\t\t\t" + c + " REAL,\n")
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS training_samples (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL DEFAULT '',
` + defs.String() + `			label INTEGER NOT NULL CHECK (label IN (0, 1)),
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);`,
		`CREATE INDEX IF NOT EXISTS idx_training_samples_label ON training_samples(label);`,
		`CREATE INDEX IF NOT EXISTS idx_training_samples_source ON training_samples(source);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// SampleStore 基于 SQLite 的样本库
type SampleStore struct {
	db   *sql.DB
	path string
}

// Open 打开（必要时创建）样本库
func Open(path string) (*SampleStore, error) {
	path = ResolvePath(path)
	if path == "" {
		return nil, fmt.Errorf("样本库路径为空")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建样本库目录失败: %w", err)
		}
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path)))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := EnsureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化样本库失败: %w", err)
	}
	return &SampleStore{db: db, path: path}, nil
}

// Path 样本库文件路径
func (s *SampleStore) Path() string {
	return s.path
}

// Close 关闭样本库
func (s *SampleStore) Close() error {
	return s.db.Close()
}

// Insert 批量写入，id 相同则覆盖
func (s *SampleStore) Insert(ctx context.Context, samples []Sample) (int, error) {
	if len(samples) == 0 {
		return 0, nil
	}

	cols := featureColumns()
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)+3), ", ")
	query := fmt.Sprintf("INSERT OR REPLACE INTO training_samples(id, source, %s, label) VALUES (%s)",
		strings.Join(cols, ", "), marks)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	args := make([]any, 0, len(cols)+3)
	for _, smp := range samples {
		if smp.Label != 0 && smp.Label != 1 {
			return 0, fmt.Errorf("样本 %s 标签 %d 无效", smp.ID, smp.Label)
		}
		args = append(args[:0], smp.ID, smp.Source)
		for _, a := range smp.Features {
			if a.Valid {
				args = append(args, a.Value)
			} else {
				args = append(args, nil)
			}
		}
		args = append(args, smp.Label)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("写入样本 %s 失败: %w", smp.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(samples), nil
}

// LoadAll 按 id 顺序读取全部样本
func (s *SampleStore) LoadAll(ctx context.Context) (model.Dataset, error) {
	var ds model.Dataset
	query := fmt.Sprintf("SELECT %s, label FROM training_samples ORDER BY id ASC", strings.Join(featureColumns(), ", "))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return ds, err
	}
	defer rows.Close()

	vals := make([]sql.NullFloat64, model.RatioCount)
	dest := make([]any, 0, model.RatioCount+1)
	for rows.Next() {
		var label int
		dest = dest[:0]
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		dest = append(dest, &label)
		if err := rows.Scan(dest...); err != nil {
			return ds, err
		}

		var row [model.RatioCount]model.Amount
		for i, v := range vals {
			if v.Valid {
				row[i] = model.Some(v.Float64)
			}
		}
		ds.Append(row, label)
	}
	return ds, rows.Err()
}

// Count 样本数
func (s *SampleStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM training_samples").Scan(&n)
	return n, err
}

// FromDataset 把数据集转为样本，id 为 source:序号
func FromDataset(source string, ds model.Dataset) []Sample {
	out := make([]Sample, 0, ds.Len())
	for i := range ds.Labels {
		out = append(out, Sample{
			ID:       fmt.Sprintf("%s:%06d", source, i+1),
			Source:   source,
			Features: ds.Rows[i],
			Label:    ds.Labels[i],
		})
	}
	return out
}
