package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"credit-risk-backend/internal/ensemble"
)

// SQLiteStore 模型状态存放在 SQLite 的 models 表，清单在 model_manifest 表
type SQLiteStore struct {
	db *sql.DB
}

// EnsureSchema 建表
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS models (
			name TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);`,
		`CREATE TABLE IF NOT EXISTS model_manifest (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			manifest TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// OpenSQLiteStore 打开（必要时创建）数据库文件
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建模型库目录失败: %w", err)
		}
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path)))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := EnsureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化模型库失败: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close 关闭数据库
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save 在一个事务中替换全部模型
func (s *SQLiteStore) Save(ctx context.Context, b ensemble.Bundle) error {
	m := newManifest(b)
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM models"); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO models(name, state) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, name := range m.Models {
		if _, err := stmt.ExecContext(ctx, name, string(b.Models[name])); err != nil {
			return fmt.Errorf("保存模型 %s 失败: %w", name, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO model_manifest(id, manifest) VALUES (1, ?)", string(data)); err != nil {
		return err
	}
	return tx.Commit()
}

// Load 读取清单与全部模型
func (s *SQLiteStore) Load(ctx context.Context) (ensemble.Bundle, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT manifest FROM model_manifest WHERE id = 1").Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ensemble.Bundle{}, ErrNotFound
	}
	if err != nil {
		return ensemble.Bundle{}, err
	}
	m, err := decodeManifest([]byte(data))
	if err != nil {
		return ensemble.Bundle{}, err
	}

	b := m.bundle()
	rows, err := s.db.QueryContext(ctx, "SELECT name, state FROM models")
	if err != nil {
		return ensemble.Bundle{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var name, state string
		if err := rows.Scan(&name, &state); err != nil {
			return ensemble.Bundle{}, err
		}
		b.Models[name] = json.RawMessage(state)
	}
	return b, rows.Err()
}
