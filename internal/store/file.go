package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"credit-risk-backend/internal/ensemble"
)

const manifestFile = "manifest.json"

// FileStore 每个模型一个 JSON 文件，外加一个清单文件
type FileStore struct {
	dir string
}

// NewFileStore 目录不存在时在 Save 中创建
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Save 先写模型文件，最后写清单；每个文件先写临时文件再改名
func (s *FileStore) Save(ctx context.Context, b ensemble.Bundle) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("创建模型目录失败: %w", err)
	}

	m := newManifest(b)
	for _, name := range m.Models {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.writeFile(name+".json", b.Models[name]); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return s.writeFile(manifestFile, data)
}

// Load 缺少清单返回 ErrNotFound；缺少的模型文件不报错，由调用方校验
func (s *FileStore) Load(ctx context.Context) (ensemble.Bundle, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, manifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return ensemble.Bundle{}, ErrNotFound
	}
	if err != nil {
		return ensemble.Bundle{}, fmt.Errorf("读取模型清单失败: %w", err)
	}
	m, err := decodeManifest(data)
	if err != nil {
		return ensemble.Bundle{}, err
	}

	b := m.bundle()
	for _, name := range m.Models {
		if err := ctx.Err(); err != nil {
			return ensemble.Bundle{}, err
		}
		raw, err := os.ReadFile(filepath.Join(s.dir, name+".json"))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return ensemble.Bundle{}, fmt.Errorf("读取模型 %s 失败: %w", name, err)
		}
		b.Models[name] = raw
	}
	return b, nil
}

func (s *FileStore) writeFile(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("写入 %s 失败: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("写入 %s 失败: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", name, err)
	}
	return nil
}
