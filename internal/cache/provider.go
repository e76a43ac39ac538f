package cache

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// ErrMiss 缓存未命中或已过期
var ErrMiss = errors.New("cache miss")

// Provider 评估结果缓存
type Provider interface {
	Get(key string, dest any) error
	Set(key string, value any, expiration time.Duration) error
}

type memoryItem struct {
	data      []byte
	expiresAt time.Time
}

// Memory 进程内缓存，超过容量时先清理过期项，仍满则整体清空
type Memory struct {
	mu       sync.RWMutex
	items    map[string]memoryItem
	capacity int
}

// NewMemory capacity<=0 表示不限
func NewMemory(capacity int) *Memory {
	return &Memory{items: map[string]memoryItem{}, capacity: capacity}
}

func (p *Memory) Get(key string, dest any) error {
	p.mu.RLock()
	item, ok := p.items[key]
	p.mu.RUnlock()
	if !ok {
		return ErrMiss
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		p.mu.Lock()
		delete(p.items, key)
		p.mu.Unlock()
		return ErrMiss
	}
	return json.Unmarshal(item.data, dest)
}

func (p *Memory) Set(key string, value any, expiration time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var expiresAt time.Time
	if expiration > 0 {
		expiresAt = time.Now().Add(expiration)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.items[key]; !ok && p.capacity > 0 && len(p.items) >= p.capacity {
		p.evictLocked()
	}
	p.items[key] = memoryItem{data: b, expiresAt: expiresAt}
	return nil
}

// Len 当前条目数
func (p *Memory) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}

func (p *Memory) evictLocked() {
	now := time.Now()
	for k, item := range p.items {
		if !item.expiresAt.IsZero() && now.After(item.expiresAt) {
			delete(p.items, k)
		}
	}
	if len(p.items) >= p.capacity {
		clear(p.items)
	}
}
