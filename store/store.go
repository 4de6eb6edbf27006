package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"qrwatermark/core"
)

var (
	// ErrNotFound key 对应的 reference 不存在
	ErrNotFound = errors.New("reference not found")
	// ErrInvalidKey key 格式不合法
	ErrInvalidKey = errors.New("invalid reference key")
)

// ReferenceStore 持久化嵌入时记录的奇异值
type ReferenceStore interface {
	Save(ctx context.Context, key string, ref core.Reference) error
	Load(ctx context.Context, key string) (core.Reference, error)
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateKey key 只允许字母数字和 . _ -，不能包含路径分隔符
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w %q", ErrInvalidKey, key)
	}
	return nil
}

// Config 存储配置
type Config struct {
	Backend string      `yaml:"backend"` // file | minio | memory
	Dir     string      `yaml:"dir"`
	Key     string      `yaml:"key"`
	Minio   MinioConfig `yaml:"minio"`
}

// Open 按配置创建存储
func Open(cfg Config) (ReferenceStore, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg.Dir), nil
	case "minio":
		return NewMinioStore(cfg.Minio)
	case "memory":
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown reference backend %q", cfg.Backend)
}

// MemoryStore 进程内存储，测试和 serve 模式使用
type MemoryStore struct {
	mu   sync.RWMutex
	refs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{refs: make(map[string][]byte)}
}

func (m *MemoryStore) Save(_ context.Context, key string, ref core.Reference) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	data, err := Marshal(ref)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.refs[key] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(_ context.Context, key string) (core.Reference, error) {
	if err := ValidateKey(key); err != nil {
		return core.Reference{}, err
	}

	m.mu.RLock()
	data, ok := m.refs[key]
	m.mu.RUnlock()
	if !ok {
		return core.Reference{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return Unmarshal(data)
}
