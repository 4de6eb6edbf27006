package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"qrwatermark/core"
)

const fileExt = ".ref"

// FileStore 每个 key 一个文件: <dir>/<key>.ref
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = "."
	}
	return &FileStore{Dir: dir}
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.Dir, key+fileExt)
}

func (f *FileStore) Save(_ context.Context, key string, ref core.Reference) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	data, err := Marshal(ref)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("create reference dir: %w", err)
	}

	// 先写临时文件再 rename，避免读到写了一半的记录
	tmp, err := os.CreateTemp(f.Dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp reference: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write reference: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write reference: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save reference: %w", err)
	}
	return nil
}

func (f *FileStore) Load(_ context.Context, key string) (core.Reference, error) {
	if err := ValidateKey(key); err != nil {
		return core.Reference{}, err
	}
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return core.Reference{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return core.Reference{}, fmt.Errorf("read reference: %w", err)
	}
	return Unmarshal(data)
}
