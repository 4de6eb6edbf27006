package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"qrwatermark/core"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig 对象存储连接配置
type MinioConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	UseSSL          bool   `yaml:"use_ssl"`
}

// MinioStore 把 reference 存到 S3 兼容的对象存储
type MinioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint cannot be empty")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket cannot be empty")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("connect minio: %w", err)
	}
	return &MinioStore{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (m *MinioStore) object(key string) string {
	return path.Join(m.prefix, key+fileExt)
}

func (m *MinioStore) Save(ctx context.Context, key string, ref core.Reference) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	data, err := Marshal(ref)
	if err != nil {
		return err
	}

	_, err = m.client.PutObject(ctx, m.bucket, m.object(key), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/cbor"})
	if err != nil {
		return fmt.Errorf("put reference %s: %w", key, err)
	}
	return nil
}

func (m *MinioStore) Load(ctx context.Context, key string) (core.Reference, error) {
	if err := ValidateKey(key); err != nil {
		return core.Reference{}, err
	}

	obj, err := m.client.GetObject(ctx, m.bucket, m.object(key), minio.GetObjectOptions{})
	if err != nil {
		return core.Reference{}, m.wrap(key, err)
	}
	defer obj.Close()

	// GetObject 是惰性的，不存在的错误在读取时才出现
	data, err := io.ReadAll(obj)
	if err != nil {
		return core.Reference{}, m.wrap(key, err)
	}
	return Unmarshal(data)
}

func (m *MinioStore) wrap(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return fmt.Errorf("get reference %s: %w", key, err)
}
