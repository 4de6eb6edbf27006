// Package config 从 YAML 文件加载配置。
//
// 配置文件由 --config 参数或 QRMARK_CONFIG 环境变量指定，都没有时使用默认值。
// QRMARK_ALPHA、QRMARK_LOG_LEVEL 环境变量会覆盖文件中的值。
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"qrwatermark/core"
	"qrwatermark/logger"
	"qrwatermark/store"
	"qrwatermark/verifier"

	"gopkg.in/yaml.v3"
)

const EnvConfig = "QRMARK_CONFIG"

// Config 全部配置
type Config struct {
	Alpha             float64             `yaml:"alpha"`
	BlockDivisor      int                 `yaml:"block_divisor"`
	BlockRows         int                 `yaml:"block_rows"`
	BlockCols         int                 `yaml:"block_cols"`
	MaxDimension      int                 `yaml:"max_dimension"`
	BinarizeThreshold float64             `yaml:"binarize_threshold"`
	Thresholds        verifier.Thresholds `yaml:"thresholds"`
	Reference         store.Config        `yaml:"reference"`
	Log               logger.Config       `yaml:"log"`
	Server            ServerConfig        `yaml:"server"`
	QR                QRConfig            `yaml:"qr"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

// QRConfig 二维码载体配置
type QRConfig struct {
	Size  int    `yaml:"size"`
	Level string `yaml:"level"` // low | medium | high | highest
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Alpha:             core.DefaultAlpha,
		BlockDivisor:      core.DefaultDivisor,
		MaxDimension:      1024,
		BinarizeThreshold: 127,
		Thresholds:        verifier.DefaultThresholds(),
		Reference: store.Config{
			Backend: "file",
			Dir:     "references",
			Key:     "default",
		},
		Log:    logger.Config{Level: "info", ServiceName: "qrmark"},
		Server: ServerConfig{Addr: ":8080", MaxBodyBytes: 10 << 20},
		QR:     QRConfig{Size: 256, Level: "medium"},
	}
}

// Load path 为空时读取 QRMARK_CONFIG；两者都为空则只用默认值
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv("QRMARK_ALPHA")); v != "" {
		alpha, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid QRMARK_ALPHA %q: %w", v, err)
		}
		c.Alpha = alpha
	}
	if v := strings.TrimSpace(os.Getenv("QRMARK_LOG_LEVEL")); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	var errs []error
	if !(c.Alpha > 0) || math.IsInf(c.Alpha, 0) {
		errs = append(errs, fmt.Errorf("alpha must be > 0 (got %v)", c.Alpha))
	}
	if c.BlockDivisor < 1 {
		errs = append(errs, fmt.Errorf("block_divisor must be >= 1 (got %d)", c.BlockDivisor))
	}
	if c.BlockRows < 0 || c.BlockCols < 0 {
		errs = append(errs, fmt.Errorf("block_rows/block_cols must be >= 0"))
	}
	if c.Thresholds.Weak > c.Thresholds.Strong {
		errs = append(errs, fmt.Errorf("thresholds.weak (%v) must not exceed thresholds.strong (%v)", c.Thresholds.Weak, c.Thresholds.Strong))
	}
	if c.BinarizeThreshold < 0 || c.BinarizeThreshold > 255 {
		errs = append(errs, fmt.Errorf("binarize_threshold must be within [0,255] (got %v)", c.BinarizeThreshold))
	}
	if c.Reference.Key != "" {
		if err := store.ValidateKey(c.Reference.Key); err != nil {
			errs = append(errs, err)
		}
	}
	if c.QR.Size <= 0 {
		errs = append(errs, fmt.Errorf("qr.size must be > 0 (got %d)", c.QR.Size))
	}
	return errors.Join(errs...)
}

// Params 转换为核心参数
func (c *Config) Params() core.Params {
	return core.Params{
		Alpha:     c.Alpha,
		Divisor:   c.BlockDivisor,
		BlockRows: c.BlockRows,
		BlockCols: c.BlockCols,
	}
}
