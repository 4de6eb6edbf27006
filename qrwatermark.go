// Package qrwatermark 在二维码图片中嵌入/提取/验证图片水印 (DCT + SVD)。
//
// 数值计算在 core 和 verifier 包中完成，这里负责参数、reference 存储、
// 对齐和日志。
package qrwatermark

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"qrwatermark/config"
	"qrwatermark/converter"
	"qrwatermark/core"
	"qrwatermark/logger"
	"qrwatermark/store"
	"qrwatermark/verifier"

	"github.com/skip2/go-qrcode"
	"gonum.org/v1/gonum/mat"
)

// Aligner 把几何变形的扫描图校正为标准矩阵，提取前调用
type Aligner interface {
	Align(m *mat.Dense) (*mat.Dense, error)
}

// IdentityAligner 不做任何校正
type IdentityAligner struct{}

func (IdentityAligner) Align(m *mat.Dense) (*mat.Dense, error) { return m, nil }

type Watermarker struct {
	engine   *core.Engine
	verifier *verifier.Verifier
	store    store.ReferenceStore
	aligner  Aligner
	log      *logger.Logger

	maxDim  int
	qrSize  int
	qrLevel qrcode.RecoveryLevel
}

type Option func(*Watermarker)

func WithStore(s store.ReferenceStore) Option { return func(w *Watermarker) { w.store = s } }

func WithAligner(a Aligner) Option { return func(w *Watermarker) { w.aligner = a } }

func WithLogger(l *logger.Logger) Option { return func(w *Watermarker) { w.log = l } }

func WithVerifier(v *verifier.Verifier) Option { return func(w *Watermarker) { w.verifier = v } }

// WithMaxDimension 超过该尺寸时记录警告，<= 0 不检查
func WithMaxDimension(n int) Option { return func(w *Watermarker) { w.maxDim = n } }

func WithQR(size int, level qrcode.RecoveryLevel) Option {
	return func(w *Watermarker) {
		w.qrSize = size
		w.qrLevel = level
	}
}

func New(params core.Params, opts ...Option) *Watermarker {
	w := &Watermarker{
		engine:   core.NewEngine(params),
		verifier: verifier.New(),
		store:    store.NewMemoryStore(),
		aligner:  IdentityAligner{},
		log:      logger.Nop(),
		maxDim:   1024,
		qrSize:   256,
		qrLevel:  qrcode.Medium,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// NewFromConfig 按配置组装 Watermarker
func NewFromConfig(cfg *config.Config, log *logger.Logger) (*Watermarker, error) {
	st, err := store.Open(cfg.Reference)
	if err != nil {
		return nil, err
	}
	level, err := ParseQRLevel(cfg.QR.Level)
	if err != nil {
		return nil, err
	}

	v := verifier.New()
	v.Threshold = cfg.BinarizeThreshold
	v.Thresholds = cfg.Thresholds

	return New(cfg.Params(),
		WithStore(st),
		WithLogger(log),
		WithVerifier(v),
		WithMaxDimension(cfg.MaxDimension),
		WithQR(cfg.QR.Size, level),
	), nil
}

// ParseQRLevel low | medium | high | highest
func ParseQRLevel(s string) (qrcode.RecoveryLevel, error) {
	switch strings.ToLower(s) {
	case "low":
		return qrcode.Low, nil
	case "", "medium":
		return qrcode.Medium, nil
	case "high":
		return qrcode.High, nil
	case "highest":
		return qrcode.Highest, nil
	}
	return 0, fmt.Errorf("unknown QR recovery level %q", s)
}

// NewQRCover 由文本生成二维码载体 (灰度矩阵)
func (w *Watermarker) NewQRCover(content string) (*mat.Dense, error) {
	q, err := qrcode.New(content, w.qrLevel)
	if err != nil {
		return nil, fmt.Errorf("generate qr code: %w", err)
	}
	return converter.ToMatrix(q.Image(w.qrSize)), nil
}

// Embed 嵌入水印。EmbedReference 会把原始奇异值保存到 key 下。
// 返回值未取整，写出图片时再转换为 8 位。
func (w *Watermarker) Embed(ctx context.Context, variant core.EmbedVariant, key string, cover, watermark *mat.Dense) (*mat.Dense, error) {
	start := time.Now()

	var session *core.Session
	if variant == core.EmbedReference {
		// 先检查 key，避免白做一次 DCT + SVD
		if err := store.ValidateKey(key); err != nil {
			return nil, err
		}
		session = core.NewSession()
	}
	w.checkBudget("embed", cover)

	embedder, err := w.engine.Embedder(variant, session)
	if err != nil {
		return nil, err
	}
	out, err := embedder.Embed(cover, watermark)
	if err != nil {
		w.log.Error("embed failed", err, map[string]interface{}{"variant": variant.String()})
		return nil, err
	}

	if session != nil {
		ref, _ := session.Reference()
		if err := w.store.Save(ctx, key, ref); err != nil {
			return nil, fmt.Errorf("save reference: %w", err)
		}
	}

	rows, cols := out.Dims()
	w.log.Info("watermark embedded", nil, map[string]interface{}{
		"variant":   variant.String(),
		"alpha":     w.engine.Params.Alpha,
		"rows":      rows,
		"cols":      cols,
		"mean_diff": core.MeanAbsDiff(cover, out),
		"duration":  time.Since(start),
	})
	return out, nil
}

// Extract 对齐后提取水印估计。ExtractReference 从 key 读取原始奇异值，
// ExtractCover 需要 original。
func (w *Watermarker) Extract(ctx context.Context, variant core.ExtractVariant, key string, marked, original *mat.Dense) (*core.Estimate, error) {
	start := time.Now()

	if variant == core.ExtractReference {
		if err := store.ValidateKey(key); err != nil {
			return nil, err
		}
	}

	aligned, err := w.aligner.Align(marked)
	if err != nil {
		return nil, fmt.Errorf("align: %w", err)
	}
	w.checkBudget("extract", aligned)

	var session *core.Session
	if variant == core.ExtractReference {
		ref, err := w.store.Load(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("extract: %w: %v", core.ErrMissingReference, err)
		}
		if err != nil {
			return nil, err
		}
		session = core.NewSession()
		session.Store(ref)
	}

	var orig mat.Matrix
	if original != nil {
		orig = original
	}
	extractor, err := w.engine.Extractor(variant, session, orig)
	if err != nil {
		return nil, err
	}
	est, err := extractor.Extract(aligned)
	if err != nil {
		w.log.Error("extract failed", err, map[string]interface{}{"variant": variant.String()})
		return nil, err
	}

	if est.Warning != nil {
		w.log.Warn("extracted watermark reshaped lossily", est.Warning, map[string]interface{}{
			"length":    est.Warning.Length,
			"side":      est.Warning.Side,
			"discarded": est.Warning.Discarded,
		})
	}
	rows, cols := est.Matrix.Dims()
	w.log.Info("watermark extracted", nil, map[string]interface{}{
		"variant":  variant.String(),
		"rows":     rows,
		"cols":     cols,
		"duration": time.Since(start),
	})
	return est, nil
}

// Verify 比较参考水印与提取结果
func (w *Watermarker) Verify(reference, estimate mat.Matrix) (verifier.Result, error) {
	res, err := w.verifier.Verify(reference, estimate)
	if err != nil {
		return res, err
	}
	w.log.Info("watermark verified", nil, map[string]interface{}{
		"score":          res.Score,
		"classification": res.Classification.String(),
	})
	return res, nil
}

func (w *Watermarker) checkBudget(op string, m mat.Matrix) {
	if m == nil {
		return
	}
	if d, ok := m.(*mat.Dense); ok && (d == nil || d.IsEmpty()) {
		return
	}
	rows, cols := m.Dims()
	if core.ExceedsBudget(rows, cols, w.maxDim) {
		w.log.Warn("matrix exceeds dimension budget, SVD cost is cubic", nil, map[string]interface{}{
			"op":            op,
			"rows":          rows,
			"cols":          cols,
			"max_dimension": w.maxDim,
		})
	}
}
