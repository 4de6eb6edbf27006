package verifier

import (
	"fmt"
	"math"

	"qrwatermark/converter"
	"qrwatermark/core"

	"gonum.org/v1/gonum/mat"
)

// Classification 验证结论
type Classification int

const (
	NoMatch Classification = iota
	WeakMatch
	StrongMatch
)

func (c Classification) String() string {
	switch c {
	case StrongMatch:
		return "strong match"
	case WeakMatch:
		return "weak match"
	default:
		return "no match"
	}
}

// Thresholds score > Strong 为强匹配，Weak < score <= Strong 为弱匹配
type Thresholds struct {
	Strong float64 `yaml:"strong"`
	Weak   float64 `yaml:"weak"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Strong: 0.9, Weak: 0.7}
}

func (t Thresholds) Classify(score float64) Classification {
	switch {
	case score > t.Strong:
		return StrongMatch
	case score > t.Weak:
		return WeakMatch
	default:
		return NoMatch
	}
}

// Result 验证结果
type Result struct {
	Score          float64
	Classification Classification
}

// Verifier 对比参考水印与提取结果
type Verifier struct {
	Threshold  float64 // 二值化阈值
	Thresholds Thresholds
	Window     int
}

func New() *Verifier {
	return &Verifier{
		Threshold:  127,
		Thresholds: DefaultThresholds(),
		Window:     defaultWindow,
	}
}

// Verify 缩放 -> 二值化 -> 归一化 -> SSIM -> 分类。
// 不匹配不是错误，只有输入为空或含非有限值时才返回 error。
func (v *Verifier) Verify(reference, estimate mat.Matrix) (Result, error) {
	if err := checkMatrix("reference", reference); err != nil {
		return Result{}, err
	}
	if err := checkMatrix("estimate", estimate); err != nil {
		return Result{}, err
	}

	rows, cols := estimate.Dims()

	// 1. 参考水印缩放到提取结果的尺寸
	ref := converter.Resize(reference, rows, cols)

	// 2. 二值化, 3. 归一化到 [0,1]
	ref = converter.Binarize(ref, v.Threshold)
	est := converter.Binarize(estimate, v.Threshold)
	ref.Scale(1.0/255, ref)
	est.Scale(1.0/255, est)

	// 4. SSIM (data range = 1)
	score := SSIM(ref, est, 1.0, v.Window)

	return Result{Score: score, Classification: v.Thresholds.Classify(score)}, nil
}

func checkMatrix(name string, m mat.Matrix) error {
	if m == nil {
		return fmt.Errorf("verify: %w: %s is nil", core.ErrInputShape, name)
	}
	if d, ok := m.(*mat.Dense); ok && (d == nil || d.IsEmpty()) {
		return fmt.Errorf("verify: %w: %s is empty", core.ErrInputShape, name)
	}
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if x := m.At(i, j); math.IsNaN(x) || math.IsInf(x, 0) {
				return fmt.Errorf("verify: %w: %s has non-finite value at (%d,%d)", core.ErrNumericDomain, name, i, j)
			}
		}
	}
	return nil
}
