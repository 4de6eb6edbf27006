package core

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// validate 检查矩阵非空且全部为有限值
func validate(op, name string, m mat.Matrix) error {
	if m == nil {
		return shapeError(op, "%s is nil", name)
	}
	if d, ok := m.(*mat.Dense); ok && (d == nil || d.IsEmpty()) {
		return shapeError(op, "%s is empty", name)
	}
	rows, cols := m.Dims()
	if rows == 0 || cols == 0 {
		return shapeError(op, "%s has zero size %dx%d", name, rows, cols)
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := m.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return domainError(op, "%s has non-finite value at (%d,%d)", name, i, j)
			}
		}
	}
	return nil
}

func validateAlpha(op string, alpha float64) error {
	if !(alpha > 0) || math.IsInf(alpha, 0) {
		return domainError(op, "alpha must be a finite value > 0, got %v", alpha)
	}
	return nil
}

// clip 截断到 [0,255]，不取整
func clip(m *mat.Dense) *mat.Dense {
	m.Apply(func(_, _ int, v float64) float64 {
		return clipValue(v)
	}, m)
	return m
}

func clipValue(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// Quantize 截断到 [0,255] 并四舍五入为整数像素值，模拟 8 位输出边界
func Quantize(m mat.Matrix) *mat.Dense {
	out := mat.DenseCopyOf(m)
	out.Apply(func(_, _ int, v float64) float64 {
		return math.Round(clipValue(v))
	}, out)
	return out
}

// ReshapeSquare 把一维估计值按行排成最大的方阵 side = floor(sqrt(n))，丢弃多余部分。
// 这是有损近似，不是精确还原；n 不是完全平方数时返回 warning。
func ReshapeSquare(v []float64) (*mat.Dense, *LossyReshapeWarning, error) {
	n := len(v)
	side := int(math.Sqrt(float64(n)))
	// 防止浮点误差
	for (side+1)*(side+1) <= n {
		side++
	}
	for side*side > n {
		side--
	}
	if side == 0 {
		return nil, nil, shapeError("reshape", "cannot reshape %d values into a square", n)
	}

	out := mat.NewDense(side, side, append([]float64(nil), v[:side*side]...))
	if side*side == n {
		return out, nil, nil
	}
	return out, &LossyReshapeWarning{Length: n, Side: side, Discarded: n - side*side}, nil
}

// ExceedsBudget SVD 代价为立方级，超过 maxDim 时调用方应当提示
// maxDim <= 0 表示不限制
func ExceedsBudget(rows, cols, maxDim int) bool {
	return maxDim > 0 && (rows > maxDim || cols > maxDim)
}

// MeanAbsDiff 两个同尺寸矩阵的平均绝对差
func MeanAbsDiff(a, b mat.Matrix) float64 {
	rows, cols := a.Dims()
	sum := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			sum += math.Abs(a.At(i, j) - b.At(i, j))
		}
	}
	return sum / float64(rows*cols)
}
