package core

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Estimate 提取出的水印估计。
// Vector 仅在奇异值差分类提取中有值；Matrix 总是有值。
type Estimate struct {
	Matrix  *mat.Dense
	Vector  []float64
	Warning *LossyReshapeWarning
}

// Extractor 从 (已对齐的) 含水印矩阵中提取水印估计。
// 不对保真度做判断，低相似度不是错误。
type Extractor interface {
	Extract(marked mat.Matrix) (*Estimate, error)
}

// BlockRead 读取 DCT 左上角块并做 min-max 归一化到 [0,255]。
// 这只是低频系数的粗略读取，不是 BlockAdditive 的代数逆运算。
type BlockRead struct {
	Divisor   int
	BlockRows int // 非 0 时覆盖默认块大小
	BlockCols int
}

func (br *BlockRead) Extract(marked mat.Matrix) (*Estimate, error) {
	const op = "extract.block"
	if err := validate(op, "watermarked", marked); err != nil {
		return nil, err
	}

	rows, cols := marked.Dims()
	d := divisorOrDefault(br.Divisor)
	h, w := rows/d, cols/d
	if br.BlockRows > 0 {
		h = br.BlockRows
	}
	if br.BlockCols > 0 {
		w = br.BlockCols
	}
	if h <= 0 || w <= 0 || h > rows || w > cols {
		return nil, shapeError(op, "block %dx%d does not fit %dx%d", h, w, rows, cols)
	}

	coeff := ForwardDCT(marked)
	block := mat.DenseCopyOf(coeff.Slice(0, h, 0, w))

	data := block.RawMatrix().Data
	lo, hi := floats.Min(data), floats.Max(data)
	if hi == lo {
		block.Zero()
	} else {
		scale := 255 / (hi - lo)
		for i := range data {
			data[i] = (data[i] - lo) * scale
		}
	}
	return &Estimate{Matrix: block}, nil
}

// ReferenceDiff 盲提取：当前奇异值减去 Session 里的原始奇异值，再除以 alpha
type ReferenceDiff struct {
	Alpha   float64
	Session *Session
}

func (rd *ReferenceDiff) Extract(marked mat.Matrix) (*Estimate, error) {
	const op = "extract.reference"
	if err := validateAlpha(op, rd.Alpha); err != nil {
		return nil, err
	}
	if rd.Session == nil {
		return nil, missingReference(op)
	}
	ref, ok := rd.Session.Reference()
	if !ok {
		return nil, missingReference(op)
	}
	if err := validate(op, "watermarked", marked); err != nil {
		return nil, err
	}

	s, err := SingularValues(marked)
	if err != nil {
		return nil, err
	}
	if len(s) != ref.Len() {
		return nil, shapeError(op, "reference has %d singular values, watermarked matrix has %d", ref.Len(), len(s))
	}

	return diffEstimate(s, ref.Values, rd.Alpha)
}

// CoverDiff 非盲提取：需要原始载体
type CoverDiff struct {
	Alpha    float64
	Original mat.Matrix
}

func (cd *CoverDiff) Extract(marked mat.Matrix) (*Estimate, error) {
	const op = "extract.cover"
	if err := validateAlpha(op, cd.Alpha); err != nil {
		return nil, err
	}
	if err := validate(op, "original", cd.Original); err != nil {
		return nil, err
	}
	if err := validate(op, "watermarked", marked); err != nil {
		return nil, err
	}

	or, oc := cd.Original.Dims()
	mr, mc := marked.Dims()
	if or != mr || oc != mc {
		return nil, shapeError(op, "original is %dx%d, watermarked is %dx%d", or, oc, mr, mc)
	}

	so, err := SingularValues(ForwardDCT(cd.Original))
	if err != nil {
		return nil, err
	}
	sw, err := SingularValues(ForwardDCT(marked))
	if err != nil {
		return nil, err
	}

	return diffEstimate(sw, so, cd.Alpha)
}

// diffEstimate (current - base) / alpha，截断到 [0,255]，再重排为方阵
func diffEstimate(current, base []float64, alpha float64) (*Estimate, error) {
	vec := make([]float64, len(current))
	for i := range current {
		vec[i] = clipValue((current[i] - base[i]) / alpha)
	}

	m, warn, err := ReshapeSquare(vec)
	if err != nil {
		return nil, err
	}
	return &Estimate{Matrix: m, Vector: vec, Warning: warn}, nil
}
