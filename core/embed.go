package core

import (
	"qrwatermark/converter"

	"gonum.org/v1/gonum/mat"
)

// Embedder 把水印嵌入载体矩阵，输出与载体同尺寸、截断到 [0,255] 的矩阵 (未取整)
type Embedder interface {
	Embed(cover, watermark mat.Matrix) (*mat.Dense, error)
}

// BlockAdditive 在 DCT 系数左上角的块里直接叠加 alpha * 水印。
// Session 非 nil 时再做一次 SVD 嵌入，并把嵌入前的奇异值写入 Session。
type BlockAdditive struct {
	Alpha   float64
	Divisor int // 水印块为载体的 1/Divisor，默认 4
	Session *Session
}

func (b *BlockAdditive) Embed(cover, watermark mat.Matrix) (*mat.Dense, error) {
	const op = "embed.block"
	if err := checkInputs(op, b.Alpha, cover, watermark); err != nil {
		return nil, err
	}

	rows, cols := cover.Dims()
	d := divisorOrDefault(b.Divisor)
	h, w := rows/d, cols/d
	if h == 0 || w == 0 {
		return nil, shapeError(op, "cover %dx%d too small for a 1/%d watermark block", rows, cols, d)
	}

	wm := converter.Resize(watermark, h, w)
	if r, c := wm.Dims(); r != h || c != w {
		return nil, shapeError(op, "resized watermark is %dx%d, want %dx%d", r, c, h, w)
	}

	// 1. DCT
	coeff := ForwardDCT(cover)

	// 2. 左上角块 += alpha * wm (Slice 与 coeff 共享存储)
	block := coeff.Slice(0, h, 0, w).(*mat.Dense)
	var scaled mat.Dense
	scaled.Scale(b.Alpha, wm)
	block.Add(block, &scaled)

	// 3. IDCT 并截断
	out := clip(InverseDCT(coeff))

	if b.Session == nil {
		return out, nil
	}
	// 先按 8 位输出取整，再在空间域做 SVD
	return embedReference(op, Quantize(out), watermark, b.Alpha, b.Session)
}

// embedReference 在空间域做 SVD，保存原始奇异值后把水印叠加到奇异值上
func embedReference(op string, marked *mat.Dense, watermark mat.Matrix, alpha float64, session *Session) (*mat.Dense, error) {
	u, s, v, err := Decompose(marked)
	if err != nil {
		return nil, err
	}
	session.Store(Reference{Values: s})

	// 水印缩放成 1 x rank 的行向量
	row := converter.Resize(watermark, 1, len(s))
	if _, c := row.Dims(); c != len(s) {
		return nil, shapeError(op, "resized watermark row has %d values, want %d", c, len(s))
	}

	sMod := make([]float64, len(s))
	for i := range s {
		sMod[i] = s[i] + alpha*row.At(0, i)
	}
	return clip(Reconstruct(u, sMod, v)), nil
}

// Hybrid DCT + SVD：把水印叠加到 DCT 系数矩阵的奇异值上
type Hybrid struct {
	Alpha float64
}

func (hy *Hybrid) Embed(cover, watermark mat.Matrix) (*mat.Dense, error) {
	const op = "embed.hybrid"
	if err := checkInputs(op, hy.Alpha, cover, watermark); err != nil {
		return nil, err
	}

	rows, cols := cover.Dims()
	wm := converter.Resize(watermark, rows, cols)
	if r, c := wm.Dims(); r != rows || c != cols {
		return nil, shapeError(op, "resized watermark is %dx%d, want %dx%d", r, c, rows, cols)
	}

	coeff := ForwardDCT(cover)
	u, s, v, err := Decompose(coeff)
	if err != nil {
		return nil, err
	}

	// 全尺寸水印按主对角线映射到奇异值向量上
	sNew := make([]float64, len(s))
	for i := range s {
		sNew[i] = s[i] + hy.Alpha*wm.At(i, i)
	}

	return clip(InverseDCT(Reconstruct(u, sNew, v))), nil
}

func checkInputs(op string, alpha float64, cover, watermark mat.Matrix) error {
	if err := validateAlpha(op, alpha); err != nil {
		return err
	}
	if err := validate(op, "cover", cover); err != nil {
		return err
	}
	return validate(op, "watermark", watermark)
}

func divisorOrDefault(d int) int {
	if d <= 0 {
		return DefaultDivisor
	}
	return d
}
