package core

import (
	"errors"
	"math"
	"testing"

	"qrwatermark/converter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestBlockAdditiveShapeAndCoefficients(t *testing.T) {
	cover := smoothCover(32, 32)
	wm := gradient(8, 8)
	const alpha = 0.05

	out, err := (&BlockAdditive{Alpha: alpha}).Embed(cover, wm)
	require.NoError(t, err)

	rows, cols := out.Dims()
	assert.Equal(t, 32, rows)
	assert.Equal(t, 32, cols)

	// DCT(out)[block] = DCT(C)[block] + alpha*W
	got := ForwardDCT(out)
	want := ForwardDCT(cover)
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			assert.InDelta(t, want.At(i, j)+alpha*wm.At(i, j), got.At(i, j), 1e-9)
		}
	}
	// 块外系数不变
	assert.InDelta(t, want.At(20, 20), got.At(20, 20), 1e-9)
}

func TestBlockAdditiveQuantizedWithinRoundingTolerance(t *testing.T) {
	cover := smoothCover(32, 32)
	wm := gradient(8, 8)
	const alpha = 0.05

	out, err := (&BlockAdditive{Alpha: alpha}).Embed(cover, wm)
	require.NoError(t, err)

	got := ForwardDCT(Quantize(out))
	want := ForwardDCT(cover)
	// 每个系数的取整误差不超过 ||E||_F <= 0.5 * sqrt(rows*cols)
	tol := 0.5 * 32
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			assert.InDelta(t, want.At(i, j)+alpha*wm.At(i, j), got.At(i, j), tol)
		}
	}
}

func TestBlockAdditiveResizesWatermark(t *testing.T) {
	cover := smoothCover(40, 24)
	out, err := (&BlockAdditive{Alpha: 0.05}).Embed(cover, checkerboard(16))
	require.NoError(t, err)

	rows, cols := out.Dims()
	assert.Equal(t, 40, rows)
	assert.Equal(t, 24, cols)
}

func TestEmbedOutputIsClipped(t *testing.T) {
	cover := constant(16, 16, 250)
	out, err := (&BlockAdditive{Alpha: 5}).Embed(cover, constant(4, 4, 255))
	require.NoError(t, err)

	assert.LessOrEqual(t, mat.Max(out), 255.0)
	assert.GreaterOrEqual(t, mat.Min(out), 0.0)
}

func TestEmbedMonotonicInAlpha(t *testing.T) {
	cover := smoothCover(32, 32)
	wm := gradient(8, 8)

	for _, tc := range []struct {
		name string
		new  func(alpha float64) Embedder
	}{
		{"block", func(a float64) Embedder { return &BlockAdditive{Alpha: a} }},
		{"hybrid", func(a float64) Embedder { return &Hybrid{Alpha: a} }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			prev := -1.0
			for _, alpha := range []float64{0.01, 0.02, 0.05, 0.1} {
				out, err := tc.new(alpha).Embed(cover, wm)
				require.NoError(t, err)

				diff := MeanAbsDiff(cover, out)
				assert.Greater(t, diff, prev, "alpha %v", alpha)
				prev = diff
			}
		})
	}
}

func TestHybridConstantCoverScenario(t *testing.T) {
	cover := constant(64, 64, 128)
	wm := checkerboard(16)
	const alpha = 0.05

	out, err := (&Hybrid{Alpha: alpha}).Embed(cover, wm)
	require.NoError(t, err)

	pixels := Quantize(out)
	rows, cols := pixels.Dims()
	require.Equal(t, 64, rows)
	require.Equal(t, 64, cols)

	sum := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := pixels.At(i, j)
			assert.Equal(t, math.Round(v), v)
			sum += v
		}
	}
	assert.InDelta(t, 128, sum/float64(rows*cols), 2)

	est, err := (&CoverDiff{Alpha: alpha, Original: cover}).Extract(pixels)
	require.NoError(t, err)
	require.Len(t, est.Vector, 64)
	for _, v := range est.Vector {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 255.0)
	}
	// 棋盘左上角为白，主奇异值的增量应接近 alpha*255
	assert.Greater(t, est.Vector[0], 200.0)
	assert.Nil(t, est.Warning)

	// 去均值后与棋盘逐行交替 (+1, -1, ...) 正相关
	mean := 0.0
	for _, v := range est.Vector {
		mean += v
	}
	mean /= float64(len(est.Vector))
	corr := 0.0
	for i, v := range est.Vector {
		sign := 1.0
		if i%2 == 1 {
			sign = -1
		}
		corr += sign * (v - mean)
	}
	assert.Greater(t, corr, 0.0)
	r, c := est.Matrix.Dims()
	assert.Equal(t, 8, r)
	assert.Equal(t, 8, c)
}

func TestReferenceEmbedStoresSingularValues(t *testing.T) {
	session := NewSession()
	cover := smoothCover(16, 16)

	_, err := (&BlockAdditive{Alpha: 0.1, Session: session}).Embed(cover, constant(8, 8, 200))
	require.NoError(t, err)

	ref, ok := session.Reference()
	require.True(t, ok)
	assert.Len(t, ref.Values, 16)

	// 再次嵌入覆盖旧值
	_, err = (&BlockAdditive{Alpha: 0.1, Session: session}).Embed(constant(16, 16, 90), constant(8, 8, 200))
	require.NoError(t, err)
	again, ok := session.Reference()
	require.True(t, ok)
	assert.NotEqual(t, ref.Values[0], again.Values[0])
}

func TestReferenceEmbedRecordsQuantizedBlockOutput(t *testing.T) {
	cover := smoothCover(16, 16)
	wm := gradient(4, 4)

	plain, err := (&BlockAdditive{Alpha: 0.3}).Embed(cover, wm)
	require.NoError(t, err)
	want, err := SingularValues(Quantize(plain))
	require.NoError(t, err)

	session := NewSession()
	_, err = (&BlockAdditive{Alpha: 0.3, Session: session}).Embed(cover, wm)
	require.NoError(t, err)
	ref, ok := session.Reference()
	require.True(t, ok)

	require.Len(t, ref.Values, len(want))
	for i := range want {
		assert.InDelta(t, want[i], ref.Values[i], 1e-9)
	}
}

func TestReferenceEmbedWithoutSessionIsPlainBlock(t *testing.T) {
	cover := smoothCover(16, 16)
	wm := constant(4, 4, 200)

	plain, err := (&BlockAdditive{Alpha: 0.1}).Embed(cover, wm)
	require.NoError(t, err)
	withRef, err := (&BlockAdditive{Alpha: 0.1, Session: NewSession()}).Embed(cover, wm)
	require.NoError(t, err)

	assert.False(t, mat.EqualApprox(plain, withRef, 1e-6))
}

func TestEmbedErrors(t *testing.T) {
	nan := smoothCover(16, 16)
	nan.Set(3, 3, math.NaN())

	tests := []struct {
		name      string
		embedder  Embedder
		cover, wm mat.Matrix
		want      error
	}{
		{"zero alpha", &BlockAdditive{Alpha: 0}, smoothCover(16, 16), gradient(4, 4), ErrNumericDomain},
		{"negative alpha", &Hybrid{Alpha: -0.1}, smoothCover(16, 16), gradient(4, 4), ErrNumericDomain},
		{"infinite alpha", &Hybrid{Alpha: math.Inf(1)}, smoothCover(16, 16), gradient(4, 4), ErrNumericDomain},
		{"nan cover", &Hybrid{Alpha: 0.05}, nan, gradient(4, 4), ErrNumericDomain},
		{"nan watermark", &BlockAdditive{Alpha: 0.05}, smoothCover(16, 16), nan, ErrNumericDomain},
		{"nil cover", &Hybrid{Alpha: 0.05}, nil, gradient(4, 4), ErrInputShape},
		{"empty watermark", &Hybrid{Alpha: 0.05}, smoothCover(8, 8), &mat.Dense{}, ErrInputShape},
		{"cover too small for block", &BlockAdditive{Alpha: 0.05}, smoothCover(3, 3), gradient(4, 4), ErrInputShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.embedder.Embed(tt.cover, tt.wm)
			assert.Nil(t, out)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestHybridUsesWatermarkDiagonal(t *testing.T) {
	cover := smoothCover(12, 12)
	wm := gradient(12, 12)
	const alpha = 0.05

	out, err := (&Hybrid{Alpha: alpha}).Embed(cover, wm)
	require.NoError(t, err)

	_, s, _, err := Decompose(ForwardDCT(cover))
	require.NoError(t, err)

	resized := converter.Resize(wm, 12, 12)
	want := make([]float64, len(s))
	for i := range s {
		want[i] = s[i] + alpha*resized.At(i, i)
	}
	got, err := SingularValues(ForwardDCT(out))
	require.NoError(t, err)

	// 嵌入后奇异值的总和与逐项叠加一致 (顺序可能因排序改变)
	sumWant, sumGot := 0.0, 0.0
	for i := range want {
		sumWant += want[i]
		sumGot += got[i]
	}
	assert.InDelta(t, sumWant, sumGot, 1e-6)
}
