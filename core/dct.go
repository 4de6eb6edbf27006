package core

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// 正交 DCT-II 基矩阵缓存，按长度索引
var basisCache sync.Map

// dctBasis 返回 n 点正交 DCT-II 基矩阵 C，满足 C·Cᵀ = I
// C[u][x] = c(u) * cos((2x+1)uπ / 2n)
func dctBasis(n int) *mat.Dense {
	if b, ok := basisCache.Load(n); ok {
		return b.(*mat.Dense)
	}

	basis := mat.NewDense(n, n, nil)
	for u := 0; u < n; u++ {
		for x := 0; x < n; x++ {
			basis.Set(u, x, c(u, n)*math.Cos((2*float64(x)+1)*float64(u)*math.Pi/(2*float64(n))))
		}
	}
	actual, _ := basisCache.LoadOrStore(n, basis)
	return actual.(*mat.Dense)
}

func c(k, n int) float64 {
	if k == 0 {
		return math.Sqrt(1 / float64(n))
	}
	return math.Sqrt(2 / float64(n))
}

// ForwardDCT 二维正交 DCT，任意 rows x cols
// 能量集中在左上角 (低频)
func ForwardDCT(m mat.Matrix) *mat.Dense {
	rows, cols := m.Dims()
	var tmp, out mat.Dense
	tmp.Mul(dctBasis(rows), m)
	out.Mul(&tmp, dctBasis(cols).T())
	return &out
}

// InverseDCT 二维逆 DCT，与 ForwardDCT 互逆。不做任何裁剪。
func InverseDCT(coeff mat.Matrix) *mat.Dense {
	rows, cols := coeff.Dims()
	var tmp, out mat.Dense
	tmp.Mul(dctBasis(rows).T(), coeff)
	out.Mul(&tmp, dctBasis(cols))
	return &out
}
