package core

import (
	"gonum.org/v1/gonum/mat"
)

// Decompose 对 m 做瘦 SVD: m = U · diag(S) · Vᵀ
// S 非负、降序，长度为 min(rows, cols)
func Decompose(m mat.Matrix) (u *mat.Dense, s []float64, v *mat.Dense, err error) {
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDThin); !ok {
		return nil, nil, nil, domainError("svd", "factorization did not converge")
	}

	s = svd.Values(nil)
	u, v = new(mat.Dense), new(mat.Dense)
	svd.UTo(u)
	svd.VTo(v)
	return u, s, v, nil
}

// Reconstruct 计算 U · diag(S) · Vᵀ
func Reconstruct(u *mat.Dense, s []float64, v *mat.Dense) *mat.Dense {
	sigma := mat.NewDiagDense(len(s), append([]float64(nil), s...))

	var us, out mat.Dense
	us.Mul(u, sigma)
	out.Mul(&us, v.T())
	return &out
}

// SingularValues 只计算奇异值
func SingularValues(m mat.Matrix) ([]float64, error) {
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDNone); !ok {
		return nil, domainError("svd", "factorization did not converge")
	}
	return svd.Values(nil), nil
}
