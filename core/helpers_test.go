package core

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

func constant(rows, cols int, v float64) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	m.Apply(func(_, _ int, _ float64) float64 { return v }, m)
	return m
}

// smoothCover 取值在 [70,130] 的确定性载体
func smoothCover(rows, cols int) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Set(i, j, 100+20*math.Sin(float64(i)*0.7)+10*math.Cos(float64(j)*1.3+float64(i)))
		}
	}
	return m
}

// checkerboard 单像素黑白格，左上角为白
func checkerboard(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if (i+j)%2 == 0 {
				m.Set(i, j, 255)
			}
		}
	}
	return m
}

func gradient(rows, cols int) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Set(i, j, float64((i*cols+j)*255/(rows*cols-1)))
		}
	}
	return m
}
