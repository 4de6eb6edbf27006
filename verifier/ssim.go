package verifier

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	defaultWindow = 7
	k1            = 0.01
	k2            = 0.03
)

// SSIM 两个同尺寸矩阵的平均结构相似度。
// 使用 win x win 的均匀窗口 (样本协方差)，只统计完整落在图内的窗口；
// 图比窗口小时窗口缩小到能放下的最大奇数。
func SSIM(x, y mat.Matrix, dataRange float64, win int) float64 {
	rows, cols := x.Dims()
	win = fitWindow(win, rows, cols)

	c1 := (k1 * dataRange) * (k1 * dataRange)
	c2 := (k2 * dataRange) * (k2 * dataRange)

	n := win * win
	xs := make([]float64, n)
	ys := make([]float64, n)

	sum := 0.0
	count := 0
	for i := 0; i+win <= rows; i++ {
		for j := 0; j+win <= cols; j++ {
			k := 0
			for di := 0; di < win; di++ {
				for dj := 0; dj < win; dj++ {
					xs[k] = x.At(i+di, j+dj)
					ys[k] = y.At(i+di, j+dj)
					k++
				}
			}

			mx, my := stat.Mean(xs, nil), stat.Mean(ys, nil)
			var vx, vy, cov float64
			if n > 1 {
				vx = stat.Variance(xs, nil)
				vy = stat.Variance(ys, nil)
				cov = stat.Covariance(xs, ys, nil)
			}

			sum += ((2*mx*my + c1) * (2*cov + c2)) / ((mx*mx + my*my + c1) * (vx + vy + c2))
			count++
		}
	}
	return sum / float64(count)
}

func fitWindow(win, rows, cols int) int {
	if win <= 0 {
		win = defaultWindow
	}
	win = min(win, rows, cols)
	if win%2 == 0 {
		win--
	}
	return max(win, 1)
}
