package converter

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	// 注册解码器
	_ "image/gif"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/mat"
)

// ConvertToGray 将任意图片转换为 8位灰度图
func ConvertToGray(src image.Image) *image.Gray {
	bounds := src.Bounds()
	grayImg := image.NewGray(bounds)

	// draw 包会自动处理颜色模型转换 (RGB -> Gray)
	draw.Draw(grayImg, bounds, src, bounds.Min, draw.Src)

	return grayImg
}

// ToMatrix 图片 -> 灰度矩阵 (float64, 取值 0-255)
func ToMatrix(src image.Image) *mat.Dense {
	gray := ConvertToGray(src)
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return &mat.Dense{}
	}

	m := mat.NewDense(h, w, nil)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.Set(y, x, float64(gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y))
		}
	}
	return m
}

// ToGray 矩阵 -> 8位灰度图。这是唯一做取整的地方。
func ToGray(m mat.Matrix) *image.Gray {
	rows, cols := m.Dims()
	img := image.NewGray(image.Rect(0, 0, cols, rows))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			img.SetGray(x, y, color.Gray{Y: clamp(m.At(y, x))})
		}
	}
	return img
}

// Resize 双线性缩放到 rows x cols。
// 尺寸一致时直接复制；输入按 [0,255] 截断，内部用 16 位灰度避免丢失小数精度。
func Resize(m mat.Matrix, rows, cols int) *mat.Dense {
	r, c := m.Dims()
	if r == rows && c == cols {
		return mat.DenseCopyOf(m)
	}

	src := image.NewGray16(image.Rect(0, 0, c, r))
	for y := 0; y < r; y++ {
		for x := 0; x < c; x++ {
			src.SetGray16(x, y, color.Gray16{Y: uint16(math.Round(clampFloat(m.At(y, x)) * 257))})
		}
	}

	dst := image.NewGray16(image.Rect(0, 0, cols, rows))
	draw.BiLinear.Scale(dst, dst.Rect, src, src.Rect, draw.Src, nil)

	out := mat.NewDense(rows, cols, nil)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			out.Set(y, x, float64(dst.Gray16At(x, y).Y)/257)
		}
	}
	return out
}

// Binarize 二值化：大于 threshold 为 255 (白)，否则为 0 (黑)
func Binarize(m mat.Matrix, threshold float64) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(i, j int, v float64) float64 {
		if v > threshold {
			return 255
		}
		return 0
	}, m)
	return out
}

// Decode 解码 PNG/JPEG/GIF 为灰度矩阵
func Decode(r io.Reader) (*mat.Dense, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return ToMatrix(img), nil
}

// LoadFile 读取图片文件为灰度矩阵
func LoadFile(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(f)
}

// Encode 按格式写出灰度图，format 为 "png" 或 "jpeg"
func Encode(w io.Writer, m mat.Matrix, format string) error {
	img := ToGray(m)
	switch format {
	case "jpeg", "jpg":
		// 质量设为 100 以尽量减少压缩带来的水印损失
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 100})
	case "png", "":
		return png.Encode(w, img)
	default:
		return fmt.Errorf("unsupported image format %q", format)
	}
}

// SaveFile 按扩展名保存，.jpg/.jpeg 为 JPEG，其余为 PNG
func SaveFile(path string, m mat.Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	format := "png"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		format = "jpeg"
	}

	if err := Encode(f, m, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func clampFloat(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

func clamp(v float64) uint8 {
	return uint8(math.Round(clampFloat(v)))
}
