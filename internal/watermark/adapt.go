package watermark

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/mat"

	"github.com/yyyoichi/watermark_svd/internal/pixel"
)

// Adapt resizes mark to rows x cols with bilinear interpolation. Samples are
// resampled at 16-bit precision. A mark already of that shape is copied as is.
func Adapt(mark *mat.Dense, rows, cols int) *mat.Dense {
	if r, c := mark.Dims(); r == rows && c == cols {
		return mat.DenseCopyOf(mark)
	}
	src := toGray16(mark)
	dst := image.NewGray16(image.Rect(0, 0, cols, rows))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return fromGray16(dst)
}

// RestoreSize resizes an estimate back to the watermark's source shape.
func RestoreSize(est *mat.Dense, side *SideInfo) *mat.Dense {
	if side.SourceRows < 1 || side.SourceCols < 1 {
		return mat.DenseCopyOf(est)
	}
	return Adapt(est, side.SourceRows, side.SourceCols)
}

func toGray16(m *mat.Dense) *image.Gray16 {
	rows, cols := m.Dims()
	img := image.NewGray16(image.Rect(0, 0, cols, rows))
	for y := range rows {
		for x := range cols {
			v := uint16(math.Round(pixel.Clamp(m.At(y, x)) * 257))
			o := y*img.Stride + x*2
			img.Pix[o] = uint8(v >> 8)
			img.Pix[o+1] = uint8(v)
		}
	}
	return img
}

func fromGray16(img *image.Gray16) *mat.Dense {
	b := img.Bounds()
	m := mat.NewDense(b.Dy(), b.Dx(), nil)
	for y := range b.Dy() {
		for x := range b.Dx() {
			o := y*img.Stride + x*2
			v := uint16(img.Pix[o])<<8 | uint16(img.Pix[o+1])
			m.Set(y, x, float64(v)/257)
		}
	}
	return m
}
