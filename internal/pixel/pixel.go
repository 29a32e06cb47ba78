// Package pixel holds the sample grids passed between image I/O and the
// watermark pipelines.
package pixel

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
)

// MaxValue is the largest 8-bit sample value.
const MaxValue = 255.0

var (
	ErrShapeMismatch = errors.New("shape mismatch")
)

// Array is a channel-last grid of samples in 8-bit range, processed as float64.
// Channels is 1 for grayscale, 3 for RGB and 4 for RGBA.
type Array struct {
	Rows, Cols, Channels int
	Data                 []float64
}

func New(rows, cols, channels int) *Array {
	return &Array{
		Rows:     rows,
		Cols:     cols,
		Channels: channels,
		Data:     make([]float64, rows*cols*channels),
	}
}

// NewGray wraps a row-major plane as a single channel array. data is not copied.
func NewGray(rows, cols int, data []float64) *Array {
	return &Array{Rows: rows, Cols: cols, Channels: 1, Data: data}
}

func (a *Array) Len() int {
	return a.Rows * a.Cols * a.Channels
}

func (a *Array) Area() int {
	return a.Rows * a.Cols
}

func (a *Array) SameShape(b *Array) bool {
	return a.Rows == b.Rows && a.Cols == b.Cols && a.Channels == b.Channels
}

// CheckShape reports ErrShapeMismatch when a and b differ in shape.
func CheckShape(a, b *Array) error {
	if !a.SameShape(b) {
		return fmt.Errorf("%w: %s vs %s", ErrShapeMismatch, a.shape(), b.shape())
	}
	return nil
}

func (a *Array) shape() string {
	return fmt.Sprintf("%dx%dx%d", a.Rows, a.Cols, a.Channels)
}

func (a *Array) Clone() *Array {
	c := *a
	c.Data = make([]float64, len(a.Data))
	_ = copy(c.Data, a.Data)
	return &c
}

func (a *Array) At(r, c, ch int) float64 {
	return a.Data[(r*a.Cols+c)*a.Channels+ch]
}

func (a *Array) Set(r, c, ch int, v float64) {
	a.Data[(r*a.Cols+c)*a.Channels+ch] = v
}

// Plane copies one channel into a row-major slice.
func (a *Array) Plane(ch int) []float64 {
	p := make([]float64, a.Area())
	for i := range p {
		p[i] = a.Data[i*a.Channels+ch]
	}
	return p
}

func (a *Array) SetPlane(ch int, p []float64) {
	for i, v := range p {
		a.Data[i*a.Channels+ch] = v
	}
}

// Clip clamps every sample to [0, MaxValue].
func (a *Array) Clip() {
	for i, v := range a.Data {
		a.Data[i] = Clamp(v)
	}
}

func Clamp(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > MaxValue {
		return MaxValue
	}
	return v
}

// FromImage converts src to an Array. Gray images give one channel, opaque
// images three, and images with any translucent pixel four.
func FromImage(src image.Image) *Array {
	b := src.Bounds()
	rows, cols := b.Dy(), b.Dx()
	switch img := src.(type) {
	case *image.Gray:
		a := New(rows, cols, 1)
		for y := range rows {
			for x := range cols {
				a.Data[y*cols+x] = float64(img.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
		return a
	case *image.Gray16:
		a := New(rows, cols, 1)
		for y := range rows {
			for x := range cols {
				a.Data[y*cols+x] = float64(img.Gray16At(b.Min.X+x, b.Min.Y+y).Y) / 257.0
			}
		}
		return a
	}

	pixels := make([]color.NRGBA, rows*cols)
	opaque := true
	for y := range rows {
		for x := range cols {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			pixels[y*cols+x] = c
			if c.A != 0xff {
				opaque = false
			}
		}
	}
	channels := 4
	if opaque {
		channels = 3
	}
	a := New(rows, cols, channels)
	for i, c := range pixels {
		a.Data[i*channels] = float64(c.R)
		a.Data[i*channels+1] = float64(c.G)
		a.Data[i*channels+2] = float64(c.B)
		if channels == 4 {
			a.Data[i*channels+3] = float64(c.A)
		}
	}
	return a
}

// Image rounds and clamps the samples into an 8-bit image.
func (a *Array) Image() image.Image {
	rect := image.Rect(0, 0, a.Cols, a.Rows)
	if a.Channels == 1 {
		dst := image.NewGray(rect)
		for i, v := range a.Data {
			dst.Pix[(i/a.Cols)*dst.Stride+i%a.Cols] = to8(v)
		}
		return dst
	}
	dst := image.NewNRGBA(rect)
	for i := range a.Area() {
		o := (i/a.Cols)*dst.Stride + (i%a.Cols)*4
		s := i * a.Channels
		dst.Pix[o] = to8(a.Data[s])
		dst.Pix[o+1] = to8(a.Data[s+1])
		dst.Pix[o+2] = to8(a.Data[s+2])
		dst.Pix[o+3] = 0xff
		if a.Channels == 4 {
			dst.Pix[o+3] = to8(a.Data[s+3])
		}
	}
	return dst
}

func to8(v float64) uint8 {
	return uint8(math.Round(Clamp(v)))
}
