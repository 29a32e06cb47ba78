package watermark

import (
	"gonum.org/v1/gonum/mat"

	"github.com/yyyoichi/watermark_svd/internal/pixel"
	"github.com/yyyoichi/watermark_svd/internal/yuv"
)

// ImageSource splits a pixel array into the luma plane that carries the
// watermark and the chroma and alpha samples restored around it.
type ImageSource struct {
	rows, cols int
	channels   int

	// U, V planes for colour sources, nil for grayscale
	u, v []float64
	luma []float64
	// original samples, kept for the alpha channel
	base *pixel.Array
}

func NewImageSource(src *pixel.Array) *ImageSource {
	s := &ImageSource{
		rows:     src.Rows,
		cols:     src.Cols,
		channels: src.Channels,
		base:     src,
	}
	if src.Channels == 1 {
		s.luma = src.Plane(0)
		return s
	}
	area := src.Area()
	s.luma = make([]float64, area)
	s.u = make([]float64, area)
	s.v = make([]float64, area)
	yuv.RGBToYUVBatch(src.Data, src.Channels, s.luma, s.u, s.v)
	return s
}

// Luma returns a copy of the luma plane as a rows x cols matrix.
func (s *ImageSource) Luma() *mat.Dense {
	data := make([]float64, len(s.luma))
	_ = copy(data, s.luma)
	return mat.NewDense(s.rows, s.cols, data)
}

// Build returns a new pixel array with the luma plane replaced by luma.
// Samples are clipped to the 8-bit range.
func (s *ImageSource) Build(luma *mat.Dense) *pixel.Array {
	plane := make([]float64, s.rows*s.cols)
	for y := range s.rows {
		for x := range s.cols {
			plane[y*s.cols+x] = luma.At(y, x)
		}
	}

	out := s.base.Clone()
	if s.channels == 1 {
		out.SetPlane(0, plane)
	} else {
		yuv.YUVToRGBBatch(plane, s.u, s.v, s.channels, out.Data)
	}
	out.Clip()
	return out
}

// LumaOf reduces src to a single luma matrix.
func LumaOf(src *pixel.Array) *mat.Dense {
	return NewImageSource(src).Luma()
}
