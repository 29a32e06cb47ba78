package watermark

import (
	"fmt"
	"image"

	"github.com/yyyoichi/watermark_svd/internal/dwt"
	"github.com/yyyoichi/watermark_svd/internal/metadata"
	"github.com/yyyoichi/watermark_svd/internal/pixel"
	"github.com/yyyoichi/watermark_svd/internal/quality"
	"github.com/yyyoichi/watermark_svd/internal/watermark"
)

// Parameters of the reference deployment.
const (
	DefaultWavelet = "db2"
	DefaultLevel   = 2
	DefaultBand    = HL
	DefaultAlpha   = 0.12
)

// Metadata keys written by Embed.
const (
	MetaSchema           = "schema"
	MetaWavelet          = "wavelet"
	MetaLevel            = "level"
	MetaBand             = "band"
	MetaAlpha            = "alpha"
	MetaHostShape        = "host_shape"
	MetaHostSubbandShape = "host_subband_shape"
	MetaSideInfo         = "side_info"
)

type (
	// Pixels is a channel-last sample grid with 1, 3 or 4 channels.
	Pixels = pixel.Array
	// Bag is the metadata carried next to a watermarked image.
	Bag = metadata.Bag
	// Band labels a wavelet subband.
	Band = dwt.Band
)

const (
	LL = dwt.LL
	LH = dwt.LH
	HL = dwt.HL
	HH = dwt.HH
)

// ParseBand parses a band label such as "HL", ignoring case.
func ParseBand(s string) (Band, error) {
	return dwt.ParseBand(s)
}

// Result is the output of an embed.
type Result struct {
	Marked *Pixels
	// Meta holds everything Extract needs.
	Meta Bag
	// PSNR of Marked against the host in dB.
	PSNR float64
}

// Embed embeds mark into host with the specified options.
// This is a convenience function that creates a Watermark instance and calls its Embed method.
func Embed(host, mark *Pixels, opts ...Option) (*Result, error) {
	w, err := New(opts...)
	if err != nil {
		return nil, err
	}
	return w.Embed(host, mark)
}

type Watermark struct {
	wavelet dwt.Wavelet
	level   int
	band    Band
	alpha   float64
	meter   quality.Meter
}

// New initializes a watermark processing structure.
// For default values, refer to the init function.
func New(opts ...Option) (*Watermark, error) {
	w := new(Watermark)
	if err := w.init(opts...); err != nil {
		return nil, err
	}
	return w, nil
}

// Embed hides mark in the luma plane of host.
//
// Process:
//  1. Converts colour hosts to YUV and takes the Y plane.
//  2. Decomposes it with a multi-level DWT.
//  3. Resizes the watermark luma to the selected subband.
//  4. Adds alpha times the watermark's singular values to the subband's.
//  5. Applies the inverse DWT and rebuilds the image.
//  6. Calibrates the side info against the subband read back from the result.
//
// The returned metadata is all Extract needs besides the marked pixels.
func (w *Watermark) Embed(host, mark *Pixels) (*Result, error) {
	if err := checkPixels("host", host); err != nil {
		return nil, err
	}
	if err := checkPixels("watermark", mark); err != nil {
		return nil, err
	}

	src := watermark.NewImageSource(host)
	tree, err := dwt.Forward(src.Luma(), w.wavelet, w.level)
	if err != nil {
		return nil, err
	}
	sub, err := tree.Select(w.level, w.band)
	if err != nil {
		return nil, err
	}
	rows, cols := sub.Dims()

	adapted := watermark.Adapt(watermark.LumaOf(mark), rows, cols)
	perturbed, side, err := watermark.Embed(sub, adapted, w.alpha)
	if err != nil {
		return nil, err
	}
	side.SourceRows, side.SourceCols = mark.Rows, mark.Cols

	if tree, err = tree.Replace(w.level, w.band, perturbed); err != nil {
		return nil, err
	}
	luma, err := dwt.Inverse(tree)
	if err != nil {
		return nil, err
	}
	marked := src.Build(luma)

	// The rebuilt image does not hold the perturbed subband exactly: the
	// transform is redundant at the borders and Build clips. Rebase the side
	// info on what Extract will read back.
	back, err := dwt.Forward(watermark.LumaOf(marked), w.wavelet, w.level)
	if err != nil {
		return nil, err
	}
	readBack, err := back.Select(w.level, w.band)
	if err != nil {
		return nil, err
	}
	if err := side.Calibrate(readBack); err != nil {
		return nil, err
	}

	psnr, err := w.meter.PSNR(host, marked)
	if err != nil {
		return nil, err
	}
	return &Result{
		Marked: marked,
		Meta: Bag{
			MetaSchema:           metadata.Schema,
			MetaWavelet:          w.wavelet.Name,
			MetaLevel:            w.level,
			MetaBand:             w.band.String(),
			MetaAlpha:            w.alpha,
			MetaHostShape:        []int{host.Rows, host.Cols, host.Channels},
			MetaHostSubbandShape: []int{rows, cols},
			MetaSideInfo:         side.Bag(),
		},
		PSNR: psnr,
	}, nil
}

// Extract recovers a grayscale watermark estimate from marked. Every
// parameter comes from meta. The estimate has the subband's shape; see
// RestoreSize for the watermark's source shape.
func Extract(marked *Pixels, meta Bag) (*Pixels, error) {
	if err := checkPixels("watermarked image", marked); err != nil {
		return nil, err
	}
	p, err := paramsFromMeta(meta)
	if err != nil {
		return nil, err
	}
	if marked.Rows != p.hostRows || marked.Cols != p.hostCols {
		return nil, fmt.Errorf("%w: image is %dx%d, metadata expects %dx%d", ErrShapeMismatch, marked.Rows, marked.Cols, p.hostRows, p.hostCols)
	}

	tree, err := dwt.Forward(watermark.LumaOf(marked), p.wavelet, p.level)
	if err != nil {
		return nil, err
	}
	sub, err := tree.Select(p.level, p.band)
	if err != nil {
		return nil, err
	}
	est, err := watermark.Extract(sub, p.side)
	if err != nil {
		return nil, err
	}
	r, c := est.Dims()
	return pixel.NewGray(r, c, est.RawMatrix().Data), nil
}

// RestoreSize resizes an estimate returned by Extract to the shape of the
// watermark that was embedded.
func RestoreSize(est *Pixels, meta Bag) (*Pixels, error) {
	if err := checkPixels("estimate", est); err != nil {
		return nil, err
	}
	p, err := paramsFromMeta(meta)
	if err != nil {
		return nil, err
	}
	m := watermark.RestoreSize(watermark.LumaOf(est), p.side)
	r, c := m.Dims()
	return pixel.NewGray(r, c, m.RawMatrix().Data), nil
}

func (w *Watermark) init(opts ...Option) error {
	w.level = DefaultLevel
	w.band = DefaultBand
	w.alpha = DefaultAlpha
	w.meter = quality.DefaultMeter()
	if err := WithWavelet(DefaultWavelet)(w); err != nil {
		return err
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return err
		}
	}
	return nil
}

func checkPixels(name string, p *Pixels) error {
	if p == nil || p.Rows < 1 || p.Cols < 1 {
		return fmt.Errorf("%w: %s is empty", ErrInvalidParameter, name)
	}
	switch p.Channels {
	case 1, 3, 4:
	default:
		return fmt.Errorf("%w: %s has %d channels", ErrInvalidParameter, name, p.Channels)
	}
	if len(p.Data) != p.Len() {
		return fmt.Errorf("%w: %s holds %d samples, want %d", ErrShapeMismatch, name, len(p.Data), p.Len())
	}
	return nil
}

// FromImage converts img to pixels: one channel for gray images, three for
// opaque images and four otherwise.
func FromImage(img image.Image) *Pixels {
	return pixel.FromImage(img)
}
