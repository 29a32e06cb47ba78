// Package quality measures how far a watermarked image is from its host.
package quality

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/yyyoichi/watermark_svd/internal/pixel"
)

// Identical is the PSNR reported for identical inputs by the default meter.
var Identical = math.Inf(1)

// Meter computes PSNR for a given peak value.
type Meter struct {
	Peak float64
	// Identical is returned when the mean squared error is zero.
	Identical float64
}

// DefaultMeter measures 8-bit samples.
func DefaultMeter() Meter {
	return Meter{Peak: pixel.MaxValue, Identical: Identical}
}

// PSNR is DefaultMeter().PSNR.
func PSNR(a, b *pixel.Array) (float64, error) {
	return DefaultMeter().PSNR(a, b)
}

// PSNR returns 10*log10(Peak^2 / MSE) in decibels over every sample.
func (m Meter) PSNR(a, b *pixel.Array) (float64, error) {
	mse, err := MSE(a, b)
	if err != nil {
		return 0, err
	}
	if mse == 0 {
		return m.Identical, nil
	}
	return 10 * math.Log10(m.Peak*m.Peak/mse), nil
}

// MSE returns the mean squared difference of a and b.
func MSE(a, b *pixel.Array) (float64, error) {
	if err := pixel.CheckShape(a, b); err != nil {
		return 0, err
	}
	if len(a.Data) == 0 {
		return 0, nil
	}
	diff := floats.SubTo(make([]float64, len(a.Data)), a.Data, b.Data)
	return floats.Dot(diff, diff) / float64(len(diff)), nil
}

// NC returns the normalized correlation sum(a*b) / (|a| |b|). It is 1 for
// proportional inputs and 0 when either input is all zero.
func NC(a, b *pixel.Array) (float64, error) {
	if err := pixel.CheckShape(a, b); err != nil {
		return 0, err
	}
	na, nb := floats.Norm(a.Data, 2), floats.Norm(b.Data, 2)
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return floats.Dot(a.Data, b.Data) / (na * nb), nil
}
