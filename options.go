package watermark

import (
	"fmt"

	"github.com/yyyoichi/watermark_svd/internal/dwt"
	"github.com/yyyoichi/watermark_svd/internal/quality"
	"github.com/yyyoichi/watermark_svd/internal/watermark"
)

type Option func(*Watermark) error

// WithWavelet selects the wavelet family by name: haar (db1), db2, db3, db4,
// sym2 or sym3.
func WithWavelet(name string) Option {
	return func(w *Watermark) error {
		wv, err := dwt.Lookup(name)
		if err != nil {
			return fmt.Errorf("%w:%w", ErrInvalidParameter, err)
		}
		w.wavelet = wv
		return nil
	}
}

// WithLevel sets the number of decomposition levels. Whether the host can
// support it is checked on Embed.
func WithLevel(level int) Option {
	return func(w *Watermark) error {
		if level < 1 {
			return fmt.Errorf("%w: level %d", ErrInvalidLevel, level)
		}
		w.level = level
		return nil
	}
}

// WithBand selects the subband at the coarsest level that carries the watermark.
func WithBand(band Band) Option {
	return func(w *Watermark) error {
		if _, err := dwt.ParseBand(band.String()); err != nil {
			return err
		}
		w.band = band
		return nil
	}
}

// WithAlpha sets the embedding strength.
// Larger values improve robustness and lower the PSNR.
func WithAlpha(alpha float64) Option {
	return func(w *Watermark) error {
		if err := watermark.CheckAlpha(alpha); err != nil {
			return err
		}
		w.alpha = alpha
		return nil
	}
}

// WithPSNRMeter sets the peak sample value used for PSNR and the value
// reported when the marked image equals the host.
func WithPSNRMeter(peak, identical float64) Option {
	return func(w *Watermark) error {
		if peak <= 0 {
			return fmt.Errorf("%w: PSNR peak %v", ErrInvalidParameter, peak)
		}
		w.meter = quality.Meter{Peak: peak, Identical: identical}
		return nil
	}
}
