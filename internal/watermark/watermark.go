package watermark

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/yyyoichi/watermark_svd/internal/pixel"
	"github.com/yyyoichi/watermark_svd/internal/svd"
)

// RecoveryThreshold is the normalized correlation an estimate extracted from
// an unmodified watermarked image reaches against the adapted watermark.
const RecoveryThreshold = 0.95

var (
	ErrInvalidParameter = errors.New("invalid parameter")
)

// SideInfo is what extraction needs besides the watermarked subband.
type SideInfo struct {
	// S holds the singular values of the host subband.
	S []float64
	// U and V are the singular vectors of the adapted watermark.
	U, V *mat.Dense
	// Rows and Cols give the adapted watermark shape, equal to the subband's.
	Rows, Cols int
	// SourceRows and SourceCols give the watermark shape before adaptation,
	// zero when unknown.
	SourceRows, SourceCols int
	Alpha                  float64

	// singular values of the adapted watermark, not persisted
	sw []float64
}

// CheckAlpha rejects strengths that are not finite and positive.
func CheckAlpha(alpha float64) error {
	if math.IsNaN(alpha) || math.IsInf(alpha, 0) || alpha <= 0 {
		return fmt.Errorf("%w: alpha must be a positive finite number, got %v", ErrInvalidParameter, alpha)
	}
	return nil
}

// Embed adds alpha times the singular values of mark to those of host and
// rebuilds the subband with the host's singular vectors. mark must already
// have the host's shape; see Adapt.
func Embed(host, mark *mat.Dense, alpha float64) (*mat.Dense, *SideInfo, error) {
	if err := CheckAlpha(alpha); err != nil {
		return nil, nil, err
	}
	rows, cols := host.Dims()
	if r, c := mark.Dims(); r != rows || c != cols {
		return nil, nil, fmt.Errorf("%w: host subband is %dx%d, watermark is %dx%d", pixel.ErrShapeMismatch, rows, cols, r, c)
	}

	h, err := svd.Decompose(host)
	if err != nil {
		return nil, nil, err
	}
	w, err := svd.Decompose(mark)
	if err != nil {
		return nil, nil, err
	}

	s := make([]float64, h.Rank())
	for i := range s {
		s[i] = h.S[i] + alpha*w.S[i]
	}
	return h.Compose(s), &SideInfo{
		S:     h.S,
		U:     w.U,
		V:     w.V,
		Rows:  rows,
		Cols:  cols,
		Alpha: alpha,
		sw:    w.S[:len(s)],
	}, nil
}

// Calibrate rebases S on marked, the subband read back from the rebuilt
// image, so that S = S'' - alpha*Sw. Extract then returns the watermark's
// singular values for that image exactly, whatever the inverse transform or
// pixel clipping did to the perturbation. Only side info returned by Embed
// can be calibrated.
func (s *SideInfo) Calibrate(marked *mat.Dense) error {
	if s.sw == nil {
		return fmt.Errorf("%w: side info carries no watermark singular values", ErrInvalidParameter)
	}
	rows, cols := marked.Dims()
	if rows != s.Rows || cols != s.Cols {
		return fmt.Errorf("%w: subband is %dx%d, side info expects %dx%d", pixel.ErrShapeMismatch, rows, cols, s.Rows, s.Cols)
	}
	m, err := svd.Decompose(marked)
	if err != nil {
		return err
	}
	calibrated := make([]float64, len(s.sw))
	for i := range calibrated {
		calibrated[i] = m.S[i] - s.Alpha*s.sw[i]
	}
	s.S = calibrated
	return nil
}

// Extract recovers the watermark from a subband produced by Embed. The
// estimate has the adapted shape and is clipped to the 8-bit range.
func Extract(marked *mat.Dense, side *SideInfo) (*mat.Dense, error) {
	if err := CheckAlpha(side.Alpha); err != nil {
		return nil, err
	}
	rows, cols := marked.Dims()
	if rows != side.Rows || cols != side.Cols {
		return nil, fmt.Errorf("%w: subband is %dx%d, side info expects %dx%d", pixel.ErrShapeMismatch, rows, cols, side.Rows, side.Cols)
	}
	k := min(rows, cols)
	ur, uc := side.U.Dims()
	vr, vc := side.V.Dims()
	if len(side.S) != k || ur != rows || vr != cols || uc != k || vc != k {
		return nil, fmt.Errorf("%w: side info factors do not fit a %dx%d subband", pixel.ErrShapeMismatch, rows, cols)
	}

	m, err := svd.Decompose(marked)
	if err != nil {
		return nil, err
	}
	sw := make([]float64, k)
	for i := range sw {
		sw[i] = (m.S[i] - side.S[i]) / side.Alpha
	}

	est := svd.Compose(side.U, sw, side.V)
	est.Apply(func(_, _ int, v float64) float64 {
		return pixel.Clamp(v)
	}, est)
	return est, nil
}
