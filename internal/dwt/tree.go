package dwt

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/yyyoichi/watermark_svd/internal/pixel"
)

// Band labels one subband of a decomposition level.
type Band int

const (
	LL Band = iota // approximation, coarsest level only
	LH             // low-pass along x, high-pass along y
	HL             // high-pass along x, low-pass along y
	HH             // high-pass along both axes
)

func (b Band) String() string {
	switch b {
	case LL:
		return "LL"
	case LH:
		return "LH"
	case HL:
		return "HL"
	case HH:
		return "HH"
	}
	return fmt.Sprintf("Band(%d)", int(b))
}

// ParseBand accepts LL, LH, HL or HH in any case.
func ParseBand(s string) (Band, error) {
	switch strings.ToUpper(s) {
	case "LL":
		return LL, nil
	case "LH":
		return LH, nil
	case "HL":
		return HL, nil
	case "HH":
		return HH, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidBand, s)
}

// Detail holds the three detail subbands of one level.
type Detail struct {
	LH, HL, HH *mat.Dense
}

func (d Detail) get(b Band) *mat.Dense {
	switch b {
	case LH:
		return d.LH
	case HL:
		return d.HL
	case HH:
		return d.HH
	}
	return nil
}

// Tree is the result of one Forward call. Level 1 is the finest level and
// level Levels() the coarsest; the approximation belongs to the coarsest.
// Trees are never mutated in place; Replace returns a new tree.
type Tree struct {
	wavelet Wavelet
	approx  *mat.Dense
	details []Detail
	// input shape of each level, shapes[0] being the original matrix
	shapes [][2]int
}

func (t *Tree) Levels() int {
	return len(t.details)
}

func (t *Tree) Wavelet() Wavelet {
	return t.wavelet
}

// Select returns a copy of the subband at (level, band).
func (t *Tree) Select(level int, band Band) (*mat.Dense, error) {
	m, err := t.lookup(level, band)
	if err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(m), nil
}

// Replace returns a tree sharing every subband with t except (level, band),
// which is set to a copy of m. m must have the shape of the band it replaces.
func (t *Tree) Replace(level int, band Band, m mat.Matrix) (*Tree, error) {
	old, err := t.lookup(level, band)
	if err != nil {
		return nil, err
	}
	or, oc := old.Dims()
	if r, c := m.Dims(); r != or || c != oc {
		return nil, fmt.Errorf("%w: %s at level %d is %dx%d, got %dx%d", pixel.ErrShapeMismatch, band, level, or, oc, r, c)
	}

	next := &Tree{
		wavelet: t.wavelet,
		approx:  t.approx,
		details: make([]Detail, len(t.details)),
		shapes:  t.shapes,
	}
	_ = copy(next.details, t.details)
	cp := mat.DenseCopyOf(m)
	switch band {
	case LL:
		next.approx = cp
	case LH:
		next.details[level-1].LH = cp
	case HL:
		next.details[level-1].HL = cp
	case HH:
		next.details[level-1].HH = cp
	}
	return next, nil
}

func (t *Tree) lookup(level int, band Band) (*mat.Dense, error) {
	if level < 1 || level > len(t.details) {
		return nil, fmt.Errorf("%w: level %d outside 1..%d", ErrInvalidBand, level, len(t.details))
	}
	if band == LL {
		if level != len(t.details) {
			return nil, fmt.Errorf("%w: LL exists only at level %d", ErrInvalidBand, len(t.details))
		}
		return t.approx, nil
	}
	m := t.details[level-1].get(band)
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBand, band)
	}
	return m, nil
}
