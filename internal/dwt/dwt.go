// Package dwt implements a multi-level 2-D discrete wavelet transform with
// half-sample symmetric boundary extension.
//
// Each axis of length n yields floor((n+f-1)/2) coefficients for a filter of
// length f. The inverse reconstructs every level at the shape recorded by the
// forward pass, so odd sizes round trip exactly.
package dwt

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// RoundTripTolerance bounds the relative per-sample error of Inverse(Forward(x)).
const RoundTripTolerance = 1e-6

var (
	ErrInvalidLevel   = errors.New("invalid decomposition level")
	ErrInvalidBand    = errors.New("invalid subband")
	ErrUnknownWavelet = errors.New("unknown wavelet")
)

// CoeffLen returns the number of coefficients produced along an axis of length n.
func CoeffLen(n, filterLen int) int {
	return (n + filterLen - 1) / 2
}

// MaxLevel returns the deepest level an axis of length n supports: the largest
// L with (filterLen-1) * 2^L <= n. It is 0 when no level fits.
func MaxLevel(n, filterLen int) int {
	step := filterLen - 1
	if step < 1 {
		return 0
	}
	level := 0
	for step*2 <= n {
		step *= 2
		level++
	}
	return level
}

// Forward decomposes x into level levels.
func Forward(x *mat.Dense, w Wavelet, level int) (*Tree, error) {
	rows, cols := x.Dims()
	if maxLevel := MaxLevel(min(rows, cols), w.Len()); level < 1 || level > maxLevel {
		return nil, fmt.Errorf("%w: level %d for %dx%d with %s (max %d)", ErrInvalidLevel, level, rows, cols, w.Name, maxLevel)
	}

	t := &Tree{
		wavelet: w,
		details: make([]Detail, level),
		shapes:  make([][2]int, level),
	}
	data := flatten(x)
	for l := range level {
		t.shapes[l] = [2]int{rows, cols}
		ll, lh, hl, hh, r2, c2 := forward2D(data, rows, cols, w)
		t.details[l] = Detail{
			LH: mat.NewDense(r2, c2, lh),
			HL: mat.NewDense(r2, c2, hl),
			HH: mat.NewDense(r2, c2, hh),
		}
		data, rows, cols = ll, r2, c2
	}
	t.approx = mat.NewDense(rows, cols, data)
	return t, nil
}

// Inverse reconstructs the matrix t was produced from.
func Inverse(t *Tree) (*mat.Dense, error) {
	if t == nil || t.approx == nil || len(t.details) == 0 {
		return nil, fmt.Errorf("%w: empty tree", ErrInvalidLevel)
	}
	data := flatten(t.approx)
	for l := len(t.details) - 1; l >= 0; l-- {
		d := t.details[l]
		r2, c2 := d.LH.Dims()
		rows, cols := t.shapes[l][0], t.shapes[l][1]
		data = inverse2D(data, flatten(d.LH), flatten(d.HL), flatten(d.HH), r2, c2, rows, cols, t.wavelet)
	}
	rows, cols := t.shapes[0][0], t.shapes[0][1]
	return mat.NewDense(rows, cols, data), nil
}

// BandShape returns the subband shape at level for a rows x cols input
// without running the transform.
func BandShape(rows, cols int, w Wavelet, level int) (int, int) {
	for range level {
		rows, cols = CoeffLen(rows, w.Len()), CoeffLen(cols, w.Len())
	}
	return rows, cols
}

// forward2D filters along x (within each row) and then along y.
// lh is low-pass in x and high-pass in y; hl is the opposite.
func forward2D(data []float64, rows, cols int, w Wavelet) (ll, lh, hl, hh []float64, r2, c2 int) {
	f := w.Len()
	r2, c2 = CoeffLen(rows, f), CoeffLen(cols, f)

	loX := make([]float64, rows*c2)
	hiX := make([]float64, rows*c2)
	for y := range rows {
		analyze(data[y*cols:(y+1)*cols], w, loX[y*c2:(y+1)*c2], hiX[y*c2:(y+1)*c2])
	}

	ll = make([]float64, r2*c2)
	lh = make([]float64, r2*c2)
	hl = make([]float64, r2*c2)
	hh = make([]float64, r2*c2)
	col := make([]float64, rows)
	lo := make([]float64, r2)
	hi := make([]float64, r2)
	for x := range c2 {
		getColumn(loX, c2, x, col)
		analyze(col, w, lo, hi)
		setColumn(ll, c2, x, lo)
		setColumn(lh, c2, x, hi)

		getColumn(hiX, c2, x, col)
		analyze(col, w, lo, hi)
		setColumn(hl, c2, x, lo)
		setColumn(hh, c2, x, hi)
	}
	return
}

func inverse2D(ll, lh, hl, hh []float64, r2, c2, rows, cols int, w Wavelet) []float64 {
	loX := make([]float64, rows*c2)
	hiX := make([]float64, rows*c2)
	a := make([]float64, r2)
	d := make([]float64, r2)
	col := make([]float64, rows)
	for x := range c2 {
		getColumn(ll, c2, x, a)
		getColumn(lh, c2, x, d)
		synthesize(a, d, w, col)
		setColumn(loX, c2, x, col)

		getColumn(hl, c2, x, a)
		getColumn(hh, c2, x, d)
		synthesize(a, d, w, col)
		setColumn(hiX, c2, x, col)
	}

	out := make([]float64, rows*cols)
	for y := range rows {
		synthesize(loX[y*c2:(y+1)*c2], hiX[y*c2:(y+1)*c2], w, out[y*cols:(y+1)*cols])
	}
	return out
}

// analyze runs one decomposition step over src:
// a[i] = sum_j lo[j] * src[2i+1-j], d[i] likewise with hi.
func analyze(src []float64, w Wavelet, a, d []float64) {
	n := len(src)
	for i := range a {
		var sa, sd float64
		for j := range w.Len() {
			v := src[extend(2*i+1-j, n)]
			sa += w.Lo[j] * v
			sd += w.Hi[j] * v
		}
		a[i], d[i] = sa, sd
	}
}

// synthesize inverts analyze, writing len(out) samples. Sample n is taken
// from the full synthesis output at n+f-2, which drops the extension.
func synthesize(a, d []float64, w Wavelet, out []float64) {
	f := w.Len()
	for n := range out {
		m := n + f - 2
		var s float64
		for t := m % 2; t < f; t += 2 {
			k := (m - t) / 2
			if k < 0 || k >= len(a) {
				continue
			}
			s += a[k]*w.Lo[f-1-t] + d[k]*w.Hi[f-1-t]
		}
		out[n] = s
	}
}

// extend maps i onto [0, n) by half-sample symmetric reflection.
func extend(i, n int) int {
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		}
		if i >= n {
			i = 2*n - 1 - i
		}
	}
	return i
}

func getColumn(data []float64, stride, x int, col []float64) {
	for y := range col {
		col[y] = data[y*stride+x]
	}
}

func setColumn(data []float64, stride, x int, col []float64) {
	for y, v := range col {
		data[y*stride+x] = v
	}
}

// flatten copies m into a fresh row-major slice.
func flatten(m mat.Matrix) []float64 {
	rows, cols := m.Dims()
	out := make([]float64, rows*cols)
	for y := range rows {
		for x := range cols {
			out[y*cols+x] = m.At(y, x)
		}
	}
	return out
}
