package dwt_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/yyyoichi/watermark_svd/internal/dwt"
	"github.com/yyyoichi/watermark_svd/internal/pixel"
)

func texture(rows, cols int) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	for y := range rows {
		for x := range cols {
			v := 128 + 60*math.Sin(float64(x)/7) + 40*math.Cos(float64(y)/5) + float64((x*31+y*17)%23)
			m.Set(y, x, v)
		}
	}
	return m
}

func TestForward_Haar2x2(t *testing.T) {
	w, err := dwt.Lookup("haar")
	require.NoError(t, err)
	x := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	tree, err := dwt.Forward(x, w, 1)
	require.NoError(t, err)

	expected := map[dwt.Band]float64{dwt.LL: 5, dwt.LH: -2, dwt.HL: -1, dwt.HH: 0}
	for band, want := range expected {
		got, err := tree.Select(1, band)
		require.NoError(t, err)
		r, c := got.Dims()
		require.Equal(t, 1, r)
		require.Equal(t, 1, c)
		assert.InDelta(t, want, got.At(0, 0), 1e-12, band.String())
	}
}

func TestRoundTrip(t *testing.T) {
	test := []struct {
		rows, cols int
	}{
		{256, 256},
		{64, 48},
		{37, 53},
		{31, 31},
		{16, 17},
	}
	for _, name := range dwt.Names() {
		w, err := dwt.Lookup(name)
		require.NoError(t, err)
		for _, tt := range test {
			maxLevel := dwt.MaxLevel(min(tt.rows, tt.cols), w.Len())
			for level := 1; level <= min(maxLevel, 3); level++ {
				t.Run(fmt.Sprintf("%s/%dx%d/L%d", name, tt.rows, tt.cols, level), func(t *testing.T) {
					x := texture(tt.rows, tt.cols)
					tree, err := dwt.Forward(x, w, level)
					require.NoError(t, err)
					assert.Equal(t, level, tree.Levels())

					y, err := dwt.Inverse(tree)
					require.NoError(t, err)
					r, c := y.Dims()
					require.Equal(t, tt.rows, r)
					require.Equal(t, tt.cols, c)
					for i := range r {
						for j := range c {
							want := x.At(i, j)
							require.InDelta(t, want, y.At(i, j), dwt.RoundTripTolerance*math.Max(1, math.Abs(want)))
						}
					}
				})
			}
		}
	}
}

func TestBandShape(t *testing.T) {
	w, err := dwt.Lookup("db2")
	require.NoError(t, err)

	r, c := dwt.BandShape(256, 256, w, 1)
	assert.Equal(t, 129, r)
	assert.Equal(t, 129, c)
	r, c = dwt.BandShape(256, 256, w, 2)
	assert.Equal(t, 66, r)
	assert.Equal(t, 66, c)

	tree, err := dwt.Forward(texture(256, 256), w, 2)
	require.NoError(t, err)
	for _, band := range []dwt.Band{dwt.LL, dwt.LH, dwt.HL, dwt.HH} {
		m, err := tree.Select(2, band)
		require.NoError(t, err)
		r, c := m.Dims()
		assert.Equal(t, 66, r)
		assert.Equal(t, 66, c)
	}
	m, err := tree.Select(1, dwt.HL)
	require.NoError(t, err)
	r, c = m.Dims()
	assert.Equal(t, 129, r)
	assert.Equal(t, 129, c)
}

func TestMaxLevel(t *testing.T) {
	test := []struct {
		n, f, expected int
	}{
		{256, 2, 8},
		{256, 4, 6},
		{7, 2, 2},
		{5, 4, 0},
		{6, 4, 1},
		{1, 2, 0},
	}
	for _, tt := range test {
		assert.Equal(t, tt.expected, dwt.MaxLevel(tt.n, tt.f), "n=%d f=%d", tt.n, tt.f)
	}
}

func TestForward_InvalidLevel(t *testing.T) {
	w, err := dwt.Lookup("db2")
	require.NoError(t, err)
	x := texture(32, 32)

	for _, level := range []int{0, -1, dwt.MaxLevel(32, w.Len()) + 1} {
		_, err := dwt.Forward(x, w, level)
		assert.ErrorIs(t, err, dwt.ErrInvalidLevel, "level %d", level)
	}
}

func TestLookup(t *testing.T) {
	_, err := dwt.Lookup("coif99")
	assert.ErrorIs(t, err, dwt.ErrUnknownWavelet)

	for _, name := range dwt.Names() {
		w, err := dwt.Lookup(name)
		require.NoError(t, err)
		var norm, sum float64
		for _, v := range w.Lo {
			norm += v * v
			sum += v
		}
		assert.InDelta(t, 1, norm, 1e-9, name)
		assert.InDelta(t, math.Sqrt2, sum, 1e-9, name)
	}
}

func TestTree_Select(t *testing.T) {
	w, err := dwt.Lookup("db2")
	require.NoError(t, err)
	tree, err := dwt.Forward(texture(64, 64), w, 2)
	require.NoError(t, err)

	test := []struct {
		level int
		band  dwt.Band
		ok    bool
	}{
		{1, dwt.LH, true},
		{1, dwt.HL, true},
		{1, dwt.HH, true},
		{1, dwt.LL, false},
		{2, dwt.LL, true},
		{2, dwt.HH, true},
		{0, dwt.HL, false},
		{3, dwt.HL, false},
		{2, dwt.Band(9), false},
	}
	for _, tt := range test {
		t.Run(fmt.Sprintf("L%d/%s", tt.level, tt.band), func(t *testing.T) {
			m, err := tree.Select(tt.level, tt.band)
			if !tt.ok {
				assert.ErrorIs(t, err, dwt.ErrInvalidBand)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, m)
		})
	}
}

func TestTree_SelectReturnsCopy(t *testing.T) {
	w, err := dwt.Lookup("haar")
	require.NoError(t, err)
	tree, err := dwt.Forward(texture(16, 16), w, 1)
	require.NoError(t, err)

	m, err := tree.Select(1, dwt.HL)
	require.NoError(t, err)
	before := m.At(0, 0)
	m.Set(0, 0, before+100)

	again, err := tree.Select(1, dwt.HL)
	require.NoError(t, err)
	assert.Equal(t, before, again.At(0, 0))
}

func TestTree_Replace(t *testing.T) {
	w, err := dwt.Lookup("db2")
	require.NoError(t, err)
	x := texture(64, 64)
	tree, err := dwt.Forward(x, w, 2)
	require.NoError(t, err)

	hl, err := tree.Select(2, dwt.HL)
	require.NoError(t, err)
	r, c := hl.Dims()
	zero := mat.NewDense(r, c, nil)

	next, err := tree.Replace(2, dwt.HL, zero)
	require.NoError(t, err)

	got, err := next.Select(2, dwt.HL)
	require.NoError(t, err)
	assert.True(t, mat.Equal(zero, got))

	orig, err := tree.Select(2, dwt.HL)
	require.NoError(t, err)
	assert.True(t, mat.Equal(hl, orig))

	for _, band := range []dwt.Band{dwt.LH, dwt.HH, dwt.LL} {
		a, err := tree.Select(2, band)
		require.NoError(t, err)
		b, err := next.Select(2, band)
		require.NoError(t, err)
		assert.True(t, mat.Equal(a, b), band.String())
	}

	y, err := dwt.Inverse(next)
	require.NoError(t, err)
	assert.False(t, mat.EqualApprox(x, y, 1e-6))

	_, err = tree.Replace(2, dwt.HL, mat.NewDense(r+1, c, nil))
	assert.ErrorIs(t, err, pixel.ErrShapeMismatch)
	_, err = tree.Replace(1, dwt.LL, zero)
	assert.ErrorIs(t, err, dwt.ErrInvalidBand)
}

func TestParseBand(t *testing.T) {
	test := []struct {
		in       string
		expected dwt.Band
	}{
		{"LL", dwt.LL},
		{"lh", dwt.LH},
		{"HL", dwt.HL},
		{"hh", dwt.HH},
	}
	for _, tt := range test {
		b, err := dwt.ParseBand(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, b)
		assert.Equal(t, b, must(dwt.ParseBand(b.String())))
	}
	_, err := dwt.ParseBand("XY")
	assert.ErrorIs(t, err, dwt.ErrInvalidBand)
}

func must(b dwt.Band, err error) dwt.Band {
	if err != nil {
		panic(err)
	}
	return b
}
