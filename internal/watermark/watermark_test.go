package watermark_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/yyyoichi/watermark_svd/internal/metadata"
	"github.com/yyyoichi/watermark_svd/internal/pixel"
	"github.com/yyyoichi/watermark_svd/internal/quality"
	"github.com/yyyoichi/watermark_svd/internal/watermark"
)

func subband(rows, cols int) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	for y := range rows {
		for x := range cols {
			m.Set(y, x, 20*math.Sin(float64(x*y)/11)+float64((x*13+y*7)%17)-8)
		}
	}
	return m
}

func border(rows, cols, width int) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	for y := range rows {
		for x := range cols {
			if y < width || x < width || y >= rows-width || x >= cols-width {
				m.Set(y, x, 255)
			}
		}
	}
	return m
}

func nc(t *testing.T, a, b *mat.Dense) float64 {
	t.Helper()
	r, c := a.Dims()
	v, err := quality.NC(pixel.NewGray(r, c, a.RawMatrix().Data), pixel.NewGray(r, c, mat.DenseCopyOf(b).RawMatrix().Data))
	require.NoError(t, err)
	return v
}

func TestEmbedExtract(t *testing.T) {
	test := []struct {
		name       string
		rows, cols int
		alpha      float64
	}{
		{"square", 66, 66, 0.12},
		{"tall", 40, 24, 0.05},
		{"wide", 17, 33, 1.5},
	}
	for _, tt := range test {
		t.Run(tt.name, func(t *testing.T) {
			host := subband(tt.rows, tt.cols)
			mark := border(tt.rows, tt.cols, 3)

			marked, side, err := watermark.Embed(host, mark, tt.alpha)
			require.NoError(t, err)
			r, c := marked.Dims()
			assert.Equal(t, tt.rows, r)
			assert.Equal(t, tt.cols, c)
			assert.Equal(t, tt.rows, side.Rows)
			assert.Equal(t, tt.cols, side.Cols)
			assert.Len(t, side.S, min(tt.rows, tt.cols))
			assert.False(t, mat.EqualApprox(host, marked, 1e-9))

			est, err := watermark.Extract(marked, side)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, nc(t, mark, est), watermark.RecoveryThreshold)
			assert.True(t, mat.EqualApprox(mark, est, 1e-6))
		})
	}
}

func TestEmbed_InvalidAlpha(t *testing.T) {
	host := subband(8, 8)
	mark := border(8, 8, 1)
	for _, alpha := range []float64{0, -0.1, math.NaN(), math.Inf(1)} {
		_, _, err := watermark.Embed(host, mark, alpha)
		assert.ErrorIs(t, err, watermark.ErrInvalidParameter, "alpha %v", alpha)
	}
}

func TestEmbed_ShapeMismatch(t *testing.T) {
	_, _, err := watermark.Embed(subband(8, 8), border(8, 9, 1), 0.1)
	assert.ErrorIs(t, err, pixel.ErrShapeMismatch)

	marked, side, err := watermark.Embed(subband(8, 8), border(8, 8, 1), 0.1)
	require.NoError(t, err)
	_, err = watermark.Extract(marked.Slice(0, 7, 0, 8).(*mat.Dense), side)
	assert.ErrorIs(t, err, pixel.ErrShapeMismatch)
}

func TestSideInfo_Bag(t *testing.T) {
	_, side, err := watermark.Embed(subband(12, 10), border(12, 10, 2), 0.3)
	require.NoError(t, err)
	side.SourceRows, side.SourceCols = 64, 48

	text, err := metadata.NewCodec().Encode(side.Bag())
	require.NoError(t, err)
	bag, err := metadata.NewCodec().Decode(text)
	require.NoError(t, err)

	got, err := watermark.SideInfoFromBag(bag)
	require.NoError(t, err)
	assert.Equal(t, side.S, got.S)
	assert.True(t, mat.Equal(side.U, got.U))
	assert.True(t, mat.Equal(side.V, got.V))
	assert.Equal(t, 12, got.Rows)
	assert.Equal(t, 10, got.Cols)
	assert.Equal(t, 64, got.SourceRows)
	assert.Equal(t, 48, got.SourceCols)
	assert.Equal(t, 0.3, got.Alpha)

	delete(bag, "u_mark")
	_, err = watermark.SideInfoFromBag(bag)
	assert.ErrorIs(t, err, metadata.ErrMetadataCorrupt)

	bad := side.Bag()
	bad["alpha"] = 0.0
	_, err = watermark.SideInfoFromBag(bad)
	assert.ErrorIs(t, err, metadata.ErrMetadataCorrupt)
	assert.ErrorIs(t, err, watermark.ErrInvalidParameter)
}

func TestSideInfo_SourceShapeUnset(t *testing.T) {
	_, side, err := watermark.Embed(subband(12, 10), border(12, 10, 2), 0.3)
	require.NoError(t, err)
	assert.Zero(t, side.SourceRows)
	assert.Zero(t, side.SourceCols)

	bag := side.Bag()
	assert.NotContains(t, bag, "source_shape")
	got, err := watermark.SideInfoFromBag(bag)
	require.NoError(t, err)
	assert.Zero(t, got.SourceRows)
	assert.Zero(t, got.SourceCols)

	est := border(12, 10, 2)
	out := watermark.RestoreSize(est, got)
	assert.True(t, mat.Equal(est, out))

	bag["source_shape"] = []int{0, 4}
	_, err = watermark.SideInfoFromBag(bag)
	assert.ErrorIs(t, err, metadata.ErrMetadataCorrupt)
}

func TestSideInfo_Calibrate(t *testing.T) {
	test := []struct {
		name  string
		host  *mat.Dense
		alpha float64
	}{
		{"textured", subband(40, 36), 0.12},
		{"flat", mat.NewDense(40, 36, nil), 0.12},
		{"weak", subband(40, 36), 0.01},
	}
	for _, tt := range test {
		t.Run(tt.name, func(t *testing.T) {
			mark := border(40, 36, 3)
			marked, side, err := watermark.Embed(tt.host, mark, tt.alpha)
			require.NoError(t, err)

			// the subband a rebuilt image gives back differs from the embedded one
			readBack := mat.DenseCopyOf(marked)
			readBack.Apply(func(y, x int, v float64) float64 {
				return 0.9*v + 4*math.Cos(float64(x+2*y))
			}, readBack)

			require.NoError(t, side.Calibrate(readBack))
			est, err := watermark.Extract(readBack, side)
			require.NoError(t, err)
			assert.True(t, mat.EqualApprox(mark, est, 1e-6))
			assert.GreaterOrEqual(t, nc(t, mark, est), watermark.RecoveryThreshold)

			err = side.Calibrate(mat.NewDense(40, 35, nil))
			assert.ErrorIs(t, err, pixel.ErrShapeMismatch)
		})
	}

	_, side, err := watermark.Embed(subband(8, 8), border(8, 8, 1), 0.1)
	require.NoError(t, err)
	decoded, err := watermark.SideInfoFromBag(side.Bag())
	require.NoError(t, err)
	assert.ErrorIs(t, decoded.Calibrate(subband(8, 8)), watermark.ErrInvalidParameter)
}

func TestAdapt(t *testing.T) {
	mark := border(64, 64, 3)

	same := watermark.Adapt(mark, 64, 64)
	assert.True(t, mat.Equal(mark, same))
	same.Set(0, 0, 1)
	assert.Equal(t, 255.0, mark.At(0, 0))

	up := watermark.Adapt(mark, 66, 66)
	r, c := up.Dims()
	assert.Equal(t, 66, r)
	assert.Equal(t, 66, c)
	assert.InDelta(t, 255, up.At(0, 0), 1)
	assert.InDelta(t, 0, up.At(33, 33), 1)

	flat := mat.NewDense(5, 7, nil)
	flat.Apply(func(_, _ int, _ float64) float64 { return 100 }, flat)
	down := watermark.Adapt(flat, 3, 2)
	for y := range 3 {
		for x := range 2 {
			assert.InDelta(t, 100, down.At(y, x), 0.01)
		}
	}
}

func TestRestoreSize(t *testing.T) {
	est := border(66, 66, 3)
	out := watermark.RestoreSize(est, &watermark.SideInfo{SourceRows: 64, SourceCols: 32})
	r, c := out.Dims()
	assert.Equal(t, 64, r)
	assert.Equal(t, 32, c)
}

func TestImageSource(t *testing.T) {
	src := pixel.New(4, 5, 4)
	for i := range src.Data {
		src.Data[i] = float64((i * 37) % 256)
	}
	s := watermark.NewImageSource(src)
	out := s.Build(s.Luma())
	require.True(t, out.SameShape(src))
	for i := range src.Data {
		assert.InDelta(t, src.Data[i], out.Data[i], 1e-9)
	}
	for i := range src.Area() {
		assert.Equal(t, src.Data[i*4+3], out.Data[i*4+3], "alpha untouched")
	}

	gray := pixel.NewGray(2, 2, []float64{1, 2, 3, 4})
	l := watermark.LumaOf(gray)
	assert.Equal(t, []float64{1, 2, 3, 4}, l.RawMatrix().Data)
}
