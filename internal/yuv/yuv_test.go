package yuv

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYUV_RoundTrip(t *testing.T) {
	for _, channels := range []int{3, 4} {
		rd := rand.New(rand.NewSource(int64(channels)))
		n := 64
		samples := make([]float64, n*channels)
		for i := range samples {
			samples[i] = float64(rd.Intn(256))
		}
		original := append([]float64(nil), samples...)

		y := make([]float64, n)
		u := make([]float64, n)
		v := make([]float64, n)
		RGBToYUVBatch(samples, channels, y, u, v)
		YUVToRGBBatch(y, u, v, channels, samples)

		for i := range samples {
			require.InDelta(t, original[i], samples[i], 1e-9, "channels=%d index=%d", channels, i)
		}
	}
}

func TestYUV_Luma(t *testing.T) {
	test := []struct {
		name    string
		r, g, b float64
		want    float64
	}{
		{"black", 0, 0, 0, 0},
		{"white", 255, 255, 255, 255},
		{"red", 255, 0, 0, 76.245},
		{"green", 0, 255, 0, 149.685},
		{"blue", 0, 0, 255, 29.07},
	}
	for _, tt := range test {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Luma(tt.r, tt.g, tt.b), 1e-9)
		})
	}
}

func TestYUV_GrayHasNoChroma(t *testing.T) {
	samples := []float64{10, 10, 10, 200, 200, 200}
	y := make([]float64, 2)
	u := make([]float64, 2)
	v := make([]float64, 2)
	RGBToYUVBatch(samples, 3, y, u, v)
	assert.InDeltaSlice(t, []float64{10, 200}, y, 1e-9)
	assert.InDeltaSlice(t, []float64{0, 0}, u, 1e-9)
	assert.InDeltaSlice(t, []float64{0, 0}, v, 1e-9)
}
