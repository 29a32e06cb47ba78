package yuv

// BT.601 analog YUV, the same weights OpenCV uses for COLOR_RGB2YUV.
// https://github.com/opencv/opencv/blob/0e88b49a53842f0f7cdc4c61b98c283be7e5057c/modules/imgproc/src/opencl/color_yuv.cl#L148-L234

const (
	yr = 0.299
	yg = 0.587
	yb = 0.114
	uf = 0.492
	vf = 0.877
)

// Luma returns the Y component of one RGB sample.
func Luma(r, g, b float64) float64 {
	return yr*r + yg*g + yb*b
}

// RGBToYUVBatch converts interleaved samples (stride channels, RGB first)
// into separate Y, U and V planes.
func RGBToYUVBatch(samples []float64, channels int, y, u, v []float64) {
	for i := range y {
		s := i * channels
		r, g, b := samples[s], samples[s+1], samples[s+2]

		yVal := Luma(r, g, b)
		y[i] = yVal
		u[i] = uf * (b - yVal)
		v[i] = vf * (r - yVal)
	}
}

// YUVToRGBBatch is the exact inverse of RGBToYUVBatch. Samples other than
// the first three of each pixel are left untouched. No clipping is applied.
func YUVToRGBBatch(y, u, v []float64, channels int, samples []float64) {
	for i := range y {
		yVal := y[i]
		b := yVal + u[i]/uf
		r := yVal + v[i]/vf
		g := (yVal - yr*r - yb*b) / yg

		s := i * channels
		samples[s] = r
		samples[s+1] = g
		samples[s+2] = b
	}
}
