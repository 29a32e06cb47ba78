package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yyyoichi/watermark_svd/internal/metadata"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestRun_EmbedExtractInspect(t *testing.T) {
	dir := t.TempDir()
	host := image.NewGray(image.Rect(0, 0, 96, 80))
	for y := range 80 {
		for x := range 96 {
			host.SetGray(x, y, color.Gray{Y: uint8(30 + (x*5+y*9)%190)})
		}
	}
	mark := image.NewGray(image.Rect(0, 0, 20, 20))
	for i := range 20 {
		mark.SetGray(i, i, color.Gray{Y: 255})
	}
	hostPath := filepath.Join(dir, "host.png")
	markPath := filepath.Join(dir, "mark.png")
	markedPath := filepath.Join(dir, "marked.png")
	estPath := filepath.Join(dir, "est.png")
	writePNG(t, hostPath, host)
	writePNG(t, markPath, mark)

	var out bytes.Buffer
	require.NoError(t, run([]string{"embed", "-host", hostPath, "-mark", markPath, "-out", markedPath, "-band", "hh"}, &out))
	assert.Contains(t, out.String(), "PSNR:")
	assert.Contains(t, out.String(), "subband: 22x26")

	out.Reset()
	require.NoError(t, run([]string{"extract", "-in", markedPath, "-out", estPath, "-restore"}, &out))
	assert.Contains(t, out.String(), "(20x20)")
	f, err := os.Open(estPath)
	require.NoError(t, err)
	est, err := png.Decode(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 20), est.Bounds())

	out.Reset()
	require.NoError(t, run([]string{"psnr", "-a", hostPath, "-b", markedPath}, &out))
	assert.Contains(t, out.String(), "NC: ")

	out.Reset()
	require.NoError(t, run([]string{"inspect", "-in", markedPath}, &out))
	var printed map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &printed))
	assert.Equal(t, "db2", printed["wavelet"])
	assert.Equal(t, "HH", printed["band"])
	assert.Contains(t, printed, "side_info")
}

func TestRun_Usage(t *testing.T) {
	var out bytes.Buffer
	assert.ErrorIs(t, run(nil, &out), errUsage)
	assert.ErrorIs(t, run([]string{"frobnicate"}, &out), errUsage)
	assert.ErrorIs(t, run([]string{"embed", "-host", "x.png"}, &out), errUsage)
	assert.ErrorIs(t, run([]string{"inspect"}, &out), errUsage)
}

func TestJSONable(t *testing.T) {
	v := jsonable(metadata.Bag{
		"psnr": math.Inf(1),
		"n":    3,
		"nested": metadata.Bag{
			"nan": math.NaN(),
		},
		"arr": metadata.Vector([]float64{1, math.Inf(-1)}),
	})
	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"psnr":"+Inf","n":3,"nested":{"nan":"NaN"},"arr":{"shape":[2],"data":[1,"-Inf"]}}`, string(data))
}
