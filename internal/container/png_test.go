package container_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yyyoichi/watermark_svd/internal/container"
	"github.com/yyyoichi/watermark_svd/internal/metadata"
)

func gray(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetGray(x, y, color.Gray{Y: uint8((x*7 + y*13) % 256)})
		}
	}
	return img
}

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestEncode_RoundTrip(t *testing.T) {
	img := gray(17, 9)
	var buf bytes.Buffer
	require.NoError(t, container.Encode(&buf, img, metadata.Keyword, "hello annotation"))

	text, err := container.Lookup(buf.Bytes(), metadata.Keyword)
	require.NoError(t, err)
	assert.Equal(t, "hello annotation", text)

	decoded, err := png.Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
	for y := range 9 {
		for x := range 17 {
			r1, _, _, _ := img.At(x, y).RGBA()
			r2, _, _, _ := decoded.At(x, y).RGBA()
			require.Equal(t, r1, r2)
		}
	}
}

func TestInsert_ReplacesSameKeyword(t *testing.T) {
	stream := encode(t, gray(4, 4))
	first, err := container.Insert(stream, "wm_meta", "one")
	require.NoError(t, err)
	first, err = container.Insert(first, "Comment", "kept")
	require.NoError(t, err)
	second, err := container.Insert(first, "wm_meta", "two")
	require.NoError(t, err)

	texts, err := container.Texts(second)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"wm_meta": "two", "Comment": "kept"}, texts)
	assert.True(t, bytes.HasSuffix(second, stream[len(stream)-12:]), "IEND stays last")
}

func TestLookup_NotFound(t *testing.T) {
	_, err := container.Lookup(encode(t, gray(4, 4)), metadata.Keyword)
	assert.ErrorIs(t, err, metadata.ErrMetadataNotFound)
}

func TestLookup_NotPNG(t *testing.T) {
	_, err := container.Lookup([]byte("GIF89a..."), metadata.Keyword)
	assert.ErrorIs(t, err, container.ErrNotPNG)

	stream := encode(t, gray(4, 4))
	_, err = container.Lookup(stream[:len(stream)-5], metadata.Keyword)
	assert.ErrorIs(t, err, container.ErrNotPNG)
}

func TestLookup_CorruptChunk(t *testing.T) {
	out, err := container.Insert(encode(t, gray(4, 4)), "wm_meta", "payload")
	require.NoError(t, err)
	i := bytes.Index(out, []byte("payload"))
	require.Positive(t, i)
	out[i] = 'P'
	_, err = container.Lookup(out, metadata.Keyword)
	assert.ErrorIs(t, err, metadata.ErrMetadataCorrupt)
}

func TestInsert_InvalidKeyword(t *testing.T) {
	stream := encode(t, gray(2, 2))
	for _, k := range []string{"", " lead", "trail ", "two  spaces", "tab\tkey", strings.Repeat("k", 80)} {
		_, err := container.Insert(stream, k, "x")
		assert.ErrorIs(t, err, container.ErrInvalidKeyword, "keyword %q", k)
	}
	_, err := container.Insert(stream, "wm_meta", "a\x00b")
	assert.ErrorIs(t, err, metadata.ErrMetadataCorrupt)
}

func TestCapacity(t *testing.T) {
	assert.Equal(t, metadata.MaxAnnotation, container.Capacity(metadata.Keyword))
}
