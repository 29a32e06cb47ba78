package watermark

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"

	_ "golang.org/x/image/webp"

	"github.com/yyyoichi/watermark_svd/internal/container"
	"github.com/yyyoichi/watermark_svd/internal/metadata"
	"github.com/yyyoichi/watermark_svd/internal/pixel"
)

// MetaOption configures the metadata codec used by WritePNG and ReadPNG.
type MetaOption = metadata.Option

var (
	// WithMetaMaxSize caps the encoded metadata in bytes.
	WithMetaMaxSize = metadata.WithMaxSize
	// WithMetaCompression toggles zlib compression of the metadata payload.
	WithMetaCompression = metadata.WithCompression
)

// WritePNG encodes marked as PNG with meta in a tEXt chunk. Pixel samples
// are rounded to 8 bits.
func WritePNG(w io.Writer, marked *Pixels, meta Bag, opts ...MetaOption) error {
	if err := checkPixels("image", marked); err != nil {
		return err
	}
	text, err := EncodeMeta(meta, opts...)
	if err != nil {
		return err
	}
	return container.Encode(w, marked.Image(), metadata.Keyword, text)
}

// ReadPNG decodes a PNG written by WritePNG. A PNG without metadata reports
// ErrMetadataNotFound.
func ReadPNG(r io.Reader, opts ...MetaOption) (*Pixels, Bag, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	text, err := container.Lookup(data, metadata.Keyword)
	if err != nil {
		return nil, nil, err
	}
	meta, err := DecodeMeta(text, opts...)
	if err != nil {
		return nil, nil, err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%w:%w", container.ErrNotPNG, err)
	}
	return pixel.FromImage(img), meta, nil
}

// ReadImage decodes a PNG, JPEG, GIF or WebP image into pixels.
func ReadImage(r io.Reader) (*Pixels, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w:%w", ErrInvalidParameter, err)
	}
	return pixel.FromImage(img), nil
}

// EncodeMeta returns the printable annotation for meta. Values the codec
// cannot hold report ErrInvalidParameter.
func EncodeMeta(meta Bag, opts ...MetaOption) (string, error) {
	text, err := metadata.NewCodec(opts...).Encode(meta)
	if errors.Is(err, metadata.ErrUnsupportedValue) {
		return "", fmt.Errorf("%w:%w", ErrInvalidParameter, err)
	}
	return text, err
}

// DecodeMeta parses an annotation produced by EncodeMeta.
func DecodeMeta(text string, opts ...MetaOption) (Bag, error) {
	return metadata.NewCodec(opts...).Decode(text)
}
