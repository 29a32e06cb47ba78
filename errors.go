package watermark

import (
	"github.com/yyyoichi/watermark_svd/internal/container"
	"github.com/yyyoichi/watermark_svd/internal/dwt"
	"github.com/yyyoichi/watermark_svd/internal/metadata"
	"github.com/yyyoichi/watermark_svd/internal/pixel"
	"github.com/yyyoichi/watermark_svd/internal/watermark"
)

var (
	ErrInvalidLevel     = dwt.ErrInvalidLevel
	ErrInvalidBand      = dwt.ErrInvalidBand
	ErrShapeMismatch    = pixel.ErrShapeMismatch
	ErrInvalidParameter = watermark.ErrInvalidParameter
	ErrMetadataNotFound = metadata.ErrMetadataNotFound
	ErrMetadataTooLarge = metadata.ErrMetadataTooLarge
	ErrMetadataCorrupt  = metadata.ErrMetadataCorrupt
	// ErrNotPNG is returned by ReadPNG for input that is not a PNG stream.
	ErrNotPNG           = container.ErrNotPNG
)
