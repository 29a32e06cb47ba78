package watermark

import (
	"fmt"

	"github.com/yyyoichi/watermark_svd/internal/dwt"
	"github.com/yyyoichi/watermark_svd/internal/metadata"
	"github.com/yyyoichi/watermark_svd/internal/watermark"
)

type params struct {
	wavelet            dwt.Wavelet
	level              int
	band               Band
	hostRows, hostCols int
	side               *watermark.SideInfo
}

// paramsFromMeta reads the extraction parameters written by Embed.
func paramsFromMeta(meta Bag) (*params, error) {
	if meta == nil {
		return nil, ErrMetadataNotFound
	}
	schema, err := meta.String(MetaSchema)
	if err != nil {
		return nil, err
	}
	if schema != metadata.Schema {
		return nil, fmt.Errorf("%w: unsupported schema %q", ErrMetadataCorrupt, schema)
	}

	var p params
	name, err := meta.String(MetaWavelet)
	if err != nil {
		return nil, err
	}
	if p.wavelet, err = dwt.Lookup(name); err != nil {
		return nil, fmt.Errorf("%w:%w", ErrInvalidParameter, err)
	}
	if p.level, err = meta.Int(MetaLevel); err != nil {
		return nil, err
	}
	band, err := meta.String(MetaBand)
	if err != nil {
		return nil, err
	}
	if p.band, err = dwt.ParseBand(band); err != nil {
		return nil, err
	}

	host, err := meta.Ints(MetaHostShape)
	if err != nil {
		return nil, err
	}
	if len(host) < 2 {
		return nil, fmt.Errorf("%w: %s is %v", ErrMetadataCorrupt, MetaHostShape, host)
	}
	p.hostRows, p.hostCols = host[0], host[1]

	sideBag, err := meta.Bag(MetaSideInfo)
	if err != nil {
		return nil, err
	}
	if p.side, err = watermark.SideInfoFromBag(sideBag); err != nil {
		return nil, err
	}

	alpha, err := meta.Float(MetaAlpha)
	if err != nil {
		return nil, err
	}
	if alpha != p.side.Alpha {
		return nil, fmt.Errorf("%w: %s %v disagrees with side info alpha %v", ErrMetadataCorrupt, MetaAlpha, alpha, p.side.Alpha)
	}

	sub, err := meta.Ints(MetaHostSubbandShape)
	if err != nil {
		return nil, err
	}
	if len(sub) != 2 || sub[0] != p.side.Rows || sub[1] != p.side.Cols {
		return nil, fmt.Errorf("%w: %s %v disagrees with side info %dx%d", ErrMetadataCorrupt, MetaHostSubbandShape, sub, p.side.Rows, p.side.Cols)
	}
	return &p, nil
}
