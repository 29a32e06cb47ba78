package watermark

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/yyyoichi/watermark_svd/internal/metadata"
)

// side info keys
const (
	keySHost       = "s_host"
	keyUMark       = "u_mark"
	keyVMark       = "v_mark"
	keyMarkShape   = "mark_shape"
	keySourceShape = "source_shape"
	keyAlpha       = "alpha"
)

// Bag returns the side info as a metadata bag. source_shape is only written
// when known.
func (s *SideInfo) Bag() metadata.Bag {
	bag := metadata.Bag{
		keySHost:     metadata.Vector(s.S),
		keyUMark:     metadata.FromDense(s.U),
		keyVMark:     metadata.FromDense(s.V),
		keyMarkShape: []int{s.Rows, s.Cols},
		keyAlpha:     s.Alpha,
	}
	if s.SourceRows > 0 && s.SourceCols > 0 {
		bag[keySourceShape] = []int{s.SourceRows, s.SourceCols}
	}
	return bag
}

// SideInfoFromBag reverses (*SideInfo).Bag.
func SideInfoFromBag(bag metadata.Bag) (*SideInfo, error) {
	s := new(SideInfo)

	sHost, err := bag.Array(keySHost)
	if err != nil {
		return nil, err
	}
	if len(sHost.Shape) != 1 {
		return nil, fmt.Errorf("%w: %s has shape %v", metadata.ErrMetadataCorrupt, keySHost, sHost.Shape)
	}
	s.S = sHost.Data

	if s.U, err = dense(bag, keyUMark); err != nil {
		return nil, err
	}
	if s.V, err = dense(bag, keyVMark); err != nil {
		return nil, err
	}

	if s.Rows, s.Cols, err = shape(bag, keyMarkShape); err != nil {
		return nil, err
	}
	if _, ok := bag[keySourceShape]; ok {
		if s.SourceRows, s.SourceCols, err = shape(bag, keySourceShape); err != nil {
			return nil, err
		}
	}
	if s.Alpha, err = bag.Float(keyAlpha); err != nil {
		return nil, err
	}
	if err := CheckAlpha(s.Alpha); err != nil {
		return nil, fmt.Errorf("%w:%w", metadata.ErrMetadataCorrupt, err)
	}
	return s, nil
}

func dense(bag metadata.Bag, key string) (*mat.Dense, error) {
	a, err := bag.Array(key)
	if err != nil {
		return nil, err
	}
	return a.Dense()
}

func shape(bag metadata.Bag, key string) (int, int, error) {
	v, err := bag.Ints(key)
	if err != nil {
		return 0, 0, err
	}
	if len(v) != 2 || v[0] < 1 || v[1] < 1 {
		return 0, 0, fmt.Errorf("%w: %s is %v", metadata.ErrMetadataCorrupt, key, v)
	}
	return v[0], v[1], nil
}
