package metadata

import (
	"encoding/binary"
	"fmt"
	"math"
)

// value tags of the payload encoding
const (
	tagString byte = iota + 1
	tagInt
	tagFloat
	tagBool
	tagBag
	tagArray
	tagInts
)

// nesting deeper than this is rejected on both sides
const maxDepth = 32

func encodeBag(dst []byte, bag Bag, depth int) ([]byte, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrUnsupportedValue, maxDepth)
	}
	dst = append(dst, tagBag)
	dst = binary.AppendUvarint(dst, uint64(len(bag)))
	for _, k := range bag.Keys() {
		dst = appendString(dst, k)
		var err error
		if dst, err = encodeValue(dst, k, bag[k], depth); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func encodeValue(dst []byte, key string, v any, depth int) ([]byte, error) {
	switch v := v.(type) {
	case string:
		dst = append(dst, tagString)
		return appendString(dst, v), nil
	case int:
		dst = append(dst, tagInt)
		return binary.AppendVarint(dst, int64(v)), nil
	case float64:
		dst = append(dst, tagFloat)
		return binary.BigEndian.AppendUint64(dst, math.Float64bits(v)), nil
	case bool:
		b := byte(0)
		if v {
			b = 1
		}
		return append(dst, tagBool, b), nil
	case []int:
		dst = append(dst, tagInts)
		dst = binary.AppendUvarint(dst, uint64(len(v)))
		for _, i := range v {
			dst = binary.AppendVarint(dst, int64(i))
		}
		return dst, nil
	case Bag:
		return encodeBag(dst, v, depth+1)
	case map[string]any:
		return encodeBag(dst, Bag(v), depth+1)
	case *Array:
		if v == nil {
			break
		}
		if _, err := NewArray(v.Shape, v.Data); err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrUnsupportedValue, key, err)
		}
		dst = append(dst, tagArray)
		dst = binary.AppendUvarint(dst, uint64(len(v.Shape)))
		for _, d := range v.Shape {
			dst = binary.AppendUvarint(dst, uint64(d))
		}
		for _, f := range v.Data {
			dst = binary.BigEndian.AppendUint64(dst, math.Float64bits(f))
		}
		return dst, nil
	}
	return nil, fmt.Errorf("%w: key %q has type %T", ErrUnsupportedValue, key, v)
}

func appendString(dst []byte, s string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) truncated() error {
	return fmt.Errorf("%w: truncated payload at byte %d", ErrMetadataCorrupt, d.pos)
}

func (d *decoder) readByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, d.truncated()
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) next(n int) ([]byte, error) {
	if n < 0 || n > len(d.buf)-d.pos {
		return nil, d.truncated()
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) uvarint() (uint64, error) {
	v, n := binary.Uvarint(d.buf[d.pos:])
	if n <= 0 {
		return 0, d.truncated()
	}
	d.pos += n
	return v, nil
}

func (d *decoder) varint() (int64, error) {
	v, n := binary.Varint(d.buf[d.pos:])
	if n <= 0 {
		return 0, d.truncated()
	}
	d.pos += n
	return v, nil
}

// count reads a length and checks that at least width bytes per element remain.
func (d *decoder) count(width int) (int, error) {
	v, err := d.uvarint()
	if err != nil {
		return 0, err
	}
	if v > uint64(len(d.buf)-d.pos)/uint64(width) {
		return 0, d.truncated()
	}
	return int(v), nil
}

func (d *decoder) readString() (string, error) {
	n, err := d.count(1)
	if err != nil {
		return "", err
	}
	b, err := d.next(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) readFloat() (float64, error) {
	b, err := d.next(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

func (d *decoder) value(depth int) (any, error) {
	tag, err := d.readByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagString:
		return d.readString()
	case tagInt:
		v, err := d.varint()
		if err != nil {
			return nil, err
		}
		if v < math.MinInt || v > math.MaxInt {
			return nil, fmt.Errorf("%w: integer %d overflows int", ErrMetadataCorrupt, v)
		}
		return int(v), nil
	case tagFloat:
		return d.readFloat()
	case tagBool:
		b, err := d.readByte()
		if err != nil {
			return nil, err
		}
		if b > 1 {
			return nil, fmt.Errorf("%w: bool byte %d", ErrMetadataCorrupt, b)
		}
		return b == 1, nil
	case tagInts:
		n, err := d.count(1)
		if err != nil {
			return nil, err
		}
		out := make([]int, n)
		for i := range out {
			v, err := d.varint()
			if err != nil {
				return nil, err
			}
			out[i] = int(v)
		}
		return out, nil
	case tagBag:
		return d.bag(depth)
	case tagArray:
		return d.array()
	}
	return nil, fmt.Errorf("%w: unknown tag %d at byte %d", ErrMetadataCorrupt, tag, d.pos-1)
}

func (d *decoder) bag(depth int) (Bag, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrMetadataCorrupt, maxDepth)
	}
	// every entry takes at least a key length, a tag and one value byte
	n, err := d.count(3)
	if err != nil {
		return nil, err
	}
	bag := make(Bag, n)
	for range n {
		k, err := d.readString()
		if err != nil {
			return nil, err
		}
		if _, dup := bag[k]; dup {
			return nil, fmt.Errorf("%w: duplicate key %q", ErrMetadataCorrupt, k)
		}
		v, err := d.value(depth + 1)
		if err != nil {
			return nil, err
		}
		bag[k] = v
	}
	return bag, nil
}

func (d *decoder) array() (*Array, error) {
	ndim, err := d.count(1)
	if err != nil {
		return nil, err
	}
	shape := make([]int, ndim)
	size := uint64(1)
	for i := range shape {
		v, err := d.uvarint()
		if err != nil {
			return nil, err
		}
		if v > uint64(len(d.buf)) {
			return nil, d.truncated()
		}
		size *= v
		if size > uint64(len(d.buf)) {
			return nil, d.truncated()
		}
		shape[i] = int(v)
	}
	if size*8 > uint64(len(d.buf)-d.pos) {
		return nil, d.truncated()
	}
	data := make([]float64, size)
	for i := range data {
		if data[i], err = d.readFloat(); err != nil {
			return nil, err
		}
	}
	return &Array{Shape: shape, Data: data}, nil
}
