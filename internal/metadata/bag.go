package metadata

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Bag is a string-keyed tree of metadata values. Supported value types are
// string, bool, int, float64, []int, Bag and *Array.
type Bag map[string]any

// Array is a dense n-dimensional float64 array stored in row-major order.
type Array struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// NewArray checks that shape matches len(data).
func NewArray(shape []int, data []float64) (*Array, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("%w: negative dimension %v", ErrMetadataCorrupt, shape)
		}
		n *= d
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: shape %v holds %d values, got %d", ErrMetadataCorrupt, shape, n, len(data))
	}
	return &Array{Shape: slices.Clone(shape), Data: slices.Clone(data)}, nil
}

// Vector wraps v as a 1-D array.
func Vector(v []float64) *Array {
	return &Array{Shape: []int{len(v)}, Data: slices.Clone(v)}
}

// FromDense copies m into a 2-D array.
func FromDense(m mat.Matrix) *Array {
	r, c := m.Dims()
	a := &Array{Shape: []int{r, c}, Data: make([]float64, r*c)}
	for i := range r {
		for j := range c {
			a.Data[i*c+j] = m.At(i, j)
		}
	}
	return a
}

// Dense returns a copy of a as a matrix. a must be 2-D and non-empty.
func (a *Array) Dense() (*mat.Dense, error) {
	if len(a.Shape) != 2 || a.Shape[0] == 0 || a.Shape[1] == 0 {
		return nil, fmt.Errorf("%w: want a non-empty 2-D array, got shape %v", ErrMetadataCorrupt, a.Shape)
	}
	return mat.NewDense(a.Shape[0], a.Shape[1], slices.Clone(a.Data)), nil
}

// Equal reports whether a and b have the same shape and bit-identical values.
func (a *Array) Equal(b *Array) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !slices.Equal(a.Shape, b.Shape) || len(a.Data) != len(b.Data) {
		return false
	}
	for i, v := range a.Data {
		if math.Float64bits(v) != math.Float64bits(b.Data[i]) {
			return false
		}
	}
	return true
}

// Equal reports whether a and b hold the same keys with values of the same
// type. Floats compare bit for bit.
func Equal(a, b Bag) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !equalValue(va, vb) {
			return false
		}
	}
	return true
}

func equalValue(a, b any) bool {
	switch va := a.(type) {
	case string:
		vb, ok := b.(string)
		return ok && va == vb
	case bool:
		vb, ok := b.(bool)
		return ok && va == vb
	case int:
		vb, ok := b.(int)
		return ok && va == vb
	case float64:
		vb, ok := b.(float64)
		return ok && math.Float64bits(va) == math.Float64bits(vb)
	case []int:
		vb, ok := b.([]int)
		return ok && slices.Equal(va, vb)
	case Bag:
		vb, ok := b.(Bag)
		return ok && Equal(va, vb)
	case *Array:
		vb, ok := b.(*Array)
		return ok && va.Equal(vb)
	}
	return false
}

func (b Bag) lookup(key string) (any, error) {
	v, ok := b[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing key %q", ErrMetadataCorrupt, key)
	}
	return v, nil
}

func typeError(key, want string, got any) error {
	return fmt.Errorf("%w: key %q holds %T, want %s", ErrMetadataCorrupt, key, got, want)
}

func (b Bag) String(key string) (string, error) {
	v, err := b.lookup(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", typeError(key, "string", v)
	}
	return s, nil
}

func (b Bag) Int(key string) (int, error) {
	v, err := b.lookup(key)
	if err != nil {
		return 0, err
	}
	i, ok := v.(int)
	if !ok {
		return 0, typeError(key, "int", v)
	}
	return i, nil
}

// Float accepts int values as well.
func (b Bag) Float(key string) (float64, error) {
	v, err := b.lookup(key)
	if err != nil {
		return 0, err
	}
	switch f := v.(type) {
	case float64:
		return f, nil
	case int:
		return float64(f), nil
	}
	return 0, typeError(key, "float64", v)
}

func (b Bag) Bool(key string) (bool, error) {
	v, err := b.lookup(key)
	if err != nil {
		return false, err
	}
	f, ok := v.(bool)
	if !ok {
		return false, typeError(key, "bool", v)
	}
	return f, nil
}

func (b Bag) Ints(key string) ([]int, error) {
	v, err := b.lookup(key)
	if err != nil {
		return nil, err
	}
	s, ok := v.([]int)
	if !ok {
		return nil, typeError(key, "[]int", v)
	}
	return s, nil
}

func (b Bag) Bag(key string) (Bag, error) {
	v, err := b.lookup(key)
	if err != nil {
		return nil, err
	}
	s, ok := v.(Bag)
	if !ok {
		return nil, typeError(key, "bag", v)
	}
	return s, nil
}

func (b Bag) Array(key string) (*Array, error) {
	v, err := b.lookup(key)
	if err != nil {
		return nil, err
	}
	s, ok := v.(*Array)
	if !ok || s == nil {
		return nil, typeError(key, "array", v)
	}
	return s, nil
}

// Keys returns the keys of b in sorted order.
func (b Bag) Keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
