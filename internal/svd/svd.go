// Package svd wraps the gonum thin singular value decomposition.
package svd

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var ErrFactorize = errors.New("cannot factorize")

// Factors holds A = U * diag(S) * V^T with S in non-increasing order.
// For an r x c matrix U is r x k, V is c x k and len(S) is k = min(r, c).
type Factors struct {
	U *mat.Dense
	S []float64
	V *mat.Dense
}

// Decompose factorizes a.
func Decompose(a mat.Matrix) (*Factors, error) {
	var result mat.SVD
	if ok := result.Factorize(a, mat.SVDThin); !ok {
		r, c := a.Dims()
		return nil, fmt.Errorf("%w: %dx%d", ErrFactorize, r, c)
	}

	var u, v mat.Dense
	result.UTo(&u)
	result.VTo(&v)
	return &Factors{
		U: &u,
		S: result.Values(nil),
		V: &v,
	}, nil
}

// Rank returns len(f.S).
func (f *Factors) Rank() int {
	return len(f.S)
}

// Compose rebuilds U * diag(s) * V^T. Missing trailing values of s are
// treated as zero and extra values are ignored.
func (f *Factors) Compose(s []float64) *mat.Dense {
	return Compose(f.U, s, f.V)
}

// Compose returns u * diag(s) * v^T.
func Compose(u *mat.Dense, s []float64, v *mat.Dense) *mat.Dense {
	_, k := u.Dims()
	sigma := mat.NewDiagDense(k, nil)
	for i := 0; i < k && i < len(s); i++ {
		sigma.SetDiag(i, s[i])
	}

	var us, res mat.Dense
	us.Mul(u, sigma)
	res.Mul(&us, v.T())
	return &res
}
