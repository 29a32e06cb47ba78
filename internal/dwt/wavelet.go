package dwt

import (
	"fmt"
	"math"
	"slices"
)

// Wavelet is an orthogonal filter bank identified by name.
// Lo and Hi are the decomposition filters; reconstruction uses their reversal.
type Wavelet struct {
	Name string
	Lo   []float64
	Hi   []float64
}

// Len returns the filter length.
func (w Wavelet) Len() int {
	return len(w.Lo)
}

var (
	sqrt3 = math.Sqrt(3)
	haar  = []float64{1 / math.Sqrt2, 1 / math.Sqrt2}
	// Daubechies-4 taps in decomposition order.
	db2 = []float64{
		(1 - sqrt3) / (4 * math.Sqrt2),
		(3 - sqrt3) / (4 * math.Sqrt2),
		(3 + sqrt3) / (4 * math.Sqrt2),
		(1 + sqrt3) / (4 * math.Sqrt2),
	}
	db3 = []float64{
		0.03522629188570953,
		-0.08544127388202666,
		-0.13501102001025458,
		0.45987750211849154,
		0.8068915093110925,
		0.33267055295008263,
	}
	db4 = []float64{
		-0.010597401785069032,
		0.0328830116668852,
		0.030841381835560764,
		-0.18703481171909309,
		-0.027983769416859854,
		0.6308807679298589,
		0.7148465705529157,
		0.2303778133088965,
	}

	families = map[string][]float64{
		"haar": haar,
		"db1":  haar,
		"db2":  db2,
		"db3":  db3,
		"db4":  db4,
		"sym2": db2,
		"sym3": db3,
	}
)

// Lookup returns the wavelet registered under name.
func Lookup(name string) (Wavelet, error) {
	lo, ok := families[name]
	if !ok {
		return Wavelet{}, fmt.Errorf("%w: %q", ErrUnknownWavelet, name)
	}
	return Wavelet{Name: name, Lo: lo, Hi: quadratureMirror(lo)}, nil
}

// Names lists the supported wavelet names in sorted order.
func Names() []string {
	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// hi[k] = (-1)^(k+1) * lo[n-1-k]
func quadratureMirror(lo []float64) []float64 {
	n := len(lo)
	hi := make([]float64, n)
	for k := range n {
		v := lo[n-1-k]
		if k%2 == 0 {
			v = -v
		}
		hi[k] = v
	}
	return hi
}
