package quantize

import (
	"github.com/chewxy/math32"
)

// DefaultRange is the activation magnitude assumed by an observer that has seen no data.
const DefaultRange float32 = 1.0

// MinMaxObserver tracks the running range of the activations flowing into a layer.
type MinMaxObserver struct {
	min, max float32
	seen     bool
}

// Observe folds values into the running range.
func (o *MinMaxObserver) Observe(values []float32) {
	for _, v := range values {
		if math32.IsNaN(v) {
			continue
		}
		if !o.seen {
			o.min, o.max, o.seen = v, v, true
			continue
		}
		o.min = math32.Min(o.min, v)
		o.max = math32.Max(o.max, v)
	}
}

// Seen reports whether any value has been observed.
func (o *MinMaxObserver) Seen() bool {
	return o.seen
}

// Range returns the observed range, or ±DefaultRange when nothing was observed.
func (o *MinMaxObserver) Range() (float32, float32) {
	if !o.seen {
		return -DefaultRange, DefaultRange
	}
	return o.min, o.max
}

// Scale returns the symmetric int8 scale covering the observed range.
func (o *MinMaxObserver) Scale() float32 {
	lo, hi := o.Range()
	return SymmetricScale(math32.Max(math32.Abs(lo), math32.Abs(hi)))
}
