package quantize

import (
	"github.com/chewxy/math32"
)

// QMax is the largest magnitude of a symmetric int8 code.
const QMax = 127

// SymmetricScale maps a maximum absolute value onto the int8 range.
// A zero range yields scale 1 so that all-zero inputs stay exactly zero.
func SymmetricScale(maxAbs float32) float32 {
	if maxAbs <= 0 || math32.IsNaN(maxAbs) {
		return 1
	}
	return maxAbs / QMax
}

// MaxAbs returns the largest absolute value in values.
func MaxAbs(values []float32) float32 {
	var m float32
	for _, v := range values {
		m = math32.Max(m, math32.Abs(v))
	}
	return m
}

// QuantizeInto writes src/scale rounded half up, clamped to [-127, 127], into dst.
func QuantizeInto(dst []int8, src []float32, scale float32) {
	inv := 1 / scale
	for i, v := range src {
		q := math32.Floor(v*inv + 0.5)
		if q > QMax {
			q = QMax
		} else if q < -QMax {
			q = -QMax
		}
		dst[i] = int8(q)
	}
}

// QuantizeRows quantizes a row-major (rows, cols) matrix with one symmetric scale per row.
//
// Arguments:
//   - w: The float matrix.
//   - rows: The number of rows.
//   - cols: The number of columns.
//
// Returns:
//   - []int8: The quantized matrix.
//   - []float32: The scale of each row.
func QuantizeRows(w []float32, rows, cols int) ([]int8, []float32) {
	q := make([]int8, rows*cols)
	scales := make([]float32, rows)
	for r := 0; r < rows; r++ {
		row := w[r*cols : (r+1)*cols]
		scales[r] = SymmetricScale(MaxAbs(row))
		QuantizeInto(q[r*cols:(r+1)*cols], row, scales[r])
	}
	return q, scales
}

// Linear computes y = dequant(x·Wᵀ) + b with int32 accumulation.
//
// x is (n, in) with one scale per row, w is (out, in) with one scale per output channel and
// dst is (n, out).
func Linear(dst []float32, x []int8, xScales []float32, w []int8, wScales []float32, bias []float32, n, in, out int) {
	for i := 0; i < n; i++ {
		xr := x[i*in : (i+1)*in]
		for o := 0; o < out; o++ {
			wr := w[o*in : (o+1)*in]
			var acc int32
			for k, xv := range xr {
				acc += int32(xv) * int32(wr[k])
			}
			v := float32(acc) * xScales[i] * wScales[o]
			if bias != nil {
				v += bias[o]
			}
			dst[i*out+o] = v
		}
	}
}
