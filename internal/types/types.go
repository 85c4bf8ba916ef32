package types

import "gonum.org/v1/gonum/mat"

// Matrix3x3 is a camera intrinsic matrix in row-major order.
type Matrix3x3 [9]float32

// Identity returns the 3x3 identity matrix.
func Identity() Matrix3x3 {
	return Matrix3x3{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// At returns the element at row r, column c.
func (m Matrix3x3) At(r, c int) float32 {
	return m[r*3+c]
}

// Row returns row r as three values.
func (m Matrix3x3) Row(r int) [3]float32 {
	return [3]float32{m[r*3], m[r*3+1], m[r*3+2]}
}

// Dense converts the matrix to a gonum dense matrix.
func (m Matrix3x3) Dense() *mat.Dense {
	data := make([]float64, len(m))
	for i, v := range m {
		data[i] = float64(v)
	}
	return mat.NewDense(3, 3, data)
}

// FromDense narrows a 3x3 gonum matrix to single precision.
func FromDense(d mat.Matrix) (Matrix3x3, bool) {
	rows, cols := d.Dims()
	if rows != 3 || cols != 3 {
		return Matrix3x3{}, false
	}
	var m Matrix3x3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m[r*3+c] = float32(d.At(r, c))
		}
	}
	return m, true
}

// FrameSample is what the capture side delivers once per frame.
// Intrinsics is nil when the frame carried no calibration attachment.
type FrameSample struct {
	ImageID    int        `json:"image_id"`
	StartTime  float64    `json:"start_time"`
	Intrinsics *Matrix3x3 `json:"intrinsics,omitempty"`
}

// Matrix reports the attached intrinsics, if any.
func (f FrameSample) Matrix() (Matrix3x3, bool) {
	if f.Intrinsics == nil {
		return Matrix3x3{}, false
	}
	return *f.Intrinsics, true
}

// SampleOf wraps m as a present sample.
func SampleOf(m Matrix3x3) FrameSample {
	return FrameSample{Intrinsics: &m}
}
