package ingest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"

	"intrinsics-map-go/internal/types"
)

// RFC 8746 tags.
const (
	tagMultiDimArray = 40
	tagFloat32LE     = 85
	tagFloat64LE     = 86
)

var (
	errDimensionMismatch = errors.New("dimension mismatch")
	errNonFinite         = errors.New("non-finite element")
)

// decodeMatrix accepts a tag-40 typed array, a flat array of 9 numbers, or
// three rows of 3 numbers. A nil value means the frame had no intrinsics.
// NaN and infinite elements are rejected; one of them would poison the
// running average for the rest of the session.
func decodeMatrix(value any) (*types.Matrix3x3, error) {
	var (
		m   types.Matrix3x3
		err error
	)
	switch v := value.(type) {
	case nil:
		return nil, nil
	case cbor.Tag:
		m, err = decodeMultiDimArray(v)
	case []any:
		m, err = decodeNumberArray(v)
	default:
		return nil, fmt.Errorf("unsupported intrinsics type %T", value)
	}
	if err != nil {
		return nil, err
	}
	for i, f := range m {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return nil, fmt.Errorf("%w at index %d", errNonFinite, i)
		}
	}
	return &m, nil
}

func decodeMultiDimArray(tag cbor.Tag) (types.Matrix3x3, error) {
	if tag.Number != tagMultiDimArray {
		return types.Matrix3x3{}, fmt.Errorf("expected multidim tag 40, got %d", tag.Number)
	}

	items, ok := tag.Content.([]any)
	if !ok || len(items) != 2 {
		return types.Matrix3x3{}, fmt.Errorf("invalid multidim array content")
	}

	dimsRaw, ok := items[0].([]any)
	if !ok || len(dimsRaw) != 2 {
		return types.Matrix3x3{}, fmt.Errorf("invalid multidim dimensions")
	}
	rows, err := toInt(dimsRaw[0])
	if err != nil {
		return types.Matrix3x3{}, err
	}
	cols, err := toInt(dimsRaw[1])
	if err != nil {
		return types.Matrix3x3{}, err
	}
	if rows != 3 || cols != 3 {
		return types.Matrix3x3{}, fmt.Errorf("%w: want 3x3, got %dx%d", errDimensionMismatch, rows, cols)
	}

	flat, err := decodeTypedArray(items[1])
	if err != nil {
		return types.Matrix3x3{}, err
	}
	if len(flat) != 9 {
		return types.Matrix3x3{}, fmt.Errorf("%w: %d elements", errDimensionMismatch, len(flat))
	}
	var m types.Matrix3x3
	copy(m[:], flat)
	return m, nil
}

func decodeTypedArray(value any) ([]float32, error) {
	tag, ok := value.(cbor.Tag)
	if !ok {
		return nil, fmt.Errorf("expected typed array tag")
	}
	data, ok := tag.Content.([]byte)
	if !ok {
		return nil, fmt.Errorf("unsupported typed array content %T", tag.Content)
	}

	switch tag.Number {
	case tagFloat32LE:
		return bytesToFloat32(data), nil
	case tagFloat64LE:
		return narrow(bytesToFloat64(data)), nil
	default:
		return nil, fmt.Errorf("unsupported typed array tag %d", tag.Number)
	}
}

func decodeNumberArray(values []any) (types.Matrix3x3, error) {
	var flat []any
	switch len(values) {
	case 9:
		flat = values
	case 3:
		flat = make([]any, 0, 9)
		for _, row := range values {
			r, ok := row.([]any)
			if !ok || len(r) != 3 {
				return types.Matrix3x3{}, fmt.Errorf("%w: row is not 3 numbers", errDimensionMismatch)
			}
			flat = append(flat, r...)
		}
	default:
		return types.Matrix3x3{}, fmt.Errorf("%w: %d elements", errDimensionMismatch, len(values))
	}

	var m types.Matrix3x3
	for i, v := range flat {
		f, err := toFloat(v)
		if err != nil {
			return types.Matrix3x3{}, err
		}
		m[i] = float32(f)
	}
	return m, nil
}

func bytesToFloat32(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := 0; i < len(out); i++ {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out
}

func bytesToFloat64(data []byte) []float64 {
	out := make([]float64, len(data)/8)
	for i := 0; i < len(out); i++ {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		out[i] = math.Float64frombits(bits)
	}
	return out
}

func narrow(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}

// EncodeMatrix builds the tag-40 float32 representation used on the wire.
func EncodeMatrix(m types.Matrix3x3) cbor.Tag {
	data := make([]byte, 4*len(m))
	for i, v := range m {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return cbor.Tag{
		Number: tagMultiDimArray,
		Content: []any{
			[]any{3, 3},
			cbor.Tag{Number: tagFloat32LE, Content: data},
		},
	}
}
