package ingest

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intrinsics-map-go/internal/types"
)

var sampleIntrinsics = types.Matrix3x3{
	1598.5, 0, 959.25,
	0, 1598.5, 539.75,
	0, 0, 1,
}

func TestDecodeMultiDimArrayFloat32(t *testing.T) {
	got, err := decodeMultiDimArray(EncodeMatrix(sampleIntrinsics))
	require.NoError(t, err)
	assert.Equal(t, sampleIntrinsics, got)
}

func TestDecodeMultiDimArrayFloat64(t *testing.T) {
	data := make([]byte, 8*9)
	for i, v := range sampleIntrinsics {
		binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(float64(v)))
	}
	value := cbor.Tag{
		Number: tagMultiDimArray,
		Content: []any{
			[]any{3, 3},
			cbor.Tag{Number: tagFloat64LE, Content: data},
		},
	}

	got, err := decodeMultiDimArray(value)
	require.NoError(t, err)
	assert.Equal(t, sampleIntrinsics, got)
}

func TestDecodeMultiDimArrayWrongShape(t *testing.T) {
	value := cbor.Tag{
		Number: tagMultiDimArray,
		Content: []any{
			[]any{2, 2},
			cbor.Tag{Number: tagFloat32LE, Content: make([]byte, 16)},
		},
	}
	_, err := decodeMultiDimArray(value)
	assert.True(t, errors.Is(err, errDimensionMismatch))
}

func TestDecodeMultiDimArrayUnsupportedTag(t *testing.T) {
	value := cbor.Tag{
		Number: tagMultiDimArray,
		Content: []any{
			[]any{3, 3},
			cbor.Tag{Number: 64, Content: make([]byte, 9)},
		},
	}
	_, err := decodeMultiDimArray(value)
	assert.Error(t, err)
}

func TestDecodeMatrixNumberArrays(t *testing.T) {
	flat := []any{1.5, 0, 2, 0, 1.5, 3, 0, 0, 1}
	m, err := decodeMatrix(flat)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, types.Matrix3x3{1.5, 0, 2, 0, 1.5, 3, 0, 0, 1}, *m)

	rows := []any{
		[]any{1.5, 0, 2},
		[]any{0, 1.5, 3},
		[]any{0, 0, 1},
	}
	m, err = decodeMatrix(rows)
	require.NoError(t, err)
	assert.Equal(t, types.Matrix3x3{1.5, 0, 2, 0, 1.5, 3, 0, 0, 1}, *m)

	_, err = decodeMatrix([]any{1, 2, 3, 4})
	assert.True(t, errors.Is(err, errDimensionMismatch))
}

func TestDecodeMatrixAbsent(t *testing.T) {
	m, err := decodeMatrix(nil)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestDecodeMatrixRejectsNonFinite(t *testing.T) {
	for _, bad := range []float32{float32(math.NaN()), float32(math.Inf(1)), float32(math.Inf(-1))} {
		m := sampleIntrinsics
		m[4] = bad
		_, err := decodeMatrix(EncodeMatrix(m))
		assert.True(t, errors.Is(err, errNonFinite), "value %v", bad)
	}

	// float64 values beyond float32 range narrow to infinity.
	data := make([]byte, 8*9)
	for i, v := range sampleIntrinsics {
		binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(float64(v)))
	}
	binary.LittleEndian.PutUint64(data[0:], math.Float64bits(1e300))
	_, err := decodeMatrix(cbor.Tag{
		Number: tagMultiDimArray,
		Content: []any{
			[]any{3, 3},
			cbor.Tag{Number: tagFloat64LE, Content: data},
		},
	})
	assert.True(t, errors.Is(err, errNonFinite))

	_, err = decodeMatrix([]any{math.NaN(), 0, 0, 0, 1, 0, 0, 0, 1})
	assert.True(t, errors.Is(err, errNonFinite))
}
