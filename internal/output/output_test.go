package output

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intrinsics-map-go/internal/types"
)

func TestRawLogRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewRawLogWriter(dir, "raw_cbor")
	require.NoError(t, err)

	require.NoError(t, w.Record([]byte("first")))
	require.NoError(t, w.Record([]byte{}))
	require.NoError(t, w.Record([]byte("third")))
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Record([]byte("late")), ErrRawLogClosed)
	assert.NoError(t, w.Close())

	f, err := os.Open(w.Path())
	require.NoError(t, err)
	defer f.Close()

	r, err := NewRawLogReader(f)
	require.NoError(t, err)
	var payloads []string
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.False(t, rec.Time.IsZero())
		payloads = append(payloads, string(rec.Payload))
	}
	assert.Equal(t, []string{"first", "", "third"}, payloads)
}

func TestRawLogReaderBadMagic(t *testing.T) {
	_, err := NewRawLogReader(bytes.NewReader([]byte("NOTMAGIC")))
	assert.Error(t, err)
}

func TestWriteSummary(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	snap := types.DisplaySnapshot{
		Session: "abc",
		Count:   3,
		Text:    "Current:\n[1.0, 0.0, 0.0]",
	}
	path, err := WriteSummary(dir, "20260101_000000", snap)
	require.NoError(t, err)
	assert.Equal(t, "20260101_000000_intrinsics_abc.txt", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "session: abc\nsamples: 3\n\nCurrent:"))
}

func TestWriteSummaryStaysInOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	for _, session := range []string{"x/../../../../etc/cron.d/pwn", `..\..\evil`, "", ".."} {
		path, err := WriteSummary(dir, "20261018_050000", types.DisplaySnapshot{Session: session, Count: 1})
		require.NoError(t, err, "session %q", session)
		assert.Equal(t, dir, filepath.Dir(path), "session %q", session)
		_, err = os.Stat(path)
		assert.NoError(t, err)
	}
}

func TestNormalizeJSONValue(t *testing.T) {
	in := map[any]any{
		uint64(1): []byte{1, 2},
		"tag":     cbor.Tag{Number: 40, Content: []any{uint64(3)}},
		"nested":  map[string]any{"x": 1.5},
	}
	out := NormalizeJSONValue(in)
	_, err := json.Marshal(out)
	require.NoError(t, err)

	m := out.(map[string]any)
	assert.Equal(t, "AQI=", m["1"])
	assert.Equal(t, map[string]any{"tag": uint64(40), "value": []any{uint64(3)}}, m["tag"])
	assert.Equal(t, map[string]any{"x": 1.5}, m["nested"])
}
