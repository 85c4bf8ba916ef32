package processing

import (
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intrinsics-map-go/internal/types"
)

type recordingPublisher struct {
	mu        sync.Mutex
	snapshots []types.DisplaySnapshot
}

func (r *recordingPublisher) Publish(snapshot types.DisplaySnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, snapshot)
}

func (r *recordingPublisher) all() []types.DisplaySnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.DisplaySnapshot(nil), r.snapshots...)
}

func TestOnFrameSkipsAbsentSample(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewPipeline(pub)

	for i := 0; i < 10; i++ {
		p.OnFrame(types.FrameSample{ImageID: i})
	}

	assert.Empty(t, pub.all())
	assert.Equal(t, uint64(0), p.Accumulator().Count())
	assert.Equal(t, types.Matrix3x3{}, p.Accumulator().Sum())
}

func TestOnFrameIdentity(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewPipelineWithSession("session-a", pub)

	p.OnFrame(types.SampleOf(types.Identity()))

	want := []types.DisplaySnapshot{{
		Type:    "snapshot",
		Session: "session-a",
		Count:   1,
		Current: types.Identity(),
		Average: types.Identity(),
		Text: "Current:\n[1.0, 0.0, 0.0]\n[0.0, 1.0, 0.0]\n[0.0, 0.0, 1.0]" +
			"\n\nAverage:\n[1.0, 0.0, 0.0]\n[0.0, 1.0, 0.0]\n[0.0, 0.0, 1.0]",
	}}
	if diff := cmp.Diff(want, pub.all()); diff != "" {
		t.Fatalf("snapshots mismatch (-want +got):\n%s", diff)
	}
}

func TestOnFrameCurrentIsLatest(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewPipeline(pub)

	p.OnFrame(types.SampleOf(scaled(2)))
	p.OnFrame(types.SampleOf(scaled(4)))

	got := pub.all()
	require.Len(t, got, 2)
	assert.Equal(t, scaled(4), got[1].Current)
	assert.Equal(t, scaled(3), got[1].Average)
	assert.Equal(t, uint64(2), got[1].Count)
}

func TestOnFrameInterleaved(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewPipeline(pub)

	samples := []types.FrameSample{
		types.SampleOf(scaled(1)),
		{},
		types.SampleOf(scaled(2)),
		types.SampleOf(scaled(3)),
		{},
		types.SampleOf(scaled(4)),
		{},
		types.SampleOf(scaled(5)),
	}
	for _, s := range samples {
		p.OnFrame(s)
	}

	assert.Len(t, pub.all(), 5)
	assert.Equal(t, uint64(5), p.Accumulator().Count())
	avg, ok := p.Accumulator().CurrentAverage()
	require.True(t, ok)
	assert.Equal(t, scaled(3), avg)
}

func TestOnFrameWithoutPublisher(t *testing.T) {
	p := NewPipeline(nil)
	p.OnFrame(types.SampleOf(types.Identity()))
	assert.Equal(t, uint64(1), p.Accumulator().Count())
}

func TestNewPipelineAssignsSession(t *testing.T) {
	a := NewPipeline(nil)
	b := NewPipelineWithSession("", nil)
	assert.NotEmpty(t, a.Session())
	assert.NotEmpty(t, b.Session())
	assert.NotEqual(t, a.Session(), b.Session())
}

func TestFormat(t *testing.T) {
	m := types.Matrix3x3{
		1598.25, 0, 959.5,
		0, 1598.25, 539.75,
		0, 0, 1,
	}
	want := "[1598.2, 0.0, 959.5]\n[0.0, 1598.2, 539.8]\n[0.0, 0.0, 1.0]"
	assert.Equal(t, want, Format(m))
}

func TestFormatShape(t *testing.T) {
	line := regexp.MustCompile(`^\[-?\d+\.\d, -?\d+\.\d, -?\d+\.\d\]$`)
	m := types.Matrix3x3{-3.14159, 2.71828, 100, 0.05, -0.04, 7, 8.96, 9, 1e4}

	out := Format(m)
	assert.Equal(t, out, Format(m))
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	for _, l := range lines {
		assert.Regexp(t, line, l)
	}
	assert.Equal(t, "[-3.1, 2.7, 100.0]", lines[0])
	assert.Equal(t, "[9.0, 9.0, 10000.0]", lines[2])
}

func TestSnapshotText(t *testing.T) {
	text := SnapshotText(scaled(2), scaled(3))
	assert.True(t, strings.HasPrefix(text, "Current:\n[2.0, 0.0, 0.0]"))
	assert.Contains(t, text, "\n\nAverage:\n[3.0, 0.0, 0.0]")
	assert.Equal(t, 8, strings.Count(text, "\n"))
}

func TestNewPipelineRejectsUnsafeSession(t *testing.T) {
	for _, id := range []string{"x/../../etc/cron.d/pwn", "a/b", `a\b`, "..", ".", strings.Repeat("a", 129)} {
		p := NewPipelineWithSession(id, nil)
		assert.NotEqual(t, id, p.Session(), "session %q", id)
		assert.True(t, ValidSessionID(p.Session()))
	}
	assert.Equal(t, "cam-01_2026.10.18", NewPipelineWithSession("cam-01_2026.10.18", nil).Session())
}

type closedPublisher struct{}

func (closedPublisher) Publish(types.DisplaySnapshot) {}

func TestPipelineLatestTracksEverySample(t *testing.T) {
	p := NewPipelineWithSession("s", closedPublisher{})
	_, ok := p.Latest()
	assert.False(t, ok)

	p.OnFrame(types.SampleOf(scaled(2)))
	p.OnFrame(types.FrameSample{})
	p.OnFrame(types.SampleOf(scaled(4)))

	latest, ok := p.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(2), latest.Count)
	assert.Equal(t, scaled(3), latest.Average)
	assert.Equal(t, p.Accumulator().Count(), latest.Count)
}
