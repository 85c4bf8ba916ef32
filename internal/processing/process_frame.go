package processing

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"intrinsics-map-go/internal/types"
)

// Publisher receives snapshots on the frame-delivery goroutine. Implementations
// must return without waiting for rendering.
type Publisher interface {
	Publish(snapshot types.DisplaySnapshot)
}

// FrameSink is anything that accepts per-frame samples from a capture source.
type FrameSink interface {
	OnFrame(sample types.FrameSample)
}

// Pipeline folds the intrinsics of each frame into an Accumulator and
// publishes the latest and average matrices. One Pipeline lives for one
// capture session.
type Pipeline struct {
	session   string
	acc       *Accumulator
	publisher Publisher

	mu     sync.Mutex
	latest *types.DisplaySnapshot
}

// Session ids end up in file names, so only a single plain path element is kept.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// ValidSessionID reports whether id can be used as a session id as-is.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id) && id != "." && id != ".."
}

func NewPipeline(publisher Publisher) *Pipeline {
	return NewPipelineWithSession(uuid.NewString(), publisher)
}

// NewPipelineWithSession uses session as the id when it is valid and a fresh
// uuid otherwise.
func NewPipelineWithSession(session string, publisher Publisher) *Pipeline {
	if !ValidSessionID(session) {
		session = uuid.NewString()
	}
	return &Pipeline{
		session:   session,
		acc:       NewAccumulator(),
		publisher: publisher,
	}
}

func (p *Pipeline) Session() string {
	return p.session
}

func (p *Pipeline) Accumulator() *Accumulator {
	return p.acc
}

// OnFrame handles one frame. Frames without intrinsics are skipped.
func (p *Pipeline) OnFrame(sample types.FrameSample) {
	current, ok := sample.Matrix()
	if !ok {
		return
	}
	average := p.acc.Update(current)
	snapshot := types.DisplaySnapshot{
		Type:    "snapshot",
		Session: p.session,
		Count:   p.acc.Count(),
		Current: current,
		Average: average,
		Text:    SnapshotText(current, average),
	}
	p.mu.Lock()
	p.latest = &snapshot
	p.mu.Unlock()
	if p.publisher != nil {
		p.publisher.Publish(snapshot)
	}
}

// Latest returns the snapshot built from the most recent sample, whether or
// not the publisher accepted it.
func (p *Pipeline) Latest() (types.DisplaySnapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil {
		return types.DisplaySnapshot{}, false
	}
	return *p.latest, true
}

// Format renders m as three "[a, b, c]" lines with one decimal digit.
func Format(m types.Matrix3x3) string {
	var b strings.Builder
	for r := 0; r < 3; r++ {
		if r > 0 {
			b.WriteByte('\n')
		}
		row := m.Row(r)
		fmt.Fprintf(&b, "[%.1f, %.1f, %.1f]", row[0], row[1], row[2])
	}
	return b.String()
}

// SnapshotText is the text shown by the display surface.
func SnapshotText(current, average types.Matrix3x3) string {
	return "Current:\n" + Format(current) + "\n\nAverage:\n" + Format(average)
}
