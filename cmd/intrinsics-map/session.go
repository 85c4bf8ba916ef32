package main

import (
	"log"
	"sync"
	"time"

	"intrinsics-map-go/internal/output"
	"intrinsics-map-go/internal/processing"
	"intrinsics-map-go/internal/types"
)

// session is one capture session: a pipeline plus the frames it has seen.
type session struct {
	pipeline *processing.Pipeline
	started  time.Time
	frames   uint64
	meta     map[string]any
}

// sessions owns the current capture session. start, end and frame run on the
// frame-delivery goroutine; status may be called from any goroutine.
type sessions struct {
	mu        sync.Mutex
	current   *session
	publisher processing.Publisher
	outputDir string
	metrics   *metrics
	logger    *log.Logger
}

func newSessions(publisher processing.Publisher, outputDir string, m *metrics, logger *log.Logger) *sessions {
	if logger == nil {
		logger = log.Default()
	}
	return &sessions{
		publisher: publisher,
		outputDir: outputDir,
		metrics:   m,
		logger:    logger,
	}
}

// start closes the current session, if any, and opens a new one. Invalid ids
// are replaced by a fresh uuid.
func (s *sessions) start(id string, meta map[string]any) {
	s.end()
	next := s.open(id, meta)
	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
}

// end closes the current session and returns the summary path, or "" when no
// summary was written.
func (s *sessions) end() string {
	s.mu.Lock()
	prev := s.current
	s.current = nil
	s.mu.Unlock()
	return s.finish(prev)
}

// frame folds sample into the current session, opening one if a frame arrives
// before any start message.
func (s *sessions) frame(sample types.FrameSample) {
	s.mu.Lock()
	if s.current == nil {
		s.current = s.open("", nil)
	}
	cur := s.current
	cur.frames++
	s.mu.Unlock()

	cur.pipeline.OnFrame(sample)
}

func (s *sessions) status() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return map[string]any{
		"id":      s.current.pipeline.Session(),
		"started": s.current.started.Format(time.RFC3339),
		"frames":  s.current.frames,
		"samples": s.current.pipeline.Accumulator().Count(),
		"meta":    output.NormalizeJSONValue(s.current.meta),
	}
}

func (s *sessions) open(id string, meta map[string]any) *session {
	next := &session{
		pipeline: processing.NewPipelineWithSession(id, s.publisher),
		started:  time.Now(),
		meta:     meta,
	}
	if id != "" && next.pipeline.Session() != id {
		s.logger.Printf("session id %q rejected; using %s", id, next.pipeline.Session())
	}
	s.metrics.sessions.Add(1)
	s.logger.Printf("session %s started", next.pipeline.Session())
	return next
}

func (s *sessions) finish(prev *session) string {
	if prev == nil {
		return ""
	}
	id := prev.pipeline.Session()
	count := prev.pipeline.Accumulator().Count()
	s.logger.Printf("session %s ended: frames=%d samples=%d duration=%s",
		id, prev.frames, count, time.Since(prev.started).Round(time.Millisecond))
	if count == 0 {
		if prev.frames > 0 {
			s.logger.Printf("session %s delivered no intrinsics; intrinsic matrix delivery may be unsupported by the source", id)
		}
		return ""
	}
	latest, ok := prev.pipeline.Latest()
	if !ok {
		return ""
	}
	path, err := output.WriteSummary(s.outputDir, output.Timestamp(), latest)
	if err != nil {
		s.metrics.summaryErr.Add(1)
		s.logger.Printf("summary write failed: %v", err)
		return ""
	}
	s.metrics.summaryOK.Add(1)
	s.logger.Printf("wrote session summary %s", path)
	return path
}
