package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"intrinsics-map-go/internal/config"
	"intrinsics-map-go/internal/display"
	"intrinsics-map-go/internal/ingest"
	"intrinsics-map-go/internal/output"
	"intrinsics-map-go/internal/server"
	"intrinsics-map-go/internal/simulator"
	"intrinsics-map-go/internal/types"
)

type metrics struct {
	rawMessages   atomic.Uint64
	imageMessages atomic.Uint64
	metaMessages  atomic.Uint64
	samples       atomic.Uint64
	skipped       atomic.Uint64
	sessions      atomic.Uint64
	summaryOK     atomic.Uint64
	summaryErr    atomic.Uint64
	processCount  atomic.Uint64
	processNanos  atomic.Uint64
}

func (m *metrics) snapshot() map[string]any {
	return map[string]any{
		"raw_messages_total":   m.rawMessages.Load(),
		"image_messages_total": m.imageMessages.Load(),
		"meta_messages_total":  m.metaMessages.Load(),
		"samples_total":        m.samples.Load(),
		"frames_skipped_total": m.skipped.Load(),
		"sessions_total":       m.sessions.Load(),
		"summary_write_ok":     m.summaryOK.Load(),
		"summary_write_err":    m.summaryErr.Load(),
		"process_total":        m.processCount.Load(),
		"process_nanos_total":  m.processNanos.Load(),
	}
}

func main() {
	def := config.Default()
	var (
		port           = flag.Int("port", def.Port, "HTTP port for the web UI")
		endpoint       = flag.String("endpoint", def.Endpoint, "ZMQ endpoint delivering frame messages")
		debug          = flag.Bool("debug", false, "Run with simulated intrinsics")
		debugFPS       = flag.Float64("debug-fps", def.DebugFPS, "Simulated frame rate (frames/sec)")
		debugMissing   = flag.Float64("debug-missing", def.DebugMissing, "Fraction of simulated frames without intrinsics")
		console        = flag.Bool("console", false, "Also print every rendered snapshot to the log")
		outputDir      = flag.String("output-dir", def.OutputDir, "Directory for session summaries")
		rawLogEnabled  = flag.Bool("raw-log", false, "Write raw CBOR messages to disk")
		rawLogDir      = flag.String("raw-log-dir", def.RawLogDir, "Directory for raw ingest logs")
		ingestLogEvery = flag.Int("ingest-log-every", def.IngestLogEvery, "Log every Nth ingest error")
		ingestFallback = flag.Bool("ingest-fallback", def.IngestFallback, "Fall back to simulator when ingest fails")
	)
	flag.Parse()

	cfg := config.AppConfig{
		Port:           *port,
		Endpoint:       *endpoint,
		Debug:          *debug,
		DebugFPS:       *debugFPS,
		DebugMissing:   *debugMissing,
		Console:        *console,
		OutputDir:      *outputDir,
		RawLogEnabled:  *rawLogEnabled,
		RawLogDir:      *rawLogDir,
		IngestLogEvery: *ingestLogEvery,
		IngestFallback: *ingestFallback,
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cam := simulator.DefaultCamera()
	cam.MissingRate = cfg.DebugMissing

	var rawMessages <-chan types.RawMessage
	if cfg.Debug {
		rawMessages = simulator.Stream(ctx, cam, cfg.DebugFPS)
	} else {
		var recorder ingest.RawRecorder
		if cfg.RawLogEnabled {
			writer, err := output.NewRawLogWriter(cfg.RawLogDir, "raw_cbor")
			if err != nil {
				log.Fatalf("failed to start raw log: %v", err)
			}
			log.Printf("recording raw messages to %s", writer.Path())
			recorder = writer
			go func() {
				<-ctx.Done()
				if err := writer.Close(); err != nil {
					log.Printf("raw log close failed: %v", err)
				}
			}()
		}
		rawMessages = superviseIngest(ctx, cfg, cam, recorder)
	}

	var m metrics
	mailbox := display.NewMailbox()

	tracker := newSessions(mailbox, cfg.OutputDir, &m, nil)

	renderers := display.Renderers{}
	statusFn := func() map[string]any {
		status := map[string]any{
			"source":  "stream",
			"metrics": m.snapshot(),
		}
		if cfg.Debug {
			status["source"] = "simulator"
		}
		metricsPayload := status["metrics"].(map[string]any)
		metricsPayload["ingest_decode_failures_total"] = ingest.DecodeFailures()
		decodeCount, decodeNanos := ingest.DecodeTiming()
		metricsPayload["ingest_decode_total"] = decodeCount
		metricsPayload["ingest_decode_nanos_total"] = decodeNanos
		metricsPayload["display"] = mailbox.Stats()

		if current := tracker.status(); current != nil {
			status["session"] = current
		}
		return status
	}
	snapshotFn := func() (types.DisplaySnapshot, bool) {
		return mailbox.Latest()
	}
	configFn := func() map[string]any {
		return map[string]any{
			"type":     "config",
			"endpoint": cfg.Endpoint,
			"debug":    cfg.Debug,
			"port":     cfg.Port,
		}
	}
	srv := server.New(cfg, statusFn, snapshotFn, configFn)
	renderers = append(renderers, srv)
	if cfg.Console {
		renderers = append(renderers, display.NewConsole(nil))
	}

	go mailbox.Run(ctx, renderers)

	framesDone := make(chan struct{})
	// Frame-delivery goroutine: the only caller of OnFrame.
	go func() {
		defer close(framesDone)
		defer tracker.end()
		for msg := range rawMessages {
			m.rawMessages.Add(1)
			switch msg.Type {
			case ingest.MessageStart:
				m.metaMessages.Add(1)
				id, _ := msg.Meta["session"].(string)
				tracker.start(id, msg.Meta)
			case ingest.MessageEnd:
				m.metaMessages.Add(1)
				tracker.end()
			case ingest.MessageImage:
				m.imageMessages.Add(1)
				if msg.Frame.Intrinsics == nil {
					m.skipped.Add(1)
				} else {
					m.samples.Add(1)
				}
				start := time.Now()
				tracker.frame(msg.Frame)
				m.processCount.Add(1)
				m.processNanos.Add(uint64(time.Since(start).Nanoseconds()))
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snapshot := m.snapshot()
				stats := mailbox.Stats()
				log.Printf("ingest stats: raw=%v image=%v samples=%v skipped=%v decode_failures=%v rendered=%d dropped=%d",
					snapshot["raw_messages_total"],
					snapshot["image_messages_total"],
					snapshot["samples_total"],
					snapshot["frames_skipped_total"],
					ingest.DecodeFailures(),
					stats.Rendered,
					stats.Dropped,
				)
			}
		}
	}()

	log.Printf("Starting web UI at http://localhost:%d\n", cfg.Port)
	if err := srv.Run(ctx); err != nil {
		log.Printf("server stopped: %v", err)
	}
	stop()
	<-framesDone
}

// superviseIngest keeps a ZMQ ingest stream running, restarting it when the
// stream closes and falling back to the simulator when it cannot start.
func superviseIngest(ctx context.Context, cfg config.AppConfig, cam simulator.Camera, recorder ingest.RawRecorder) <-chan types.RawMessage {
	out := make(chan types.RawMessage, 128)
	go func() {
		defer close(out)
		var ingestCancel context.CancelFunc
		var ingestCh <-chan types.RawMessage
		startIngest := func() {
			if ingestCancel != nil {
				ingestCancel()
			}
			ingestCtx, cancel := context.WithCancel(ctx)
			ingestCancel = cancel
			messages, err := ingest.StreamWithLogEveryAndRecorder(ingestCtx, cfg.Endpoint, cfg.IngestLogEvery, recorder)
			if err != nil {
				if !cfg.IngestFallback {
					log.Fatalf("failed to start ingest: %v", err)
				}
				log.Printf("failed to start ingest: %v; falling back to simulator", err)
				ingestCh = simulator.Stream(ingestCtx, cam, cfg.DebugFPS)
				return
			}
			log.Printf("ingesting from %s", cfg.Endpoint)
			ingestCh = messages
		}
		startIngest()
		for {
			select {
			case <-ctx.Done():
				if ingestCancel != nil {
					ingestCancel()
				}
				return
			case msg, ok := <-ingestCh:
				if !ok {
					if ctx.Err() != nil {
						return
					}
					time.Sleep(time.Second)
					startIngest()
					continue
				}
				select {
				case <-ctx.Done():
					return
				case out <- msg:
				}
			}
		}
	}()
	return out
}
