package simulator

import (
	"context"
	"math/rand"
	"time"

	"intrinsics-map-go/internal/types"
)

// Camera describes the pinhole model the simulator jitters around.
type Camera struct {
	FocalLength float64
	Width       int
	Height      int
	// Jitter is the standard deviation, in pixels, applied per frame.
	Jitter float64
	// MissingRate is the fraction of frames delivered without intrinsics.
	MissingRate float64
}

// DefaultCamera is roughly a 1080p phone wide-angle lens.
func DefaultCamera() Camera {
	return Camera{
		FocalLength: 1598.0,
		Width:       1920,
		Height:      1080,
		Jitter:      1.5,
		MissingRate: 0.1,
	}
}

// Stream emits a start message followed by image messages at fps until ctx is done.
func Stream(ctx context.Context, cam Camera, fps float64) <-chan types.RawMessage {
	out := make(chan types.RawMessage)
	go func() {
		defer close(out)

		if fps <= 0 {
			fps = 30
		}
		ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
		defer ticker.Stop()
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))

		start := types.RawMessage{
			Type: "start",
			Meta: map[string]any{
				"source": "simulator",
				"width":  cam.Width,
				"height": cam.Height,
			},
		}
		select {
		case <-ctx.Done():
			return
		case out <- start:
		}

		imageID := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				frame := types.FrameSample{
					ImageID:   imageID,
					StartTime: float64(time.Now().UnixNano()) / 1e9,
				}
				if rng.Float64() >= cam.MissingRate {
					m := cam.sample(rng)
					frame.Intrinsics = &m
				}
				select {
				case <-ctx.Done():
					return
				case out <- types.RawMessage{Type: "image", Frame: frame}:
				}
				imageID++
			}
		}
	}()
	return out
}

func (c Camera) sample(rng *rand.Rand) types.Matrix3x3 {
	f := c.FocalLength + rng.NormFloat64()*c.Jitter
	cx := float64(c.Width)/2 + rng.NormFloat64()*c.Jitter
	cy := float64(c.Height)/2 + rng.NormFloat64()*c.Jitter
	return types.Matrix3x3{
		float32(f), 0, float32(cx),
		0, float32(f), float32(cy),
		0, 0, 1,
	}
}
