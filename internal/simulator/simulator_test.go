package simulator

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamStartsWithStartMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cam := DefaultCamera()
	cam.MissingRate = 0
	messages := Stream(ctx, cam, 1000)

	first := <-messages
	assert.Equal(t, "start", first.Type)
	assert.Equal(t, "simulator", first.Meta["source"])

	for i := 0; i < 5; i++ {
		msg := <-messages
		require.Equal(t, "image", msg.Type)
		assert.Equal(t, i, msg.Frame.ImageID)
		m, ok := msg.Frame.Matrix()
		require.True(t, ok)
		assert.Equal(t, float32(1), m.At(2, 2))
		assert.Equal(t, float32(0), m.At(1, 0))
	}

	cancel()
	for range messages {
	}
}

func TestStreamAllMissing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cam := DefaultCamera()
	cam.MissingRate = 1
	messages := Stream(ctx, cam, 1000)
	<-messages
	for i := 0; i < 5; i++ {
		msg := <-messages
		_, ok := msg.Frame.Matrix()
		assert.False(t, ok)
	}
}

func TestSampleNearModel(t *testing.T) {
	cam := DefaultCamera()
	m := cam.sample(rand.New(rand.NewSource(1)))
	assert.InDelta(t, cam.FocalLength, float64(m.At(0, 0)), 10*cam.Jitter)
	assert.Equal(t, m.At(0, 0), m.At(1, 1))
	assert.InDelta(t, 960, float64(m.At(0, 2)), 10*cam.Jitter)
	assert.InDelta(t, 540, float64(m.At(1, 2)), 10*cam.Jitter)
}
