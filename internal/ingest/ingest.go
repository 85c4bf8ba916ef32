package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"

	"intrinsics-map-go/internal/types"
)

const (
	MessageStart = "start"
	MessageImage = "image"
	MessageEnd   = "end"
)

const recvTimeout = 250 * time.Millisecond

// RawRecorder receives every message exactly as it came off the socket.
type RawRecorder interface {
	Record(payload []byte) error
}

var (
	decodeFailures atomic.Uint64
	decodeCount    atomic.Uint64
	decodeNanos    atomic.Uint64
	logCounter     atomic.Uint64
)

var decMode = func() cbor.DecMode {
	mode, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// Stream returns a channel of decoded messages from a ZMQ PUSH endpoint.
// Messages are CBOR maps shaped like:
// { "type": "image", "image_id": <int>, "start_time": <float>, "intrinsics": <3x3 matrix or absent> }
func Stream(ctx context.Context, endpoint string) (<-chan types.RawMessage, error) {
	return StreamWithLogEveryAndRecorder(ctx, endpoint, 1, nil)
}

func StreamWithLogEveryAndRecorder(ctx context.Context, endpoint string, logEvery int, recorder RawRecorder) (<-chan types.RawMessage, error) {
	if logEvery < 1 {
		logEvery = 1
	}
	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return nil, fmt.Errorf("ingest: new socket: %w", err)
	}
	if err := socket.SetRcvtimeo(recvTimeout); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("ingest: set receive timeout: %w", err)
	}
	if err := socket.Connect(endpoint); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("ingest: connect %s: %w", endpoint, err)
	}

	out := make(chan types.RawMessage, 128)
	go func() {
		defer close(out)
		defer socket.Close()

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msg, err := socket.RecvBytes(0)
			if err != nil {
				if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
					continue
				}
				logEveryN(logEvery, "ingest recv error: %v", err)
				continue
			}
			if recorder != nil {
				if err := recorder.Record(msg); err != nil {
					logEveryN(logEvery, "ingest raw record error: %v", err)
				}
			}

			raw, ok := decodeMessage(msg, logEvery)
			if !ok {
				decodeFailures.Add(1)
				continue
			}

			select {
			case <-ctx.Done():
				return
			case out <- raw:
			}
		}
	}()

	return out, nil
}

// DecodeFailures is the number of messages dropped because they could not be decoded.
func DecodeFailures() uint64 {
	return decodeFailures.Load()
}

func DecodeTiming() (uint64, uint64) {
	return decodeCount.Load(), decodeNanos.Load()
}

// Decode parses one CBOR message. It is what the socket loop uses and is
// exported for offline tools.
func Decode(msg []byte) (types.RawMessage, error) {
	start := time.Now()
	defer func() {
		decodeCount.Add(1)
		decodeNanos.Add(uint64(time.Since(start).Nanoseconds()))
	}()

	var payload map[string]any
	if err := decMode.Unmarshal(msg, &payload); err != nil {
		return types.RawMessage{}, fmt.Errorf("CBOR decode: %w", err)
	}

	msgType, _ := payload["type"].(string)
	switch msgType {
	case MessageStart, MessageEnd:
		meta := make(map[string]any, len(payload))
		for k, v := range payload {
			if k == "type" {
				continue
			}
			meta[k] = v
		}
		return types.RawMessage{Type: msgType, Meta: meta}, nil
	case MessageImage:
	default:
		return types.RawMessage{}, fmt.Errorf("%w %q", errUnknownType, msgType)
	}

	imageID, err := toInt(payload["image_id"])
	if err != nil {
		return types.RawMessage{}, fmt.Errorf("invalid image_id: %w", err)
	}
	frame := types.FrameSample{ImageID: imageID}
	if v, ok := payload["start_time"]; ok {
		if frame.StartTime, err = toFloat(v); err != nil {
			return types.RawMessage{}, fmt.Errorf("invalid start_time: %w", err)
		}
	}
	if frame.Intrinsics, err = decodeMatrix(payload["intrinsics"]); err != nil {
		return types.RawMessage{}, fmt.Errorf("invalid intrinsics: %w", err)
	}
	return types.RawMessage{Type: MessageImage, Frame: frame}, nil
}

var errUnknownType = errors.New("unknown message type")

func decodeMessage(msg []byte, logEvery int) (types.RawMessage, bool) {
	raw, err := Decode(msg)
	if err != nil {
		logEveryN(logEvery, "ingest skipped message: %v", err)
		return types.RawMessage{}, false
	}
	return raw, true
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case uint32:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unsupported int type %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("unsupported float type %T", v)
	}
}

func logEveryN(n int, format string, args ...any) {
	if logCounter.Add(1)%uint64(n) == 0 {
		log.Printf(format, args...)
	}
}
