package capture

import (
	"context"

	"github.com/bryanchriswhite/drawfilter/internal/media"
)

// Source defines the interface for frame producers feeding the draw stage
type Source interface {
	// Start begins producing frames until ctx is cancelled or Stop is called
	Start(ctx context.Context) error

	// Stop releases resources and closes the Frames channel
	Stop() error

	// Frames delivers captured NV12 frames stamped with media.NowMicros.
	// Slow consumers miss frames; the channel never blocks the producer.
	Frames() <-chan *media.ImageBuffer

	// Name returns a human-readable name for this source
	Name() string
}

// Config holds the frame geometry shared by all sources
type Config struct {
	Width  int
	Height int
	FPS    int
}

// offer hands frame to ch without blocking. It reports false when the
// consumer is behind and the frame was dropped.
func offer(ch chan *media.ImageBuffer, frame *media.ImageBuffer) bool {
	select {
	case ch <- frame:
		return true
	default:
		return false
	}
}
