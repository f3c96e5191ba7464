package output

import (
	"github.com/bryanchriswhite/drawfilter/internal/media"
)

// Output defines where processed frames go after the draw stage:
// - MJPEG HTTP preview
// - encoder / display sinks in other deployments
type Output interface {
	// Start initializes the output mechanism
	Start() error

	// Stop cleanly shuts down the output
	Stop() error

	// WriteFrame sends a processed frame to the output. The output must not
	// retain buf after returning.
	WriteFrame(buf *media.ImageBuffer) error

	// Name returns a human-readable name for this output type
	Name() string

	// IsRunning returns true if the output is currently active
	IsRunning() bool
}

// Config holds common configuration for all output types
type Config struct {
	Width       int
	Height      int
	FPS         int
	JPEGQuality int
}
