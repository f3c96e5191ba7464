// Package pipeline moves frames from a capture source through the draw
// stage into an output.
package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/bryanchriswhite/drawfilter/internal/logger"
	"github.com/bryanchriswhite/drawfilter/internal/media"
)

// Source is the frame producer side of the pipeline
type Source interface {
	Frames() <-chan *media.ImageBuffer
	Name() string
}

// Stage processes one frame in place
type Stage interface {
	Process(in, out media.Buffer) (media.Buffer, error)
}

// Sink receives processed frames
type Sink interface {
	WriteFrame(buf *media.ImageBuffer) error
}

// Runner drives frames through the stage. A nil sink discards frames.
type Runner struct {
	source Source
	stage  Stage
	sink   Sink

	processed atomic.Uint64
	failed    atomic.Uint64
}

// NewRunner creates a runner
func NewRunner(source Source, stage Stage, sink Sink) *Runner {
	return &Runner{source: source, stage: stage, sink: sink}
}

// Processed returns how many frames went through the stage without error
func (r *Runner) Processed() uint64 { return r.processed.Load() }

// Failed returns how many frames the stage rejected
func (r *Runner) Failed() uint64 { return r.failed.Load() }

// Run blocks until ctx is done or the source closes its frame channel
func (r *Runner) Run(ctx context.Context) error {
	log := logger.WithComponent("pipeline")
	log.Info().Str("source", r.source.Name()).Msg("Pipeline running")

	frames := r.source.Frames()
	for {
		select {
		case <-ctx.Done():
			log.Info().Uint64("processed", r.processed.Load()).Msg("Pipeline stopped")
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				log.Info().Uint64("processed", r.processed.Load()).Msg("Source closed")
				return nil
			}
			r.handle(frame)
		}
	}
}

func (r *Runner) handle(frame *media.ImageBuffer) {
	out, err := r.stage.Process(frame, frame)
	if err != nil {
		// Only logged once per thousand to keep a misconfigured stage quiet
		if n := r.failed.Add(1); n%1000 == 1 {
			logger.WithComponent("pipeline").Error().Err(err).Uint64("failed", n).Msg("Stage rejected frame")
		}
		return
	}
	r.processed.Add(1)

	if r.sink == nil {
		return
	}
	img, ok := out.(*media.ImageBuffer)
	if !ok {
		return
	}
	if err := r.sink.WriteFrame(img); err != nil {
		logger.WithComponent("pipeline").Debug().Err(err).Msg("Output write failed")
	}
}
