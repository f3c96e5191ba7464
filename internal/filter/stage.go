// Package filter implements the draw stage: it overlays the freshest
// detection batch on every frame passing through a media pipeline.
package filter

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/drawfilter/internal/config"
	"github.com/bryanchriswhite/drawfilter/internal/detection"
	"github.com/bryanchriswhite/drawfilter/internal/logger"
	"github.com/bryanchriswhite/drawfilter/internal/media"
	"github.com/bryanchriswhite/drawfilter/internal/osd"
	"github.com/bryanchriswhite/drawfilter/internal/overlay"
	"github.com/rs/zerolog"
)

// Name is the stage name used in logs and the API.
const Name = "draw_filter"

var (
	// ErrInvalidArgument is returned when input or output is not an image.
	ErrInvalidArgument = errors.New("filter: invalid argument")

	// ErrConfig marks a stage that failed construction. It never recovers.
	ErrConfig = errors.New("filter: configuration error")
)

// Stage is the draw filter. Any number of goroutines may push results; a
// single goroutine is expected to call Process.
type Stage struct {
	cfg config.FilterConfig
	err error

	queue *detection.Queue
	sw    *overlay.Software
	hw    *overlay.Hardware

	// mu guards the sink handle
	mu   sync.Mutex
	sink osd.Sink

	frames      atomic.Uint64
	drawn       atomic.Uint64
	regions     atomic.Uint64
	stale       atomic.Uint64
	rejected    atomic.Uint64
	unsupported atomic.Uint64

	log *zerolog.Logger
}

// New creates a stage from cfg. An invalid cfg yields a stage whose every
// Process call fails with ErrConfig; check Err after construction.
func New(cfg config.FilterConfig) *Stage {
	s := &Stage{
		cfg:   cfg,
		queue: detection.NewQueue(detection.DefaultCapacity),
		log:   logger.WithComponent("filter"),
	}

	if err := cfg.Validate(); err != nil {
		s.err = fmt.Errorf("%w: %w", ErrConfig, err)
		s.log.Error().Err(err).Msg("draw filter configuration rejected")
		return s
	}

	s.sw = overlay.NewSoftware(cfg.RectThickness)
	s.hw = overlay.NewHardware(cfg.RectThickness)
	s.hw.RegionID = cfg.RegionID
	s.hw.PaletteIndex = byte(cfg.PaletteIndex)

	if cfg.AsyncDraw {
		s.log.Info().Msg("async draw requested; drawing synchronously in Process")
	}
	s.log.Info().
		Bool("hardware_draw", cfg.HardwareDraw).
		Int("rect_thickness", cfg.RectThickness).
		Dur("max_result_age", cfg.MaxResultAge).
		Msg("draw filter ready")
	return s
}

// NewFromParams creates a stage from a parameter string such as
// "need_hw_draw=1\ndraw_rect_thick=2".
func NewFromParams(param string) *Stage {
	cfg, err := config.ParseParams(param)
	if err != nil {
		s := &Stage{
			cfg:   cfg,
			queue: detection.NewQueue(detection.DefaultCapacity),
			log:   logger.WithComponent("filter"),
		}
		s.err = fmt.Errorf("%w: %w", ErrConfig, err)
		s.log.Error().Err(err).Str("params", param).Msg("draw filter parameters rejected")
		return s
	}
	return New(cfg)
}

// Err returns the construction error, if any.
func (s *Stage) Err() error { return s.err }

// Config returns the stage configuration.
func (s *Stage) Config() config.FilterConfig { return s.cfg }

// Process overlays the current detection batch on in and returns it as the
// output. The returned buffer is always in itself; on error it is
// untouched.
func (s *Stage) Process(in, out media.Buffer) (media.Buffer, error) {
	if s.err != nil {
		return in, s.err
	}
	src, ok := asImage(in)
	if !ok {
		return in, fmt.Errorf("%w: input is not an image buffer", ErrInvalidArgument)
	}
	if _, ok := asImage(out); !ok {
		return in, fmt.Errorf("%w: output is not an image buffer", ErrInvalidArgument)
	}
	out = in
	s.frames.Add(1)

	if s.queue.Len() == 0 {
		return out, nil
	}

	batch, evicted, ok := s.queue.Latest()
	if !ok {
		return out, nil
	}
	if evicted > 0 {
		s.log.Debug().Int("evicted", evicted).Msg("dropped older detection batches")
	}

	if age := resultAge(batch.Timestamp, src.AtomicClock()); age > s.cfg.MaxResultAge {
		s.queue.DropIf(batch.ID)
		s.stale.Add(1)
		s.log.Debug().
			Str("batch", batch.ID).
			Dur("age", age).
			Msg("detection batch too far from frame, discarded")
		return out, nil
	}

	if err := src.BeginCPUAccess(false); err != nil {
		s.log.Warn().Err(err).Msg("cpu access failed, frame passed through")
		return out, nil
	}
	defer func() {
		if err := src.EndCPUAccess(false); err != nil {
			s.log.Warn().Err(err).Msg("end cpu access failed")
		}
	}()

	if sink := s.Sink(); sink != nil && s.cfg.HardwareDraw {
		s.drawHardware(sink, batch)
	} else {
		s.drawSoftware(src, batch)
	}
	return out, nil
}

func (s *Stage) drawSoftware(buf *media.ImageBuffer, batch detection.Batch) {
	for _, r := range batch.Results {
		if err := s.sw.DrawRect(buf, r.Rect); err != nil {
			if errors.Is(err, overlay.ErrUnsupportedFormat) {
				s.unsupported.Add(1)
				return
			}
			s.rejected.Add(1)
			s.log.Warn().Err(err).Msg("software draw failed")
			return
		}
	}
	if len(batch.Results) > 0 {
		s.drawn.Add(1)
	}
}

func (s *Stage) drawHardware(sink osd.Sink, batch detection.Batch) {
	region, err := s.hw.Draw(sink, batch.Rects())
	switch {
	case errors.Is(err, overlay.ErrNoRegion):
		// Nothing to show: hide whatever the previous batch put up
		if err := s.hw.Disable(sink, s.cfg.RegionID); err != nil {
			s.rejected.Add(1)
			s.log.Warn().Err(err).Str("batch", batch.ID).Msg("osd region clear failed")
			return
		}
		s.log.Debug().Str("batch", batch.ID).Msg("no aligned rects, osd region hidden")
	case err != nil:
		s.rejected.Add(1)
		s.log.Warn().Err(err).Str("batch", batch.ID).Msg("osd region rejected")
	default:
		s.regions.Add(1)
		s.log.Trace().
			Int("x", region.PosX).
			Int("y", region.PosY).
			Int("w", region.Width).
			Int("h", region.Height).
			Msg("osd region sent")
	}
}

// Sink returns the attached OSD sink, or nil.
func (s *Stage) Sink() osd.Sink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink
}

// SetSink attaches sink; nil detaches.
func (s *Stage) SetSink(sink osd.Sink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

// Push enqueues a batch from the detector side.
func (s *Stage) Push(batch detection.Batch) {
	s.queue.Push(batch)
}

// ClearRegion hides regionID on the attached sink.
func (s *Stage) ClearRegion(regionID int) error {
	if s.err != nil {
		return s.err
	}
	return s.hw.Disable(s.Sink(), regionID)
}

// Stats returns a counter snapshot.
func (s *Stage) Stats() Stats {
	return Stats{
		Frames:      s.frames.Load(),
		Drawn:       s.drawn.Load(),
		Regions:     s.regions.Load(),
		Stale:       s.stale.Load(),
		Rejected:    s.rejected.Load(),
		Unsupported: s.unsupported.Load(),
		Queue:       s.queue.Stats(),
		SinkBound:   s.Sink() != nil,
	}
}

func asImage(b media.Buffer) (*media.ImageBuffer, bool) {
	if b == nil || b.Type() != media.TypeImage {
		return nil, false
	}
	img, ok := b.(*media.ImageBuffer)
	return img, ok && img != nil
}

// resultAge is |a-b| microseconds truncated to whole milliseconds.
func resultAge(a, b int64) time.Duration {
	d := a - b
	if d < 0 {
		d = -d
	}
	return (time.Duration(d) * time.Microsecond).Truncate(time.Millisecond)
}
