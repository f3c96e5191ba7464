package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/drawfilter/internal/logger"
	"github.com/bryanchriswhite/drawfilter/internal/media"
)

// Pattern generates a moving gradient in NV12 without any native
// dependency. It backs the default serve mode and tests.
type Pattern struct {
	config  Config
	frames  chan *media.ImageBuffer
	stop    chan struct{}
	done    chan struct{}
	mu      sync.Mutex
	running bool
	stopped bool

	seq     atomic.Uint64
	dropped atomic.Uint64
}

// NewPattern creates a pattern source
func NewPattern(config Config) *Pattern {
	if config.FPS <= 0 {
		config.FPS = 30
	}
	return &Pattern{
		config: config,
		frames: make(chan *media.ImageBuffer, 2),
	}
}

// Name returns the source name
func (p *Pattern) Name() string { return "test-pattern" }

// Frames returns the frame channel
func (p *Pattern) Frames() <-chan *media.ImageBuffer { return p.frames }

// Dropped returns how many frames the consumer missed
func (p *Pattern) Dropped() uint64 { return p.dropped.Load() }

// Start launches the generator goroutine
func (p *Pattern) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("pattern source already running")
	}
	if p.stopped {
		return fmt.Errorf("pattern source cannot be restarted")
	}
	if p.config.Width <= 0 || p.config.Height <= 0 {
		return fmt.Errorf("invalid pattern size %dx%d", p.config.Width, p.config.Height)
	}

	p.running = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(ctx, p.stop, p.done)

	logger.WithComponent("capture").Info().
		Int("width", p.config.Width).
		Int("height", p.config.Height).
		Int("fps", p.config.FPS).
		Msg("Test pattern source started")
	return nil
}

// Stop halts the generator and closes Frames
func (p *Pattern) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.stopped = true
	close(p.stop)
	done := p.done
	p.mu.Unlock()

	<-done
	return nil
}

func (p *Pattern) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)
	defer close(p.frames)

	ticker := time.NewTicker(time.Second / time.Duration(p.config.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			frame, err := p.Next()
			if err != nil {
				logger.WithComponent("capture").Error().Err(err).Msg("Pattern frame failed")
				return
			}
			if !offer(p.frames, frame) {
				p.dropped.Add(1)
			}
		}
	}
}

// Next renders one frame stamped with the current media clock
func (p *Pattern) Next() (*media.ImageBuffer, error) {
	info := media.ImageInfo{
		Format: media.FormatNV12,
		Width:  p.config.Width,
		Height: p.config.Height,
	}
	buf, err := media.AllocImageBuffer(info, media.NowMicros())
	if err != nil {
		return nil, err
	}
	FillPattern(buf, int(p.seq.Add(1)))
	return buf, nil
}

// FillPattern paints a diagonal luma gradient shifted by phase and neutral
// chroma.
func FillPattern(buf *media.ImageBuffer, phase int) {
	yPlane, uvPlane, err := buf.Info().NV12Planes()
	if err != nil {
		return
	}
	data := buf.Data()
	w, h := buf.Width(), buf.Height()
	for y := 0; y < h; y++ {
		row := yPlane.Index(0, y)
		for x := 0; x < w; x++ {
			data[row+x] = byte(16 + (x+y+phase)%220)
		}
	}
	for y := 0; y < (h+1)/2; y++ {
		row := uvPlane.Index(0, y)
		for x := 0; x < w; x++ {
			data[row+x] = 0x80
		}
	}
}
