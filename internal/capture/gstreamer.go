package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/drawfilter/internal/logger"
	"github.com/bryanchriswhite/drawfilter/internal/media"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// DefaultUpstream is used when no source element chain is configured
const DefaultUpstream = "videotestsrc is-live=true pattern=ball"

// GStreamer pulls NV12 frames from a GStreamer pipeline through an appsink
type GStreamer struct {
	config   Config
	upstream string

	pipeline *gst.Pipeline
	appsink  *app.Sink
	mu       sync.RWMutex
	running  bool
	ready    bool
	stopChan chan struct{}
	done     chan struct{}

	frames  chan *media.ImageBuffer
	dropped atomic.Uint64
}

// NewGStreamer creates a source. upstream is the element chain in front of
// the conversion to NV12, for example "rtspsrc location=rtsp://cam ! decodebin".
func NewGStreamer(config Config, upstream string) *GStreamer {
	if upstream == "" {
		upstream = DefaultUpstream
	}
	if config.FPS <= 0 {
		config.FPS = 30
	}
	return &GStreamer{
		config:   config,
		upstream: upstream,
		frames:   make(chan *media.ImageBuffer, 2),
	}
}

// Name returns the source name
func (g *GStreamer) Name() string { return "gstreamer" }

// Frames returns the frame channel
func (g *GStreamer) Frames() <-chan *media.ImageBuffer { return g.frames }

// Dropped returns how many frames the consumer missed
func (g *GStreamer) Dropped() uint64 { return g.dropped.Load() }

// PipelineString returns the full gst-launch description
func (g *GStreamer) PipelineString() string {
	return fmt.Sprintf(
		"%s ! videoconvert ! videoscale ! "+
			"video/x-raw,format=NV12,width=%d,height=%d ! "+
			"appsink name=sink emit-signals=false max-buffers=2 drop=true",
		g.upstream, g.config.Width, g.config.Height,
	)
}

// Start initializes and starts the GStreamer pipeline
func (g *GStreamer) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return fmt.Errorf("pipeline already running")
	}

	log := logger.WithComponent("capture")

	gst.Init(nil)

	pipelineStr := g.PipelineString()
	log.Debug().Str("pipeline", pipelineStr).Msg("Creating GStreamer pipeline")

	pipeline, err := gst.NewPipelineFromString(pipelineStr)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	sinkElement, err := pipeline.GetElementByName("sink")
	if err != nil {
		pipeline.Unref()
		return fmt.Errorf("failed to get appsink: %w", err)
	}

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.Unref()
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	g.pipeline = pipeline
	g.appsink = app.SinkFromElement(sinkElement)
	g.running = true
	g.ready = true
	g.stopChan = make(chan struct{})
	g.done = make(chan struct{})

	// Polling instead of new-sample callbacks keeps cgo callbacks out of the hot path
	go g.pollSamples(ctx, g.stopChan, g.done)

	log.Info().Str("upstream", g.upstream).Msg("GStreamer pipeline started")
	return nil
}

// Stop stops the GStreamer pipeline and closes Frames
func (g *GStreamer) Stop() error {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return nil
	}
	g.ready = false
	g.running = false
	close(g.stopChan)
	done := g.done
	g.mu.Unlock()

	<-done

	g.mu.Lock()
	if g.pipeline != nil {
		g.pipeline.SetState(gst.StateNull)
		g.pipeline.Unref()
		g.pipeline = nil
	}
	g.appsink = nil
	g.mu.Unlock()

	logger.WithComponent("capture").Info().
		Uint64("dropped", g.dropped.Load()).
		Msg("GStreamer pipeline stopped")
	return nil
}

// pollSamples pulls samples until stopped
func (g *GStreamer) pollSamples(ctx context.Context, stop, done chan struct{}) {
	defer close(done)
	defer close(g.frames)

	interval := time.Second / time.Duration(2*g.config.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			g.mu.RLock()
			appsink := g.appsink
			ready := g.ready
			g.mu.RUnlock()

			if !ready || appsink == nil {
				continue
			}

			sample := appsink.TryPullSample(time.Millisecond)
			if sample == nil {
				continue
			}
			// go-gst releases the sample itself; Unref here double-frees
			frame, err := g.frameFromSample(sample)
			if err != nil {
				logger.WithComponent("capture").Debug().Err(err).Msg("Skipping sample")
				continue
			}
			if !offer(g.frames, frame) {
				g.dropped.Add(1)
			}
		}
	}
}

// frameFromSample copies the NV12 payload out of sample
func (g *GStreamer) frameFromSample(sample *gst.Sample) (*media.ImageBuffer, error) {
	clock := media.NowMicros()

	buffer := sample.GetBuffer()
	if buffer == nil {
		return nil, fmt.Errorf("sample without buffer")
	}
	caps := sample.GetCaps()
	if caps == nil {
		return nil, fmt.Errorf("sample without caps")
	}
	structure := caps.GetStructureAt(0)
	if structure == nil {
		return nil, fmt.Errorf("caps without structure")
	}

	width, _ := structure.GetValue("width")
	height, _ := structure.GetValue("height")
	w, ok := width.(int)
	if !ok {
		return nil, fmt.Errorf("caps width missing")
	}
	h, ok := height.(int)
	if !ok {
		return nil, fmt.Errorf("caps height missing")
	}

	mapInfo := buffer.Map(gst.MapRead)
	if mapInfo == nil {
		return nil, fmt.Errorf("failed to map buffer")
	}
	defer buffer.Unmap()

	info := media.ImageInfo{Format: media.FormatNV12, Width: w, Height: h}
	data := mapInfo.Bytes()
	if len(data) < info.Size() {
		return nil, fmt.Errorf("short nv12 buffer: %d < %d", len(data), info.Size())
	}
	pix := make([]byte, info.Size())
	copy(pix, data)

	return media.NewImageBuffer(info, pix, clock)
}
