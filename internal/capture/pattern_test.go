package capture

import (
	"context"
	"testing"
	"time"

	"github.com/bryanchriswhite/drawfilter/internal/config"
	"github.com/bryanchriswhite/drawfilter/internal/media"
)

func TestPatternProducesFrames(t *testing.T) {
	p := NewPattern(Config{Width: 32, Height: 16, FPS: 100})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	select {
	case frame := <-p.Frames():
		info := frame.Info()
		if info.Format != media.FormatNV12 || info.Width != 32 || info.Height != 16 {
			t.Errorf("frame info = %+v", info)
		}
		if frame.AtomicClock() <= 0 {
			t.Errorf("frame clock = %d", frame.AtomicClock())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame within 2s")
	}
}

func TestPatternStopClosesFrames(t *testing.T) {
	p := NewPattern(Config{Width: 16, Height: 16, FPS: 50})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Start(context.Background()); err == nil {
		t.Error("second Start succeeded")
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-p.Frames():
			if !ok {
				if err := p.Start(context.Background()); err == nil {
					t.Error("restart after Stop succeeded")
				}
				return
			}
		case <-deadline:
			t.Fatal("Frames not closed after Stop")
		}
	}
}

func TestPatternRejectsBadSize(t *testing.T) {
	p := NewPattern(Config{Width: 0, Height: 16})
	if err := p.Start(context.Background()); err == nil {
		t.Error("zero width accepted")
	}
}

func TestFillPattern(t *testing.T) {
	buf, err := media.AllocImageBuffer(media.ImageInfo{Format: media.FormatNV12, Width: 8, Height: 4}, 0)
	if err != nil {
		t.Fatal(err)
	}
	FillPattern(buf, 3)

	data := buf.Data()
	if data[0] != 16+3 || data[1] != 16+4 {
		t.Errorf("luma = %d %d", data[0], data[1])
	}
	for i := 8 * 4; i < len(data); i++ {
		if data[i] != 0x80 {
			t.Fatalf("chroma byte %d = %#x, want neutral", i, data[i])
		}
	}
}

func TestOpenPattern(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src, err := Open(ctx, config.SourceConfig{Kind: config.SourcePattern, Width: 16, Height: 16, FPS: 30})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Stop()
	if src.Name() != "test-pattern" {
		t.Errorf("Name() = %q", src.Name())
	}

	if _, err := Open(ctx, config.SourceConfig{Kind: "webcam", Width: 16, Height: 16}); err == nil {
		t.Error("unknown kind accepted")
	}
}

func TestGStreamerPipelineString(t *testing.T) {
	g := NewGStreamer(Config{Width: 640, Height: 360}, "")
	want := DefaultUpstream + " ! videoconvert ! videoscale ! " +
		"video/x-raw,format=NV12,width=640,height=360 ! " +
		"appsink name=sink emit-signals=false max-buffers=2 drop=true"
	if got := g.PipelineString(); got != want {
		t.Errorf("PipelineString() =\n%s\nwant\n%s", got, want)
	}
}
