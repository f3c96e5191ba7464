package filter

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/bryanchriswhite/drawfilter/internal/config"
	"github.com/bryanchriswhite/drawfilter/internal/detection"
	"github.com/bryanchriswhite/drawfilter/internal/geometry"
	"github.com/bryanchriswhite/drawfilter/internal/media"
	"github.com/bryanchriswhite/drawfilter/internal/osd"
	"github.com/bryanchriswhite/drawfilter/internal/overlay"
)

const frameClock = 10_000_000

func newFrame(t *testing.T, clock int64) *media.ImageBuffer {
	t.Helper()
	buf, err := media.AllocImageBuffer(media.ImageInfo{Format: media.FormatNV12, Width: 64, Height: 48}, clock)
	if err != nil {
		t.Fatalf("AllocImageBuffer: %v", err)
	}
	for i := range buf.Data() {
		buf.Data()[i] = 0x10
	}
	return buf
}

func result(r geometry.Rect, ts int64) detection.Result {
	return detection.Result{Rect: r, Timestamp: ts}
}

func box() geometry.Rect {
	return geometry.Rect{Left: 16, Top: 16, Right: 48, Bottom: 40}
}

type captureSink struct {
	payloads [][]byte
}

func (c *captureSink) ChangeRegion(payload []byte) error {
	c.payloads = append(c.payloads, payload)
	return nil
}

type fakeSyncer struct {
	begins, ends int
	fail         bool
}

func (f *fakeSyncer) BeginCPUAccess(bool) error {
	f.begins++
	if f.fail {
		return errors.New("sync failed")
	}
	return nil
}

func (f *fakeSyncer) EndCPUAccess(bool) error {
	f.ends++
	return nil
}

func TestProcessEmptyQueueIsIdentity(t *testing.T) {
	s := New(config.DefaultFilter())
	frame := newFrame(t, frameClock)
	before := append([]byte(nil), frame.Data()...)

	for i := 0; i < 3; i++ {
		out, err := s.Process(frame, frame)
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		if out != media.Buffer(frame) {
			t.Fatal("Process returned a different buffer")
		}
	}
	if !bytes.Equal(frame.Data(), before) {
		t.Error("frame modified with no results queued")
	}
	if st := s.Stats(); st.Frames != 3 || st.Drawn != 0 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestProcessDrawsFreshBatch(t *testing.T) {
	s := New(config.DefaultFilter())
	frame := newFrame(t, frameClock)

	s.Push(detection.NewBatch([]detection.Result{result(box(), frameClock+50_000)}, 0))
	if _, err := s.Process(frame, frame); err != nil {
		t.Fatalf("Process: %v", err)
	}

	yPlane, _, _ := frame.Info().NV12Planes()
	if got := frame.Data()[yPlane.Index(16, 16)]; got != overlay.Red.Y {
		t.Errorf("outline pixel = %#x, want %#x", got, overlay.Red.Y)
	}
	if got := frame.Data()[yPlane.Index(30, 28)]; got != 0x10 {
		t.Errorf("interior pixel = %#x, want untouched", got)
	}
	if st := s.Stats(); st.Drawn != 1 {
		t.Errorf("Drawn = %d, want 1", st.Drawn)
	}

	// The batch is kept and redrawn on the next frame
	next := newFrame(t, frameClock+33_000)
	s.Process(next, next)
	if got := next.Data()[yPlane.Index(16, 16)]; got != overlay.Red.Y {
		t.Error("retained batch not drawn on following frame")
	}
}

func TestProcessDropsStaleBatch(t *testing.T) {
	tests := []struct {
		name   string
		offset int64
		stale  bool
	}{
		{"exactly at limit", 133_000, false},
		{"sub-millisecond past limit truncates", 133_999, false},
		{"past limit", 134_000, true},
		{"far in the past", -200_000, true},
		{"far in the future", 500_000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(config.DefaultFilter())
			frame := newFrame(t, frameClock)
			before := append([]byte(nil), frame.Data()...)

			s.Push(detection.NewBatch([]detection.Result{result(box(), frameClock+tt.offset)}, 0))
			if _, err := s.Process(frame, frame); err != nil {
				t.Fatalf("Process: %v", err)
			}

			modified := !bytes.Equal(frame.Data(), before)
			if modified == tt.stale {
				t.Errorf("modified = %v, want %v", modified, !tt.stale)
			}
			st := s.Stats()
			if tt.stale {
				if st.Stale != 1 || st.Queue.Pending != 0 {
					t.Errorf("stale batch not removed: %+v", st)
				}
			} else if st.Queue.Pending != 1 {
				t.Errorf("fresh batch removed: %+v", st)
			}
		})
	}
}

func TestProcessUsesNewestBatch(t *testing.T) {
	s := New(config.DefaultFilter())
	frame := newFrame(t, frameClock)

	s.Push(detection.NewBatch([]detection.Result{result(geometry.Rect{Left: 2, Top: 2, Right: 10, Bottom: 10}, frameClock)}, 0))
	s.Push(detection.NewBatch([]detection.Result{result(geometry.Rect{Left: 4, Top: 4, Right: 12, Bottom: 12}, frameClock)}, 0))
	s.Push(detection.NewBatch([]detection.Result{result(box(), frameClock)}, 0))

	s.Process(frame, frame)

	yPlane, _, _ := frame.Info().NV12Planes()
	if got := frame.Data()[yPlane.Index(2, 2)]; got != 0x10 {
		t.Error("superseded batch was drawn")
	}
	if got := frame.Data()[yPlane.Index(16, 16)]; got != overlay.Red.Y {
		t.Error("newest batch not drawn")
	}
	if st := s.Stats(); st.Queue.Pending != 1 || st.Queue.Evicted != 2 {
		t.Errorf("queue stats = %+v", st.Queue)
	}
}

func TestProcessEmptyBatchClearsOverlay(t *testing.T) {
	s := New(config.DefaultFilter())
	s.Push(detection.NewBatch([]detection.Result{result(box(), frameClock)}, 0))
	s.Push(detection.NewBatch(nil, frameClock))

	frame := newFrame(t, frameClock)
	before := append([]byte(nil), frame.Data()...)
	if _, err := s.Process(frame, frame); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !bytes.Equal(frame.Data(), before) {
		t.Error("empty batch still drew the previous boxes")
	}
}

func TestProcessInvalidArgument(t *testing.T) {
	s := New(config.DefaultFilter())
	frame := newFrame(t, frameClock)
	param := &media.ParameterBuffer{}

	if _, err := s.Process(param, frame); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("parameter input: err = %v, want ErrInvalidArgument", err)
	}
	if _, err := s.Process(frame, param); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("parameter output: err = %v, want ErrInvalidArgument", err)
	}
	if _, err := s.Process(nil, frame); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("nil input: err = %v, want ErrInvalidArgument", err)
	}
	if st := s.Stats(); st.Frames != 0 {
		t.Errorf("Frames = %d, want 0", st.Frames)
	}
}

func TestProcessUnsupportedFormat(t *testing.T) {
	s := New(config.DefaultFilter())
	buf, err := media.AllocImageBuffer(media.ImageInfo{Format: media.FormatRGB888, Width: 16, Height: 16}, frameClock)
	if err != nil {
		t.Fatal(err)
	}
	s.Push(detection.NewBatch([]detection.Result{result(geometry.Rect{Left: 1, Top: 1, Right: 8, Bottom: 8}, frameClock)}, 0))

	if _, err := s.Process(buf, buf); err != nil {
		t.Fatalf("Process: %v", err)
	}
	for i, b := range buf.Data() {
		if b != 0 {
			t.Fatalf("byte %d written on rgb frame", i)
		}
	}
	if st := s.Stats(); st.Unsupported != 1 {
		t.Errorf("Unsupported = %d, want 1", st.Unsupported)
	}
}

func TestProcessBracketsCPUAccess(t *testing.T) {
	s := New(config.DefaultFilter())
	sync := &fakeSyncer{}
	frame := newFrame(t, frameClock).WithSyncer(sync)

	s.Push(detection.NewBatch([]detection.Result{result(box(), frameClock)}, 0))
	s.Process(frame, frame)
	if sync.begins != 1 || sync.ends != 1 {
		t.Errorf("begin/end = %d/%d, want 1/1", sync.begins, sync.ends)
	}

	failing := &fakeSyncer{fail: true}
	other := newFrame(t, frameClock).WithSyncer(failing)
	before := append([]byte(nil), other.Data()...)
	if _, err := s.Process(other, other); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !bytes.Equal(other.Data(), before) {
		t.Error("frame drawn without cpu access")
	}
	if failing.ends != 0 {
		t.Error("EndCPUAccess reached syncer after failed begin")
	}
}

func TestHardwarePath(t *testing.T) {
	cfg := config.DefaultFilter()
	cfg.HardwareDraw = true
	s := New(cfg)
	sink := &captureSink{}
	if _, err := s.Control(SetSinkHandle{Sink: sink}); err != nil {
		t.Fatalf("SetSinkHandle: %v", err)
	}

	frame := newFrame(t, frameClock)
	before := append([]byte(nil), frame.Data()...)
	s.Push(detection.NewBatch([]detection.Result{
		result(geometry.Rect{Left: 16, Top: 16, Right: 48, Bottom: 48}, frameClock),
		result(geometry.Rect{Left: 64, Top: 32, Right: 96, Bottom: 64}, frameClock),
	}, 0))

	if _, err := s.Process(frame, frame); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !bytes.Equal(frame.Data(), before) {
		t.Error("hardware path modified the frame")
	}
	if len(sink.payloads) != 1 {
		t.Fatalf("sink payloads = %d, want 1", len(sink.payloads))
	}

	var region osd.Region
	if err := region.UnmarshalBinary(sink.payloads[0]); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if region.PosX != 16 || region.PosY != 16 || region.Width != 80 || region.Height != 48 || region.RegionID != 7 {
		t.Errorf("region = %+v", region)
	}
	if st := s.Stats(); st.Regions != 1 || !st.SinkBound {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestHardwareWithoutSinkFallsBackToSoftware(t *testing.T) {
	cfg := config.DefaultFilter()
	cfg.HardwareDraw = true
	s := New(cfg)

	frame := newFrame(t, frameClock)
	s.Push(detection.NewBatch([]detection.Result{result(box(), frameClock)}, 0))
	s.Process(frame, frame)

	yPlane, _, _ := frame.Info().NV12Planes()
	if got := frame.Data()[yPlane.Index(16, 16)]; got != overlay.Red.Y {
		t.Error("software fallback did not draw")
	}
}

func lastRegion(t *testing.T, sink *captureSink) osd.Region {
	t.Helper()
	if len(sink.payloads) == 0 {
		t.Fatal("sink never called")
	}
	var region osd.Region
	if err := region.UnmarshalBinary(sink.payloads[len(sink.payloads)-1]); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	return region
}

func TestHardwareUnalignableBatchHidesRegion(t *testing.T) {
	cfg := config.DefaultFilter()
	cfg.HardwareDraw = true
	s := New(cfg)
	sink := &captureSink{}
	s.SetSink(sink)

	frame := newFrame(t, frameClock)
	s.Push(detection.NewBatch([]detection.Result{result(geometry.Rect{Left: 1, Top: 1, Right: 14, Bottom: 14}, frameClock)}, 0))
	if _, err := s.Process(frame, frame); err != nil {
		t.Fatalf("Process: %v", err)
	}
	region := lastRegion(t, sink)
	if region.Enable || region.RegionID != 7 || len(region.Buffer) != 0 {
		t.Errorf("region = %+v, want disabled region 7", region)
	}
	if st := s.Stats(); st.Rejected != 0 {
		t.Errorf("Stats().Rejected = %d", st.Rejected)
	}
}

func TestHardwareEmptyBatchDisablesRegion(t *testing.T) {
	cfg := config.DefaultFilter()
	cfg.HardwareDraw = true
	s := New(cfg)
	sink := &captureSink{}
	s.SetSink(sink)

	frame := newFrame(t, frameClock)
	s.Push(detection.NewBatch([]detection.Result{result(box(), frameClock)}, 0))
	if _, err := s.Process(frame, frame); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if region := lastRegion(t, sink); !region.Enable {
		t.Fatalf("first region not enabled: %+v", region)
	}

	s.Push(detection.NewBatch(nil, frameClock))
	if _, err := s.Process(frame, frame); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(sink.payloads) != 2 {
		t.Fatalf("sink payloads = %d, want 2", len(sink.payloads))
	}
	region := lastRegion(t, sink)
	if region.Enable || region.RegionID != 7 {
		t.Errorf("region = %+v, want disabled region 7", region)
	}
}

func TestFailedConfiguration(t *testing.T) {
	cfg := config.DefaultFilter()
	cfg.RectThickness = 0
	s := New(cfg)
	if !errors.Is(s.Err(), ErrConfig) {
		t.Fatalf("Err() = %v, want ErrConfig", s.Err())
	}

	frame := newFrame(t, frameClock)
	for i := 0; i < 2; i++ {
		if _, err := s.Process(frame, frame); !errors.Is(err, ErrConfig) {
			t.Errorf("Process err = %v, want ErrConfig", err)
		}
	}

	bad := NewFromParams("draw_rect_thick=nope")
	if !errors.Is(bad.Err(), ErrConfig) {
		t.Errorf("NewFromParams Err() = %v, want ErrConfig", bad.Err())
	}
	if err := bad.ClearRegion(7); !errors.Is(err, ErrConfig) {
		t.Errorf("ClearRegion err = %v, want ErrConfig", err)
	}
}

func TestNewFromParams(t *testing.T) {
	s := NewFromParams("need_hw_draw=1\ndraw_rect_thick=3\nmax_result_age=50")
	if s.Err() != nil {
		t.Fatalf("Err() = %v", s.Err())
	}
	cfg := s.Config()
	if !cfg.HardwareDraw || cfg.RectThickness != 3 || cfg.MaxResultAge != 50*time.Millisecond {
		t.Errorf("Config() = %+v", cfg)
	}
}

func TestResultAge(t *testing.T) {
	if got := resultAge(1_000_000, 1_133_999); got != 133*time.Millisecond {
		t.Errorf("resultAge = %v, want 133ms", got)
	}
	if got := resultAge(2_000_000, 1_000_000); got != time.Second {
		t.Errorf("resultAge = %v, want 1s", got)
	}
}
