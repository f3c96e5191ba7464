package filter

import (
	"errors"
	"testing"

	"github.com/bryanchriswhite/drawfilter/internal/config"
	"github.com/bryanchriswhite/drawfilter/internal/detection"
	"github.com/bryanchriswhite/drawfilter/internal/geometry"
	"github.com/bryanchriswhite/drawfilter/internal/osd"
)

type unknownCommand struct{ Command }

func TestControlSinkHandle(t *testing.T) {
	s := New(config.DefaultFilter())

	reply, err := s.Control(GetSinkHandle{})
	if err != nil || reply.Sink != nil {
		t.Fatalf("GetSinkHandle = (%v, %v), want no sink", reply.Sink, err)
	}

	sink := &captureSink{}
	if _, err := s.Control(SetSinkHandle{Sink: sink}); err != nil {
		t.Fatalf("SetSinkHandle: %v", err)
	}
	reply, _ = s.Control(GetSinkHandle{})
	if reply.Sink != osd.Sink(sink) {
		t.Error("GetSinkHandle did not return the attached sink")
	}

	s.Control(SetSinkHandle{})
	if reply, _ := s.Control(GetSinkHandle{}); reply.Sink != nil {
		t.Error("SetSinkHandle(nil) did not detach")
	}
}

func TestControlPushResultBatch(t *testing.T) {
	s := New(config.DefaultFilter())

	reply, err := s.Control(PushResultBatch{
		Results: []detection.Result{
			{Rect: geometry.Rect{Left: 1, Top: 1, Right: 9, Bottom: 9}},
			{Rect: geometry.Rect{Left: 2, Top: 2, Right: 8, Bottom: 8}, Timestamp: 777},
		},
		Timestamp: 5000,
	})
	if err != nil {
		t.Fatalf("PushResultBatch: %v", err)
	}
	if reply.BatchID == "" {
		t.Error("no batch id in reply")
	}

	b, ok := s.queue.Front()
	if !ok {
		t.Fatal("batch not queued")
	}
	if b.ID != reply.BatchID || b.Timestamp != 5000 {
		t.Errorf("queued batch = %s @ %d", b.ID, b.Timestamp)
	}
	if b.Results[0].Timestamp != 5000 || b.Results[1].Timestamp != 777 {
		t.Errorf("result timestamps = %d, %d", b.Results[0].Timestamp, b.Results[1].Timestamp)
	}
}

func TestControlPushExplicitZeroTimestamp(t *testing.T) {
	s := New(config.DefaultFilter())

	tests := []struct {
		name string
		cmd  PushResultBatch
		zero bool
	}{
		{"unset", PushResultBatch{Results: []detection.Result{{Rect: box()}}}, false},
		{"explicit zero", PushResultBatch{Results: []detection.Result{{Rect: box()}}, HasTimestamp: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Control(tt.cmd); err != nil {
				t.Fatalf("PushResultBatch: %v", err)
			}
			b, _, ok := s.queue.Latest()
			if !ok {
				t.Fatal("batch not queued")
			}
			if got := b.Timestamp == 0 && b.Results[0].Timestamp == 0; got != tt.zero {
				t.Errorf("batch @ %d, result @ %d, want zero=%v", b.Timestamp, b.Results[0].Timestamp, tt.zero)
			}
		})
	}
}

func TestControlPushEmptyUsesClock(t *testing.T) {
	s := New(config.DefaultFilter())
	if _, err := s.Control(PushResultBatch{}); err != nil {
		t.Fatalf("PushResultBatch: %v", err)
	}
	if st := s.Stats(); st.Queue.Pending != 1 {
		t.Errorf("Pending = %d, want 1", st.Queue.Pending)
	}
}

func TestControlClearRegion(t *testing.T) {
	s := New(config.DefaultFilter())
	if _, err := s.Control(ClearRegion{RegionID: 7}); err == nil {
		t.Error("ClearRegion without sink succeeded")
	}

	sink := &captureSink{}
	s.SetSink(sink)
	if _, err := s.Control(ClearRegion{RegionID: 7}); err != nil {
		t.Fatalf("ClearRegion: %v", err)
	}
	var r osd.Region
	if err := r.UnmarshalBinary(sink.payloads[0]); err != nil {
		t.Fatal(err)
	}
	if r.Enable || r.RegionID != 7 {
		t.Errorf("clear payload = %+v", r)
	}
}

func TestControlUnknown(t *testing.T) {
	s := New(config.DefaultFilter())
	if _, err := s.Control(unknownCommand{}); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("err = %v, want ErrUnknownCommand", err)
	}
	if _, err := s.Control(nil); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("nil command: err = %v, want ErrUnknownCommand", err)
	}
}
