// Package media models the buffers a pipeline stage receives. Buffers are
// owned by the surrounding pipeline; stages only read metadata and may
// mutate pixel contents inside a CPU access bracket.
package media

import (
	"fmt"
	"sync"
	"time"
)

// Type identifies what a Buffer carries.
type Type int

const (
	TypeNone Type = iota
	TypeImage
	TypeAudio
	TypeParameter
)

func (t Type) String() string {
	switch t {
	case TypeImage:
		return "image"
	case TypeAudio:
		return "audio"
	case TypeParameter:
		return "parameter"
	default:
		return "none"
	}
}

// Buffer is anything that flows between stages.
type Buffer interface {
	Type() Type
}

// Syncer is implemented by hardware-backed memory that needs cache
// maintenance around CPU access.
type Syncer interface {
	BeginCPUAccess(readonly bool) error
	EndCPUAccess(readonly bool) error
}

// ImageBuffer is a raw frame plus its layout and capture clock.
type ImageBuffer struct {
	info   ImageInfo
	data   []byte
	clock  int64
	syncer Syncer

	accessMu sync.Mutex
	inAccess bool
}

// NewImageBuffer wraps data without copying. clock is the capture time in
// microseconds, in the same domain detection results are stamped with.
func NewImageBuffer(info ImageInfo, data []byte, clock int64) (*ImageBuffer, error) {
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", info.Width, info.Height)
	}
	if info.Stride() < info.Width || info.Rows() < info.Height {
		return nil, fmt.Errorf("stride %dx%d smaller than image %dx%d",
			info.Stride(), info.Rows(), info.Width, info.Height)
	}
	if info.Format == FormatNV12 && info.Stride()%2 != 0 {
		return nil, fmt.Errorf("nv12 stride must be even, got %d", info.Stride())
	}
	if need := info.Size(); need > 0 && len(data) < need {
		return nil, fmt.Errorf("image buffer too small for %s %dx%d: have %d bytes, need %d",
			info.Format, info.Width, info.Height, len(data), need)
	}
	return &ImageBuffer{info: info, data: data, clock: clock}, nil
}

// AllocImageBuffer allocates backing storage sized for info.
func AllocImageBuffer(info ImageInfo, clock int64) (*ImageBuffer, error) {
	size := info.Size()
	if size <= 0 {
		return nil, fmt.Errorf("cannot allocate %s %dx%d", info.Format, info.Width, info.Height)
	}
	return NewImageBuffer(info, make([]byte, size), clock)
}

// WithSyncer attaches cache maintenance hooks for hardware-backed memory.
func (b *ImageBuffer) WithSyncer(s Syncer) *ImageBuffer {
	b.syncer = s
	return b
}

// Type implements Buffer.
func (b *ImageBuffer) Type() Type { return TypeImage }

// Info returns the image layout.
func (b *ImageBuffer) Info() ImageInfo { return b.info }

// Width is the valid pixel width.
func (b *ImageBuffer) Width() int { return b.info.Width }

// Height is the valid pixel height.
func (b *ImageBuffer) Height() int { return b.info.Height }

// Data returns the backing storage. Writes are only allowed between
// BeginCPUAccess and EndCPUAccess.
func (b *ImageBuffer) Data() []byte { return b.data }

// AtomicClock returns the capture timestamp in microseconds.
func (b *ImageBuffer) AtomicClock() int64 { return b.clock }

// Timestamp returns AtomicClock as a duration on the media clock.
func (b *ImageBuffer) Timestamp() time.Duration {
	return time.Duration(b.clock) * time.Microsecond
}

// BeginCPUAccess makes the pixel memory coherent for the CPU.
func (b *ImageBuffer) BeginCPUAccess(readonly bool) error {
	b.accessMu.Lock()
	defer b.accessMu.Unlock()
	if b.inAccess {
		return fmt.Errorf("cpu access already in progress")
	}
	if b.syncer != nil {
		if err := b.syncer.BeginCPUAccess(readonly); err != nil {
			return fmt.Errorf("begin cpu access: %w", err)
		}
	}
	b.inAccess = true
	return nil
}

// EndCPUAccess flushes CPU writes back to the device. Safe to call after a
// failed draw.
func (b *ImageBuffer) EndCPUAccess(readonly bool) error {
	b.accessMu.Lock()
	defer b.accessMu.Unlock()
	if !b.inAccess {
		return nil
	}
	b.inAccess = false
	if b.syncer != nil {
		if err := b.syncer.EndCPUAccess(readonly); err != nil {
			return fmt.Errorf("end cpu access: %w", err)
		}
	}
	return nil
}

// ParameterBuffer carries an opaque control payload.
type ParameterBuffer struct {
	Payload []byte
}

// Type implements Buffer.
func (p *ParameterBuffer) Type() Type { return TypeParameter }
