package filter

import (
	"errors"
	"fmt"

	"github.com/bryanchriswhite/drawfilter/internal/detection"
	"github.com/bryanchriswhite/drawfilter/internal/media"
	"github.com/bryanchriswhite/drawfilter/internal/osd"
)

// ErrUnknownCommand is returned by Control for commands it does not handle.
var ErrUnknownCommand = errors.New("filter: unknown control command")

// Command is an out-of-band request to the stage. The set is closed: only
// the types in this file implement it.
type Command interface {
	command()
}

// SetSinkHandle attaches (or with nil, detaches) the OSD sink.
type SetSinkHandle struct {
	Sink osd.Sink
}

// GetSinkHandle asks for the attached sink in Reply.Sink.
type GetSinkHandle struct{}

// PushResultBatch enqueues detector output. Timestamp stamps an empty
// result set and any result without its own timestamp. A zero Timestamp
// means "unset" and the media clock is used, unless HasTimestamp is true,
// in which case Timestamp is taken as given even at clock 0.
type PushResultBatch struct {
	Results      []detection.Result
	Timestamp    int64
	HasTimestamp bool
}

// ClearRegion hides an OSD region previously drawn on the sink.
type ClearRegion struct {
	RegionID int
}

func (SetSinkHandle) command()   {}
func (GetSinkHandle) command()   {}
func (PushResultBatch) command() {}
func (ClearRegion) command()     {}

// Reply carries command results.
type Reply struct {
	Sink    osd.Sink
	BatchID string
}

// Control dispatches cmd.
func (s *Stage) Control(cmd Command) (Reply, error) {
	switch c := cmd.(type) {
	case SetSinkHandle:
		s.SetSink(c.Sink)
		s.log.Info().Bool("attached", c.Sink != nil).Msg("osd sink handle set")
		return Reply{}, nil
	case GetSinkHandle:
		return Reply{Sink: s.Sink()}, nil
	case PushResultBatch:
		ts := c.Timestamp
		if ts == 0 && !c.HasTimestamp {
			ts = media.NowMicros()
		}
		results := c.Results
		for i := range results {
			if results[i].Timestamp == 0 {
				results = append([]detection.Result(nil), c.Results...)
				for j := i; j < len(results); j++ {
					if results[j].Timestamp == 0 {
						results[j].Timestamp = ts
					}
				}
				break
			}
		}
		b := detection.NewBatch(results, ts)
		s.Push(b)
		return Reply{BatchID: b.ID}, nil
	case ClearRegion:
		return Reply{}, s.ClearRegion(c.RegionID)
	default:
		return Reply{}, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}
