package filter

import "github.com/bryanchriswhite/drawfilter/internal/detection"

// Stats is a snapshot of stage counters.
type Stats struct {
	// Frames counts image buffers accepted by Process.
	Frames uint64 `json:"frames"`

	// Drawn counts frames that had a batch rendered in software.
	Drawn uint64 `json:"drawn"`

	// Regions counts OSD regions handed to the sink.
	Regions uint64 `json:"regions"`

	// Stale counts batches discarded for being too far from the frame clock.
	Stale uint64 `json:"stale"`

	// Rejected counts draw cycles aborted by a misaligned region, a sink
	// error or an allocation failure.
	Rejected uint64 `json:"rejected"`

	// Unsupported counts frames skipped because of their pixel format.
	Unsupported uint64 `json:"unsupported"`

	Queue     detection.QueueStats `json:"queue"`
	SinkBound bool                 `json:"sink_bound"`
}
