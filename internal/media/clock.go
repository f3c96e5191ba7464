package media

import "time"

var epoch = time.Now()

// NowMicros returns the process media clock in microseconds. Frame sources
// and detectors stamp with this so their timestamps are comparable.
func NowMicros() int64 {
	return time.Since(epoch).Microseconds()
}
