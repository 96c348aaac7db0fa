package scheduler

import (
	"math"

	"github.com/dashrelay/loopcast/internal/sink"
)

// fifoWindow tracks the published file names for one destination (one per
// content type, or a single one when muxed) and evicts the oldest once the
// count exceeds maxFiles, keeping on-disk/remote state within the
// time-shift buffer window (spec §4.6, §5).
type fifoWindow struct {
	sink     sink.Sink
	maxFiles int
	files    []string
}

func newFIFOWindow(s sink.Sink, timeShiftBufferDepthSeconds int, segmentDurationSeconds float64) *fifoWindow {
	maxFiles := int(math.Ceil(float64(timeShiftBufferDepthSeconds)/segmentDurationSeconds)) + 2
	return &fifoWindow{sink: s, maxFiles: maxFiles}
}

// push records a newly published file and deletes whatever fell outside the
// window as a result.
func (w *fifoWindow) push(relPath string) error {
	w.files = append(w.files, relPath)
	for len(w.files) > w.maxFiles {
		stale := w.files[0]
		w.files = w.files[1:]
		if err := w.sink.Delete(stale); err != nil {
			return err
		}
	}
	return nil
}
