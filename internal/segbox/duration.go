package segbox

import (
	"fmt"

	"github.com/Eyevinn/mp4ff/bits"
	"github.com/Eyevinn/mp4ff/mp4"
)

// SegmentSpan is the tfdt and summed sample duration of a single-fragment
// media segment, in the track's own timescale (spec §4.3).
type SegmentSpan struct {
	BaseMediaDecodeTime uint64
	Duration            uint64
}

// EndTick is the presentation tick right after the segment's last sample.
func (s SegmentSpan) EndTick() uint64 {
	return s.BaseMediaDecodeTime + s.Duration
}

// InspectDuration reads tfdt and sums the trun sample durations of a media
// segment. Segments are assumed to carry exactly one moof/traf/trun, which
// is what a SegmentTemplate-addressed DASH asset produces.
func InspectDuration(path string, data []byte) (SegmentSpan, error) {
	sr := bits.NewFixedSliceReader(data)
	segFile, err := mp4.DecodeFileSR(sr)
	if err != nil {
		return SegmentSpan{}, newMalformedSegmentError(path, err)
	}
	if len(segFile.Segments) != 1 {
		return SegmentSpan{}, newMalformedSegmentError(path,
			fmt.Errorf("expected 1 segment, got %d", len(segFile.Segments)))
	}
	seg := segFile.Segments[0]
	if len(seg.Fragments) == 0 {
		return SegmentSpan{}, newMalformedSegmentError(path, fmt.Errorf("no fragments in segment"))
	}
	frag := seg.Fragments[0]
	if frag.Moof == nil || frag.Moof.Traf == nil || frag.Moof.Traf.Tfdt == nil {
		return SegmentSpan{}, newMalformedSegmentError(path, fmt.Errorf("missing moof/traf/tfdt"))
	}
	traf := frag.Moof.Traf
	span := SegmentSpan{BaseMediaDecodeTime: traf.Tfdt.BaseMediaDecodeTime()}
	if traf.Trun != nil {
		// A default sample duration of 0 means a trun that omits the
		// per-sample duration flag contributes a duration of 0; no default
		// is taken from tfhd, and the caller uses the 0 as-is (spec §4.3).
		span.Duration = traf.Trun.Duration(0)
	}
	return span, nil
}
