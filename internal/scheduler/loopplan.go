package scheduler

import (
	"fmt"
	"math"
	"os"

	"github.com/dashrelay/loopcast/internal/manifest"
	"github.com/dashrelay/loopcast/internal/segbox"
)

// TrackMedia is everything the scheduler needs, per content type, to drive
// the publish loop: where segments live on disk, their timing, and the
// validated wrap point.
type TrackMedia struct {
	ContentType string
	Rep         *manifest.Representation
	BasePath    string // directory the MPD lives in; paths are resolved relative to it

	TrackID              uint32
	Timescale            uint32
	StartNumber          int
	SegmentDurationTicks uint64

	FirstNumber int
	LastNumber  int

	StartTick uint64
	EndTick   uint64
	EndNumber int
}

func (t *TrackMedia) SegmentDurationSeconds() float64 {
	return float64(t.SegmentDurationTicks) / float64(t.Timescale)
}

// LoopPlan is the global, validated loop point derived from every track's
// TrackMedia.
type LoopPlan struct {
	FirstSegmentInLoop int
	LastSegmentInLoop  int
	NrSegmentsInLoop   int
	LoopDurationSeconds float64
	MpdStartNumber     int
}

const maxDriftFraction = 0.1 // 100ms per second of timescale

// DiscoverTrack resolves the init and media paths for an AdaptationSet,
// inspects the init segment for trackID/timescale, discovers the contiguous
// on-disk segment range, and walks it to find the last valid wrap
// candidate: the latest segment whose cumulative end time stays within 100ms
// of the ideal timeline.
func DiscoverTrack(basePath string, as *manifest.AdaptationSet) (*TrackMedia, error) {
	rep := as.Representation
	initPath := basePath + "/" + rep.InitializationPath()
	initData, err := os.ReadFile(initPath)
	if err != nil {
		return nil, fmt.Errorf("read init segment %q: %w", initPath, err)
	}
	info, err := segbox.InspectInit(initPath, initData)
	if err != nil {
		return nil, err
	}
	rep.SetTrackID(info.TrackID)

	namePattern := rep.MediaNamePattern()
	mediaDir := basePath
	if idx := lastSlash(namePattern); idx >= 0 {
		mediaDir = basePath + "/" + namePattern[:idx]
	}
	first, last, err := DiscoverRange(mediaDir, namePattern)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", as.ContentType, err)
	}

	t := &TrackMedia{
		ContentType:          as.ContentType,
		Rep:                  rep,
		BasePath:             basePath,
		TrackID:              info.TrackID,
		Timescale:            info.Timescale,
		StartNumber:          as.StartNumber,
		SegmentDurationTicks: as.SegmentDurationTicks,
		FirstNumber:          first,
		LastNumber:           last,
	}

	if err := t.validateLoopPoint(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *TrackMedia) validateLoopPoint() error {
	segTicks := t.SegmentDurationTicks
	maxDiffInTicks := int64(float64(t.Timescale) * maxDriftFraction)
	startTickSet := false

	for n := t.FirstNumber; n <= t.LastNumber; n++ {
		path := t.BasePath + "/" + t.Rep.MediaPath(n)
		data, err := os.ReadFile(path)
		if err != nil {
			break
		}
		span, err := segbox.InspectDuration(path, data)
		if err != nil {
			return err
		}
		if !startTickSet {
			t.StartTick = span.BaseMediaDecodeTime
			startTickSet = true
		}
		idealTicks := t.StartTick + uint64(n-t.FirstNumber+1)*segTicks
		diff := int64(idealTicks) - int64(span.EndTick())
		if diff < 0 {
			diff = -diff
		}
		if diff < maxDiffInTicks {
			t.EndTick = span.EndTick()
			t.EndNumber = n
		}
	}
	if t.EndNumber == 0 {
		return fmt.Errorf("%s: no valid wrap point found in segments %d-%d", t.ContentType, t.FirstNumber, t.LastNumber)
	}
	return nil
}

// BuildLoopPlan combines every track's validated wrap point into the global
// plan: all tracks must start at the same file number and agree on loop
// duration, and the global last-segment-in-loop is the earliest end number
// across tracks so every track is within its drift budget at the wrap.
func BuildLoopPlan(tracks []*TrackMedia) (*LoopPlan, error) {
	if len(tracks) == 0 {
		return nil, fmt.Errorf("no tracks to build a loop plan from")
	}
	first := tracks[0].FirstNumber
	startNumber := tracks[0].StartNumber
	for _, t := range tracks {
		if t.FirstNumber != first {
			return nil, fmt.Errorf("track %s starts at segment %d, expected %d", t.ContentType, t.FirstNumber, first)
		}
		if t.StartNumber != startNumber {
			return nil, fmt.Errorf("track %s has startNumber %d, expected %d", t.ContentType, t.StartNumber, startNumber)
		}
	}

	last := tracks[0].EndNumber
	for _, t := range tracks[1:] {
		if t.EndNumber < last {
			last = t.EndNumber
		}
	}
	nr := last - first + 1

	var loopDur float64
	for i, t := range tracks {
		d := float64(nr) * t.SegmentDurationSeconds()
		if i == 0 {
			loopDur = d
		} else if math.Abs(d-loopDur) > 1e-6 {
			return nil, fmt.Errorf("track %s loop duration %.3fs disagrees with %.3fs", t.ContentType, d, loopDur)
		}
	}

	return &LoopPlan{
		FirstSegmentInLoop:  first,
		LastSegmentInLoop:   last,
		NrSegmentsInLoop:    nr,
		LoopDurationSeconds: loopDur,
		MpdStartNumber:      startNumber,
	}, nil
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}
