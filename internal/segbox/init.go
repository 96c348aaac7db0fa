package segbox

import (
	"fmt"

	"github.com/Eyevinn/mp4ff/bits"
	"github.com/Eyevinn/mp4ff/mp4"
)

// InitInfo is the per-track metadata the scheduler needs from an init segment:
// the media timescale and trackID (spec §4.2).
type InitInfo struct {
	TrackID   uint32
	Timescale uint32
}

// InspectInit extracts trackID and media timescale from a one-track init
// segment's moov box.
func InspectInit(path string, data []byte) (InitInfo, error) {
	sr := bits.NewFixedSliceReader(data)
	initFile, err := mp4.DecodeFileSR(sr)
	if err != nil {
		return InitInfo{}, newMalformedSegmentError(path, err)
	}
	init := initFile.Init
	if init == nil || init.Moov == nil {
		return InitInfo{}, newMalformedSegmentError(path, fmt.Errorf("no moov box found"))
	}
	if len(init.Moov.Traks) != 1 {
		return InitInfo{}, newMalformedSegmentError(path,
			fmt.Errorf("expected 1 track, got %d", len(init.Moov.Traks)))
	}
	trak := init.Moov.Traks[0]
	if trak.Mdia == nil || trak.Mdia.Mdhd == nil || trak.Tkhd == nil {
		return InitInfo{}, newMalformedSegmentError(path, fmt.Errorf("missing mdhd or tkhd box"))
	}
	return InitInfo{
		TrackID:   trak.Tkhd.TrackID,
		Timescale: trak.Mdia.Mdhd.Timescale,
	}, nil
}

// SetInitTrackID rewrites tkhd.trackID to newID and returns the re-encoded
// init segment. Used when a muxed init would otherwise carry two tracks with
// the same trackID.
func SetInitTrackID(path string, data []byte, newID uint32) ([]byte, error) {
	sr := bits.NewFixedSliceReader(data)
	initFile, err := mp4.DecodeFileSR(sr)
	if err != nil {
		return nil, newMalformedSegmentError(path, err)
	}
	init := initFile.Init
	if init == nil || init.Moov == nil || len(init.Moov.Traks) != 1 {
		return nil, newMalformedSegmentError(path, fmt.Errorf("expected 1 track in init segment"))
	}
	init.Moov.Traks[0].Tkhd.TrackID = newID
	sw := bits.NewFixedSliceWriter(int(init.Size()))
	if err := init.EncodeSW(sw); err != nil {
		return nil, fmt.Errorf("encode init segment: %w", err)
	}
	return sw.Bytes(), nil
}
