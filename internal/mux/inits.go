// Package mux composes matching audio and video segments into a single
// multiplexed stream: one init segment carrying both tracks, and media
// segments combined either by keeping their fragments side by side or by
// merging them into one fragment at the sample level.
package mux

import (
	"fmt"

	"github.com/Eyevinn/mp4ff/bits"
	"github.com/Eyevinn/mp4ff/mp4"
)

// MultiplexInits combines two single-track init segments into one. ftyp and
// mvhd are taken from the first; both trak boxes and both trex boxes end up
// as children of the output moov/mvex. Callers that need distinct trackIDs
// must arrange that before calling this (see segbox.SetInitTrackID): the
// muxer does not renumber tracks itself.
func MultiplexInits(path1, path2 string, data1, data2 []byte) ([]byte, error) {
	init1, err := decodeInit(path1, data1)
	if err != nil {
		return nil, err
	}
	init2, err := decodeInit(path2, data2)
	if err != nil {
		return nil, err
	}

	moov := init1.Moov
	if moov.Mvex == nil {
		return nil, fmt.Errorf("mux: %q has no mvex box", path1)
	}
	trex2 := init2.Moov.Mvex.Trex
	if trex2 == nil {
		return nil, fmt.Errorf("mux: %q has no trex box", path2)
	}
	moov.Mvex.AddChild(trex2)

	trak2 := init2.Moov.Trak
	if trak2 == nil {
		return nil, fmt.Errorf("mux: %q has no trak box", path2)
	}
	moov.AddChild(trak2)

	sw := bits.NewFixedSliceWriter(int(init1.Size()))
	if err := init1.EncodeSW(sw); err != nil {
		return nil, fmt.Errorf("mux: encode init: %w", err)
	}
	return sw.Bytes(), nil
}

func decodeInit(path string, data []byte) (*mp4.InitSegment, error) {
	sr := bits.NewFixedSliceReader(data)
	f, err := mp4.DecodeFileSR(sr)
	if err != nil {
		return nil, fmt.Errorf("mux: decode %q: %w", path, err)
	}
	if f.Init == nil || f.Init.Moov == nil {
		return nil, fmt.Errorf("mux: %q has no moov box", path)
	}
	if len(f.Init.Moov.Traks) != 1 {
		return nil, fmt.Errorf("mux: %q has %d tracks, expected 1", path, len(f.Init.Moov.Traks))
	}
	return f.Init, nil
}
