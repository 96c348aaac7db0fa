package mux

import (
	"fmt"

	"github.com/Eyevinn/mp4ff/bits"
	"github.com/Eyevinn/mp4ff/mp4"
)

// MultiplexMediaSegments combines two rewritten, single-fragment media
// segments (already carrying the same sequence number and wall-clock-aligned
// tfdt) into one blob, at either fragment or sample granularity. Both inputs
// must already have been through segbox.RewriteMediaSegment.
func MultiplexMediaSegments(granularity string, path1, path2 string, data1, data2 []byte) ([]byte, error) {
	seg1, err := decodeMediaSegment(path1, data1)
	if err != nil {
		return nil, err
	}
	seg2, err := decodeMediaSegment(path2, data2)
	if err != nil {
		return nil, err
	}

	switch granularity {
	case "fragment":
		return muxOnFragmentLevel(seg1, seg2)
	case "sample":
		return muxOnSampleLevel(seg1, seg2)
	default:
		return nil, fmt.Errorf("mux: unknown granularity %q", granularity)
	}
}

func decodeMediaSegment(path string, data []byte) (*mp4.MediaSegment, error) {
	sr := bits.NewFixedSliceReader(data)
	f, err := mp4.DecodeFileSR(sr)
	if err != nil {
		return nil, fmt.Errorf("mux: decode %q: %w", path, err)
	}
	if len(f.Segments) != 1 || len(f.Segments[0].Fragments) != 1 {
		return nil, fmt.Errorf("mux: %q must have exactly 1 segment with 1 fragment", path)
	}
	return f.Segments[0], nil
}

// muxOnFragmentLevel lays the two fragments side by side behind the first
// segment's styp: styp1 ‖ moof1 ‖ mdat1 ‖ moof2 ‖ mdat2.
func muxOnFragmentLevel(seg1, seg2 *mp4.MediaSegment) ([]byte, error) {
	out := mp4.NewMediaSegment()
	out.Styp = seg1.Styp
	out.AddFragment(seg1.Fragments[0])
	out.AddFragment(seg2.Fragments[0])

	sw := bits.NewFixedSliceWriter(int(out.Size()))
	if err := out.EncodeSW(sw); err != nil {
		return nil, fmt.Errorf("mux: encode fragment-level mux: %w", err)
	}
	return sw.Bytes(), nil
}

// muxOnSampleLevel merges both fragments into a single moof/mdat pair,
// patching each traf's trun.data_offset so it keeps pointing at that traf's
// samples inside the merged mdat (spec §4.7).
func muxOnSampleLevel(seg1, seg2 *mp4.MediaSegment) ([]byte, error) {
	frag1, frag2 := seg1.Fragments[0], seg2.Fragments[0]
	if frag1.Moof == nil || frag1.Moof.Traf == nil || frag1.Moof.Mfhd == nil {
		return nil, fmt.Errorf("mux: first fragment missing moof/mfhd/traf")
	}
	if frag2.Moof == nil || frag2.Moof.Traf == nil {
		return nil, fmt.Errorf("mux: second fragment missing moof/traf")
	}
	if frag1.Mdat == nil || frag2.Mdat == nil {
		return nil, fmt.Errorf("mux: both fragments must carry an mdat")
	}

	traf1, traf2 := frag1.Moof.Traf, frag2.Moof.Traf
	traf1Size := int32(traf1.Size())
	traf2Size := int32(traf2.Size())
	mdat1PayloadSize := int32(len(frag1.Mdat.Data))

	delta1 := traf2Size
	delta2 := traf1Size + mdat1PayloadSize

	if traf1.Trun != nil {
		traf1.Trun.DataOffset += delta1
	}
	if traf2.Trun != nil {
		traf2.Trun.DataOffset += delta2
	}

	moof := &mp4.MoofBox{}
	moof.AddChild(frag1.Moof.Mfhd)
	moof.AddChild(traf1)
	moof.AddChild(traf2)

	mdat := &mp4.MdatBox{}
	mdat.Data = append(append([]byte{}, frag1.Mdat.Data...), frag2.Mdat.Data...)

	out := mp4.NewMediaSegment()
	out.Styp = seg1.Styp
	merged := &mp4.Fragment{Moof: moof, Mdat: mdat}
	out.AddFragment(merged)

	sw := bits.NewFixedSliceWriter(int(out.Size()))
	if err := out.EncodeSW(sw); err != nil {
		return nil, fmt.Errorf("mux: encode sample-level mux: %w", err)
	}
	return sw.Bytes(), nil
}
