package segbox

import (
	"fmt"

	"github.com/Eyevinn/mp4ff/bits"
	"github.com/Eyevinn/mp4ff/mp4"
)

// RewriteResult is what the caller needs back from a rewrite: the encoded
// bytes and the tfdt value that ended up in the output, so the scheduler can
// check for drift without re-decoding (spec §8).
type RewriteResult struct {
	Data []byte
	Tfdt uint64
}

// RewriteMediaSegment renumbers a media segment to outputSeqNr and shifts its
// tfdt by tfdtOffset (signed, in the track's own timescale), dropping sidx
// and any lmsg brand along the way (spec §4.4).
//
// tfdtOffset may be negative (the first loop pass subtracts the track's
// starting tick so that output presentation time begins at zero), but the
// resulting baseMediaDecodeTime must never go negative.
func RewriteMediaSegment(path string, data []byte, outputSeqNr uint32, tfdtOffset int64) (RewriteResult, error) {
	sr := bits.NewFixedSliceReader(data)
	segFile, err := mp4.DecodeFileSR(sr)
	if err != nil {
		return RewriteResult{}, newMalformedSegmentError(path, err)
	}
	if len(segFile.Segments) != 1 {
		return RewriteResult{}, newMalformedSegmentError(path,
			fmt.Errorf("expected 1 segment, got %d", len(segFile.Segments)))
	}
	seg := segFile.Segments[0]

	if seg.Styp != nil {
		removeLmsgBrand(seg.Styp)
	}
	// Drop sidx entirely: a live segment carries no index of itself.
	seg.Sidx = nil
	seg.Sidxs = nil

	var lastTfdt uint64
	for _, frag := range seg.Fragments {
		if frag.Moof == nil || frag.Moof.Mfhd == nil || frag.Moof.Traf == nil || frag.Moof.Traf.Tfdt == nil {
			return RewriteResult{}, newMalformedSegmentError(path, fmt.Errorf("missing moof/mfhd/traf/tfdt"))
		}
		frag.Moof.Mfhd.SequenceNumber = outputSeqNr

		traf := frag.Moof.Traf
		tfdt := traf.Tfdt
		oldSize := tfdt.Size()
		oldTime := int64(tfdt.BaseMediaDecodeTime())
		newTime := oldTime + tfdtOffset
		if newTime < 0 {
			return RewriteResult{}, fmt.Errorf("segbox: negative baseMediaDecodeTime %d for %q", newTime, path)
		}
		// SetBaseMediaDecodeTime promotes the box from v0 to v1 in place
		// when the new value no longer fits in 32 bits (spec §4.4.4, the
		// "32-bit-preferring" path that is normative per spec §9 (ii)).
		tfdt.SetBaseMediaDecodeTime(uint64(newTime))
		lastTfdt = uint64(newTime)

		newSize := tfdt.Size()
		sizeDelta := int32(newSize) - int32(oldSize)
		if sizeDelta != 0 && traf.Trun != nil {
			traf.Trun.DataOffset += sizeDelta
			if frag.Mdat != nil {
				frag.Mdat.StartPos += uint64(sizeDelta)
			}
			if traf.Saio != nil && saioAfterTfdt(traf) {
				for i := range traf.Saio.Offset {
					traf.Saio.Offset[i] += int64(sizeDelta)
				}
			}
		}
	}

	sw := bits.NewFixedSliceWriter(int(seg.Size()))
	if err := seg.EncodeSW(sw); err != nil {
		return RewriteResult{}, fmt.Errorf("encode segment %q: %w", path, err)
	}
	return RewriteResult{Data: sw.Bytes(), Tfdt: lastTfdt}, nil
}

// removeLmsgBrand strips the "lmsg" compatible brand a VoD styp never
// carries but which some packagers leave on the last segment of an asset;
// a looped segment is never actually the last one the client will see.
func removeLmsgBrand(styp *mp4.StypBox) {
	kept := styp.CompatibleBrands[:0]
	for _, b := range styp.CompatibleBrands {
		if b != "lmsg" {
			kept = append(kept, b)
		}
	}
	styp.CompatibleBrands = kept
}

// saioAfterTfdt reports whether traf's saio box (if any) follows tfdt in box
// order, i.e. whether it needs its offsets bumped by tfdt's size growth.
func saioAfterTfdt(traf *mp4.TrafBox) bool {
	tfdtIndex, saioIndex := -1, -1
	for i, c := range traf.Children {
		switch c.Type() {
		case "saio":
			saioIndex = i
		case "tfdt":
			tfdtIndex = i
		}
	}
	if tfdtIndex == -1 || saioIndex == -1 {
		return false
	}
	return saioIndex > tfdtIndex
}
