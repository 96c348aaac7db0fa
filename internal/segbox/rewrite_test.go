package segbox

import (
	"testing"

	"github.com/Eyevinn/mp4ff/bits"
	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/stretchr/testify/require"
)

func TestRewriteMediaSegmentShiftsTfdtAndSeqNr(t *testing.T) {
	_, data := buildMediaSegment(t, 3, 1, 100, []uint32{4000})

	res, err := RewriteMediaSegment("v/3.m4s", data, 42, 900)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), res.Tfdt)

	sr := bits.NewFixedSliceReader(res.Data)
	out, err := mp4.DecodeFileSR(sr)
	require.NoError(t, err)
	require.Len(t, out.Segments, 1)
	frag := out.Segments[0].Fragments[0]
	require.Equal(t, uint32(42), frag.Moof.Mfhd.SequenceNumber)
	require.Equal(t, uint64(1000), frag.Moof.Traf.Tfdt.BaseMediaDecodeTime())
}

func TestRewriteMediaSegmentPromotesTfdtTo64Bit(t *testing.T) {
	// A base time just under the 32-bit ceiling that the offset pushes over it
	// must come back out as a version-1 (64-bit) tfdt, not a silently
	// truncated version-0 one.
	const almostMax = uint64(1)<<32 - 1000
	_, data := buildMediaSegment(t, 1, 1, almostMax, []uint32{4000})

	res, err := RewriteMediaSegment("v/1.m4s", data, 1, 5000)
	require.NoError(t, err)
	require.Equal(t, almostMax+5000, res.Tfdt)

	sr := bits.NewFixedSliceReader(res.Data)
	out, err := mp4.DecodeFileSR(sr)
	require.NoError(t, err)
	require.Equal(t, byte(1), out.Segments[0].Fragments[0].Moof.Traf.Tfdt.Version)
}

func TestRewriteMediaSegmentRejectsNegativeResult(t *testing.T) {
	_, data := buildMediaSegment(t, 1, 1, 100, []uint32{4000})

	_, err := RewriteMediaSegment("v/1.m4s", data, 1, -500)
	require.Error(t, err)
}

func TestRewriteMediaSegmentStripsLmsgAndSidx(t *testing.T) {
	seg, data := buildMediaSegment(t, 1, 1, 0, []uint32{4000})
	require.Nil(t, seg.Sidx, "fixture should start without a sidx")
	seg.Styp = &mp4.StypBox{MajorBrand: "msdh", CompatibleBrands: []string{"msdh", "lmsg", "msix"}}
	sw := bits.NewFixedSliceWriter(int(seg.Size()))
	require.NoError(t, seg.EncodeSW(sw))
	data = sw.Bytes()

	res, err := RewriteMediaSegment("v/1.m4s", data, 1, 0)
	require.NoError(t, err)

	sr := bits.NewFixedSliceReader(res.Data)
	out, err := mp4.DecodeFileSR(sr)
	require.NoError(t, err)
	require.Equal(t, []string{"msdh", "msix"}, out.Segments[0].Styp.CompatibleBrands)
	require.Nil(t, out.Segments[0].Sidx)
	require.Nil(t, out.Segments[0].Sidxs)
}

func TestRemoveLmsgBrand(t *testing.T) {
	styp := &mp4.StypBox{
		MajorBrand:       "msdh",
		CompatibleBrands: []string{"msdh", "lmsg", "msix"},
	}
	removeLmsgBrand(styp)
	require.Equal(t, []string{"msdh", "msix"}, styp.CompatibleBrands)
}

func TestSaioAfterTfdt(t *testing.T) {
	traf := &mp4.TrafBox{}
	tfdt := &mp4.TfdtBox{}
	saio := &mp4.SaioBox{}
	traf.Children = []mp4.Box{tfdt, saio}
	require.True(t, saioAfterTfdt(traf))

	traf.Children = []mp4.Box{saio, tfdt}
	require.False(t, saioAfterTfdt(traf))
}
