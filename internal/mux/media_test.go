package mux

import (
	"testing"

	"github.com/Eyevinn/mp4ff/bits"
	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/stretchr/testify/require"
)

func buildSegment(t *testing.T, seqNr, trackID uint32, baseMediaDecodeTime uint64, sampleDurs []uint32) []byte {
	t.Helper()
	seg := mp4.NewMediaSegment()
	seg.Styp = &mp4.StypBox{MajorBrand: "msdh", CompatibleBrands: []string{"msdh", "msix"}}
	frag, err := mp4.CreateFragment(seqNr, trackID)
	require.NoError(t, err)
	seg.AddFragment(frag)
	for _, dur := range sampleDurs {
		fs := mp4.FullSample{
			Sample:     mp4.Sample{Flags: mp4.SyncSampleFlags, Dur: dur, Size: 4},
			DecodeTime: baseMediaDecodeTime,
			Data:       []byte{1, 2, 3, 4},
		}
		frag.AddFullSample(fs)
	}
	frag.Moof.Traf.Tfdt.SetBaseMediaDecodeTime(baseMediaDecodeTime)

	sw := bits.NewFixedSliceWriter(int(seg.Size()))
	require.NoError(t, seg.EncodeSW(sw))
	return sw.Bytes()
}

func TestMultiplexMediaSegmentsFragmentLevel(t *testing.T) {
	audio := buildSegment(t, 5, 2, 100, []uint32{2000})
	video := buildSegment(t, 5, 1, 200, []uint32{3000, 3000})

	out, err := MultiplexMediaSegments("fragment", "a.m4s", "v.m4s", audio, video)
	require.NoError(t, err)

	sr := bits.NewFixedSliceReader(out)
	f, err := mp4.DecodeFileSR(sr)
	require.NoError(t, err)
	require.Len(t, f.Segments, 1)
	require.Len(t, f.Segments[0].Fragments, 2)
	require.Equal(t, uint64(100), f.Segments[0].Fragments[0].Moof.Traf.Tfdt.BaseMediaDecodeTime())
	require.Equal(t, uint64(200), f.Segments[0].Fragments[1].Moof.Traf.Tfdt.BaseMediaDecodeTime())
}

func TestMultiplexMediaSegmentsSampleLevel(t *testing.T) {
	audio := buildSegment(t, 5, 2, 100, []uint32{2000})
	video := buildSegment(t, 5, 1, 200, []uint32{3000, 3000})

	out, err := MultiplexMediaSegments("sample", "a.m4s", "v.m4s", audio, video)
	require.NoError(t, err)

	sr := bits.NewFixedSliceReader(out)
	f, err := mp4.DecodeFileSR(sr)
	require.NoError(t, err)
	require.Len(t, f.Segments, 1)
	require.Len(t, f.Segments[0].Fragments, 1)
	frag := f.Segments[0].Fragments[0]
	require.NotNil(t, frag.Mdat)
	require.Equal(t, 12, len(frag.Mdat.Data))
}

func TestMultiplexMediaSegmentsRejectsUnknownGranularity(t *testing.T) {
	audio := buildSegment(t, 1, 2, 0, []uint32{1000})
	video := buildSegment(t, 1, 1, 0, []uint32{1000})
	_, err := MultiplexMediaSegments("bogus", "a.m4s", "v.m4s", audio, video)
	require.Error(t, err)
}
