package mux

import (
	"testing"

	"github.com/Eyevinn/mp4ff/bits"
	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/stretchr/testify/require"
)

func buildInit(t *testing.T, timescale uint32, handlerType string) []byte {
	t.Helper()
	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(timescale, handlerType, "")
	sw := bits.NewFixedSliceWriter(int(init.Size()))
	require.NoError(t, init.EncodeSW(sw))
	return sw.Bytes()
}

func TestMultiplexInits(t *testing.T) {
	audio := buildInit(t, 48000, "soun")
	video := buildInit(t, 90000, "vide")

	out, err := MultiplexInits("a/init.mp4", "v/init.mp4", audio, video)
	require.NoError(t, err)

	sr := bits.NewFixedSliceReader(out)
	f, err := mp4.DecodeFileSR(sr)
	require.NoError(t, err)
	require.NotNil(t, f.Init)
	require.Len(t, f.Init.Moov.Traks, 2)
	require.NotNil(t, f.Init.Moov.Mvex)
}

func TestMultiplexInitsRejectsMultiTrack(t *testing.T) {
	bad := mp4.CreateEmptyInit()
	bad.AddEmptyTrack(1, "vide", "")
	bad.AddEmptyTrack(1, "soun", "")
	sw := bits.NewFixedSliceWriter(int(bad.Size()))
	require.NoError(t, bad.EncodeSW(sw))

	_, err := MultiplexInits("bad.mp4", "v/init.mp4", sw.Bytes(), buildInit(t, 90000, "vide"))
	require.Error(t, err)
}
