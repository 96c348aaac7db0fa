package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig([]string{"loopcast", "--mpdfile=stream.mpd", "--destination=/tmp/out"}, "/cwd")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/cwd", "stream.mpd"), cfg.MpdFile)
	require.Equal(t, "/tmp/out", cfg.Destination)
	require.Equal(t, MuxTypeNone, cfg.MuxType)
	require.Equal(t, defaultTimeShiftBufferDepthS, cfg.TimeShiftBufferDepthS)
}

func TestLoadConfigRequiresMpdFile(t *testing.T) {
	_, err := LoadConfig([]string{"loopcast", "--destination=/tmp/out"}, "/cwd")
	require.Error(t, err)
}

func TestLoadConfigRequiresDestination(t *testing.T) {
	_, err := LoadConfig([]string{"loopcast", "--mpdfile=stream.mpd"}, "/cwd")
	require.Error(t, err)
}

func TestLoadConfigRejectsUnknownMuxType(t *testing.T) {
	_, err := LoadConfig([]string{"loopcast", "--mpdfile=stream.mpd", "--destination=/tmp/out", "--muxtype=bogus"}, "/cwd")
	require.Error(t, err)
	var unknown *UnknownMuxTypeError
	require.ErrorAs(t, err, &unknown)
}

func TestLoadConfigAbsoluteMpdFileUnchanged(t *testing.T) {
	cfg, err := LoadConfig([]string{"loopcast", "--mpdfile=/abs/stream.mpd", "--destination=/tmp/out"}, "/cwd")
	require.NoError(t, err)
	require.Equal(t, "/abs/stream.mpd", cfg.MpdFile)
}
