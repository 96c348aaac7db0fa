package manifest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSerializeFixNamespace(t *testing.T) {
	mdl, err := Parse([]byte(testMPD))
	require.NoError(t, err)
	mdl.MakeLiveMpd(LiveParams{AvailabilityStartTimeSeconds: 1, TimeShiftBufferDepthSeconds: 30, MinimumUpdatePeriodSeconds: 1800})

	out, err := mdl.Serialize(true)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(out), `<?xml version="1.0" encoding="utf-8"?>`))
	require.Contains(t, string(out), `xmlns="`+DefaultNamespace+`"`)
	require.NotContains(t, string(out), "ns0:")
}
