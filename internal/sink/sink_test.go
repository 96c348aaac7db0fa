package sink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalPutCreatesDirsAndWritesFile(t *testing.T) {
	base := t.TempDir()
	l := NewLocal(base)

	require.NoError(t, l.Put("V300/init.mp4", []byte("data")))

	got, err := os.ReadFile(filepath.Join(base, "V300", "init.mp4"))
	require.NoError(t, err)
	require.Equal(t, "data", string(got))
}

func TestLocalDeleteIsIdempotent(t *testing.T) {
	base := t.TempDir()
	l := NewLocal(base)
	require.NoError(t, l.Put("a.m4s", []byte("x")))

	require.NoError(t, l.Delete("a.m4s"))
	_, err := os.Stat(filepath.Join(base, "a.m4s"))
	require.True(t, os.IsNotExist(err))

	// Deleting an already-gone file is not an error.
	require.NoError(t, l.Delete("a.m4s"))
}

func TestLocalClose(t *testing.T) {
	l := NewLocal(t.TempDir())
	require.NoError(t, l.Close())
}

func TestLocalCleanRemovesInitAndMediaSegments(t *testing.T) {
	base := t.TempDir()
	l := NewLocal(base)
	require.NoError(t, l.Put("V300/init.mp4", []byte("init")))
	for _, n := range []string{"1", "2", "3"} {
		require.NoError(t, l.Put("V300/"+n+".m4s", []byte("seg")))
	}
	// A file that doesn't match the pattern must survive.
	require.NoError(t, l.Put("V300/other.txt", []byte("keep")))

	require.NoError(t, l.Clean("V300/init.mp4", "V300/$Number$.m4s"))

	_, err := os.Stat(filepath.Join(base, "V300", "init.mp4"))
	require.True(t, os.IsNotExist(err))
	for _, n := range []string{"1", "2", "3"} {
		_, err := os.Stat(filepath.Join(base, "V300", n+".m4s"))
		require.True(t, os.IsNotExist(err))
	}
	_, err = os.Stat(filepath.Join(base, "V300", "other.txt"))
	require.NoError(t, err)
}

func TestLocalCleanToleratesMissingFiles(t *testing.T) {
	l := NewLocal(t.TempDir())
	require.NoError(t, l.Clean("V300/init.mp4", "V300/$Number$.m4s"))
}
