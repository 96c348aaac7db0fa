package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dashrelay/loopcast/internal/manifest"
)

// fakeClock lets the publish loop run at full speed in tests: now() reports
// a virtual time that sleep() advances, instead of blocking on a real timer.
type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *fakeClock) sleep(d time.Duration) {
	c.mu.Lock()
	c.cur = c.cur.Add(d)
	c.mu.Unlock()
}

// recordingSink records Put, Delete and Clean calls in memory without writing
// anything, and calls onPut after each Put so a test can cancel its context
// once enough segments have been published.
type recordingSink struct {
	mu      sync.Mutex
	puts    []string
	deletes []string
	cleans  int
	onPut   func(relPath string)
}

func (s *recordingSink) Put(relPath string, data []byte) error {
	s.mu.Lock()
	s.puts = append(s.puts, relPath)
	s.mu.Unlock()
	if s.onPut != nil {
		s.onPut(relPath)
	}
	return nil
}

func (s *recordingSink) Delete(relPath string) error {
	s.mu.Lock()
	s.deletes = append(s.deletes, relPath)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) Clean(initPath, mediaPattern string) error {
	s.mu.Lock()
	s.cleans++
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) Close() error { return nil }

func TestRunnerPublishLoopWrapsAndEvicts(t *testing.T) {
	base := t.TempDir()
	writeInit(t, filepath.Join(base, "V300"), 1, 90000)
	for n := 1; n <= 4; n++ {
		writeMediaSegment(t, filepath.Join(base, "V300"), n, 1, uint64(n-1)*180000, 180000)
	}

	mdl, err := manifest.Parse([]byte(loopTestMPD))
	require.NoError(t, err)

	clk := &fakeClock{cur: time.Unix(1000, 0)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	mediaPuts := 0
	s := &recordingSink{}
	s.onPut = func(relPath string) {
		if filepath.Ext(relPath) == ".m4s" {
			mu.Lock()
			mediaPuts++
			n := mediaPuts
			mu.Unlock()
			if n >= 6 { // more than nrSegmentsInLoop (4): exercises the wrap
				cancel()
			}
		}
	}

	opts := Options{
		BasePath:              base,
		MpdFileName:           "stream.mpd",
		Model:                 mdl,
		Sink:                  s,
		MuxType:               "none",
		TimeShiftBufferDepthS: 2, // small window forces eviction quickly
		now:                   clk.now,
		sleep:                 clk.sleep,
	}
	r, err := NewRunner(opts)
	require.NoError(t, err)

	err = r.Start(ctx)
	require.ErrorIs(t, err, context.Canceled)

	s.mu.Lock()
	defer s.mu.Unlock()
	require.GreaterOrEqual(t, len(s.puts), 8) // init + manifest + >=6 segments
	require.NotEmpty(t, s.deletes, "eviction should have deleted at least one stale segment")
	require.Contains(t, s.puts, "stream.mpd")
	require.Contains(t, s.puts, "V300/init.mp4")
}

func TestRunnerNoCleanSkipsStartupCleanButNotEviction(t *testing.T) {
	base := t.TempDir()
	writeInit(t, filepath.Join(base, "V300"), 1, 90000)
	for n := 1; n <= 4; n++ {
		writeMediaSegment(t, filepath.Join(base, "V300"), n, 1, uint64(n-1)*180000, 180000)
	}

	mdl, err := manifest.Parse([]byte(loopTestMPD))
	require.NoError(t, err)

	clk := &fakeClock{cur: time.Unix(1000, 0)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	mediaPuts := 0
	s := &recordingSink{}
	s.onPut = func(relPath string) {
		if filepath.Ext(relPath) == ".m4s" {
			mu.Lock()
			mediaPuts++
			n := mediaPuts
			mu.Unlock()
			if n >= 6 {
				cancel()
			}
		}
	}

	r, err := NewRunner(Options{
		BasePath:              base,
		MpdFileName:           "stream.mpd",
		Model:                 mdl,
		Sink:                  s,
		MuxType:               "none",
		NoClean:               true,
		TimeShiftBufferDepthS: 2,
		now:                   clk.now,
		sleep:                 clk.sleep,
	})
	require.NoError(t, err)

	err = r.Start(ctx)
	require.ErrorIs(t, err, context.Canceled)

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Zero(t, s.cleans, "NoClean must skip the startup Clean pass")
	require.NotEmpty(t, s.deletes, "FIFO eviction must run regardless of NoClean")
}

func TestRunnerCleansOnStartupByDefault(t *testing.T) {
	base := t.TempDir()
	writeInit(t, filepath.Join(base, "V300"), 1, 90000)
	for n := 1; n <= 4; n++ {
		writeMediaSegment(t, filepath.Join(base, "V300"), n, 1, uint64(n-1)*180000, 180000)
	}

	mdl, err := manifest.Parse([]byte(loopTestMPD))
	require.NoError(t, err)

	clk := &fakeClock{cur: time.Unix(1000, 0)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &recordingSink{}
	s.onPut = func(relPath string) {
		if filepath.Ext(relPath) == ".m4s" {
			cancel()
		}
	}

	r, err := NewRunner(Options{
		BasePath:              base,
		MpdFileName:           "stream.mpd",
		Model:                 mdl,
		Sink:                  s,
		MuxType:               "none",
		TimeShiftBufferDepthS: 2,
		now:                   clk.now,
		sleep:                 clk.sleep,
	})
	require.NoError(t, err)

	err = r.Start(ctx)
	require.ErrorIs(t, err, context.Canceled)

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Equal(t, 1, s.cleans, "exactly one Clean call: one per track, and this asset has only a video track")
}

func TestRunnerRejectsMuxingWithoutBothTracks(t *testing.T) {
	base := t.TempDir()
	writeInit(t, filepath.Join(base, "V300"), 1, 90000)
	for n := 1; n <= 2; n++ {
		writeMediaSegment(t, filepath.Join(base, "V300"), n, 1, uint64(n-1)*180000, 180000)
	}
	mdl, err := manifest.Parse([]byte(loopTestMPD))
	require.NoError(t, err)

	s := &recordingSink{}
	r, err := NewRunner(Options{
		BasePath:              base,
		MpdFileName:           "stream.mpd",
		Model:                 mdl,
		Sink:                  s,
		MuxType:               "fragment",
		TimeShiftBufferDepthS: 4,
	})
	// NewRunner succeeds (discovery doesn't require muxing agreement); the
	// mismatch surfaces once Start tries to push a muxed init segment.
	require.NoError(t, err)
	require.Error(t, r.Start(context.Background()))
}
