package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dashrelay/loopcast/internal/manifest"
	"github.com/dashrelay/loopcast/internal/mux"
	"github.com/dashrelay/loopcast/internal/segbox"
	"github.com/dashrelay/loopcast/internal/sink"
)

// maxSleepSlice bounds how long the publish loop sleeps between wall-clock
// checks, so a context cancellation is noticed within 100ms (spec §4.6,
// ported from startSegmentPushLoop's `time.sleep(min(publishTime-now, 0.1))`).
const maxSleepSlice = 100 * time.Millisecond

// Options configures a Runner. BasePath is the directory the source MPD
// lives in; segment and init paths are resolved relative to it.
type Options struct {
	BasePath    string
	MpdFileName string
	Model       *manifest.Model

	Sink sink.Sink

	MuxType      string // "none", "fragment", or "sample"
	FixNamespace bool
	// NoClean skips the one-time startup pass that deletes init/media files a
	// previous run left at the destination. It does not affect the ongoing
	// FIFO eviction the publish loop performs every iteration; that always
	// runs, keeping the destination within the time-shift buffer window.
	NoClean bool

	TimeShiftBufferDepthS        int
	MinimumUpdatePeriodS         int
	AdjustAvailabilityStartTimeS int

	Logger *slog.Logger

	now   func() time.Time
	sleep func(time.Duration)
}

// Runner owns the discovered tracks, the validated loop plan, and the
// real-time publish loop that republishes the asset indefinitely (spec
// §4.6).
type Runner struct {
	opts   Options
	log    *slog.Logger
	tracks []*TrackMedia
	plan   *LoopPlan

	startTime  time.Time
	availStart int64

	windows map[string]*fifoWindow
}

// NewRunner discovers every track's on-disk segment range, validates a
// common loop point across them, and returns a Runner ready to Start.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	if opts.sleep == nil {
		opts.sleep = time.Sleep
	}

	var tracks []*TrackMedia
	for _, as := range opts.Model.AdaptationSets {
		t, err := DiscoverTrack(opts.BasePath, as)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	plan, err := BuildLoopPlan(tracks)
	if err != nil {
		return nil, err
	}

	windows := make(map[string]*fifoWindow)
	if opts.MuxType == "none" {
		for _, t := range tracks {
			windows[t.ContentType] = newFIFOWindow(opts.Sink, opts.TimeShiftBufferDepthS, t.SegmentDurationSeconds())
		}
	} else {
		windows["mux"] = newFIFOWindow(opts.Sink, opts.TimeShiftBufferDepthS, tracks[0].SegmentDurationSeconds())
	}

	return &Runner{opts: opts, log: opts.Logger, tracks: tracks, plan: plan, windows: windows}, nil
}

// Start runs the one-time startup sequence (push init segments and the
// initial live MPD) and then the real-time publish loop, blocking until ctx
// is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	r.startTime = r.opts.now()
	delay := int64(1)
	if r.opts.AdjustAvailabilityStartTimeS > 1 {
		delay = int64(r.opts.AdjustAvailabilityStartTimeS)
	}
	r.availStart = r.startTime.Unix() + delay

	if !r.opts.NoClean {
		if err := r.cleanOldFiles(); err != nil {
			return err
		}
	}
	if err := r.pushInitSegments(); err != nil {
		return err
	}
	if err := r.pushManifest(); err != nil {
		return err
	}

	r.log.Info("starting segment push loop",
		"firstSegmentInLoop", r.plan.FirstSegmentInLoop,
		"lastSegmentInLoop", r.plan.LastSegmentInLoop,
		"loopDurationSeconds", r.plan.LoopDurationSeconds)

	return r.publishLoop(ctx)
}

// cleanOldFiles removes whatever a previous run of this daemon left at the
// destination before the startup sequence pushes fresh init segments and the
// manifest (spec §6, ported from FileWriter.removeOldFiles / livegen.py's
// startup call to it; skipped when NoClean is set).
func (r *Runner) cleanOldFiles() error {
	if r.opts.MuxType == "none" {
		for _, t := range r.tracks {
			if err := r.opts.Sink.Clean(t.Rep.InitializationPath(), t.Rep.MediaNamePattern()); err != nil {
				return err
			}
		}
		return nil
	}
	for _, t := range r.tracks {
		if t.ContentType == "video" {
			return r.opts.Sink.Clean(t.Rep.InitializationPath(), t.Rep.MediaNamePattern())
		}
	}
	return nil
}

func (r *Runner) pushInitSegments() error {
	for _, t := range r.tracks {
		if r.opts.MuxType != "none" {
			continue // muxed init is written once both tracks are known, below.
		}
		path := r.opts.BasePath + "/" + t.Rep.InitializationPath()
		data, err := readFile(path)
		if err != nil {
			return err
		}
		if err := r.opts.Sink.Put(t.Rep.InitializationPath(), data); err != nil {
			return err
		}
	}
	if r.opts.MuxType != "none" {
		return r.pushMuxedInit()
	}
	return nil
}

func (r *Runner) pushMuxedInit() error {
	var audio, video *TrackMedia
	for _, t := range r.tracks {
		switch t.ContentType {
		case "audio":
			audio = t
		case "video":
			video = t
		}
	}
	if audio == nil || video == nil {
		return fmt.Errorf("scheduler: muxing requires exactly one audio and one video track")
	}
	audioData, err := readFile(r.opts.BasePath + "/" + audio.Rep.InitializationPath())
	if err != nil {
		return err
	}
	videoData, err := readFile(r.opts.BasePath + "/" + video.Rep.InitializationPath())
	if err != nil {
		return err
	}
	merged, err := mux.MultiplexInits(audio.Rep.InitializationPath(), video.Rep.InitializationPath(), audioData, videoData)
	if err != nil {
		return err
	}
	return r.opts.Sink.Put(video.Rep.InitializationPath(), merged)
}

func (r *Runner) pushManifest() error {
	p := manifest.LiveParams{
		AvailabilityStartTimeSeconds: r.availStart,
		TimeShiftBufferDepthSeconds:  r.opts.TimeShiftBufferDepthS,
		MinimumUpdatePeriodSeconds:   r.opts.MinimumUpdatePeriodS,
	}
	if r.opts.MuxType == "none" {
		r.opts.Model.MakeLiveMpd(p)
	} else if err := r.opts.Model.MakeLiveMultiplexedMpd(p); err != nil {
		return err
	}
	out, err := r.opts.Model.Serialize(r.opts.FixNamespace)
	if err != nil {
		return err
	}
	name := r.opts.MpdFileName
	if r.opts.MuxType != "none" {
		name = manifest.MuxedName(name)
	}
	return r.opts.Sink.Put(name, out)
}

func (r *Runner) publishLoop(ctx context.Context) error {
	inSegNr := r.plan.FirstSegmentInLoop
	outSegNr := r.plan.MpdStartNumber

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		nrWraps := (inSegNr - r.plan.FirstSegmentInLoop) / r.plan.NrSegmentsInLoop
		inFileSegNr := inSegNr - nrWraps*r.plan.NrSegmentsInLoop
		timeOffsetSeconds := float64(nrWraps) * r.plan.LoopDurationSeconds

		if err := r.waitUntilDue(ctx, inSegNr); err != nil {
			return err
		}

		segData := make(map[string][]byte, len(r.tracks))
		for _, t := range r.tracks {
			path := t.BasePath + "/" + t.Rep.MediaPath(inFileSegNr)
			raw, err := readFile(path)
			if err != nil {
				return err
			}
			tfdtOffset := -int64(t.StartTick) + int64(timeOffsetSeconds*float64(t.Timescale))
			res, err := segbox.RewriteMediaSegment(path, raw, uint32(outSegNr), tfdtOffset)
			if err != nil {
				return err
			}
			segData[t.ContentType] = res.Data
		}

		if err := r.publishSegments(outSegNr, segData); err != nil {
			return err
		}

		r.log.Debug("published segment", "inSegNr", inFileSegNr, "outSegNr", outSegNr, "nrWraps", nrWraps)

		inSegNr++
		outSegNr++
	}
}

// waitUntilDue sleeps in short slices, so a context cancellation is noticed
// promptly, until the wall clock reaches the publish time for inSegNr (the
// first track's segment duration anchors the cadence, matching
// startSegmentPushLoop using a single segDuration shared by all tracks;
// BuildLoopPlan has already rejected tracks whose loop durations disagree).
// Sub-second precision matters here: a segment duration that isn't a whole
// number of seconds would otherwise drift the cadence every iteration
// (livegen.py's startSegmentPushLoop uses time.time(), a float).
func (r *Runner) waitUntilDue(ctx context.Context, inSegNr int) error {
	segDurSeconds := r.tracks[0].SegmentDurationSeconds()
	offset := time.Duration(float64(inSegNr-r.plan.FirstSegmentInLoop+1) * segDurSeconds * float64(time.Second))
	publishTime := r.startTime.Add(offset)

	for {
		wait := publishTime.Sub(r.opts.now())
		if wait <= 0 {
			return nil
		}
		if wait > maxSleepSlice {
			wait = maxSleepSlice
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			r.opts.sleep(wait)
		}
	}
}

func (r *Runner) publishSegments(outSegNr int, segData map[string][]byte) error {
	if r.opts.MuxType == "none" {
		for _, t := range r.tracks {
			relPath := t.Rep.MediaPath(outSegNr)
			if err := r.opts.Sink.Put(relPath, segData[t.ContentType]); err != nil {
				return err
			}
			if err := r.windows[t.ContentType].push(relPath); err != nil {
				return err
			}
		}
		return nil
	}

	var audio, video *TrackMedia
	for _, t := range r.tracks {
		switch t.ContentType {
		case "audio":
			audio = t
		case "video":
			video = t
		}
	}
	merged, err := mux.MultiplexMediaSegments(r.opts.MuxType, audio.Rep.MediaPath(outSegNr), video.Rep.MediaPath(outSegNr), segData["audio"], segData["video"])
	if err != nil {
		return err
	}
	relPath := video.Rep.MediaPath(outSegNr)
	if err := r.opts.Sink.Put(relPath, merged); err != nil {
		return err
	}
	return r.windows["mux"].push(relPath)
}
