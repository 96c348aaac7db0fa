package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dashrelay/loopcast/internal/manifest"
	"github.com/dashrelay/loopcast/internal/scheduler"
	"github.com/dashrelay/loopcast/internal/sink"
)

// Run loads the source MPD, discovers and validates the loop point across
// every track, and starts the real-time publish loop. It blocks until ctx
// is cancelled or an unrecoverable error occurs.
func Run(ctx context.Context, cfg *Config, log *slog.Logger) error {
	data, err := os.ReadFile(cfg.MpdFile)
	if err != nil {
		return newConfigError(fmt.Errorf("read mpd file: %w", err))
	}
	mdl, err := manifest.Parse(data)
	if err != nil {
		return newConfigError(err)
	}
	if cfg.MuxType != MuxTypeNone && mdl.MuxedRepresentationId == "" {
		return newUnsupportedInputError(fmt.Errorf("muxtype %q requires both an audio and a video adaptation set", cfg.MuxType))
	}

	s, err := openSink(cfg, log)
	if err != nil {
		return newSinkError("open", cfg.Destination, err)
	}
	defer s.Close()

	r, err := scheduler.NewRunner(scheduler.Options{
		BasePath:                     filepath.Dir(cfg.MpdFile),
		MpdFileName:                  filepath.Base(cfg.MpdFile),
		Model:                        mdl,
		Sink:                         s,
		MuxType:                      string(cfg.MuxType),
		FixNamespace:                 cfg.FixNamespace,
		NoClean:                      cfg.NoClean,
		TimeShiftBufferDepthS:        cfg.TimeShiftBufferDepthS,
		MinimumUpdatePeriodS:         MinimumUpdatePeriodS,
		AdjustAvailabilityStartTimeS: cfg.AdjustAvailabilityStartTimeS,
		Logger:                       log,
	})
	if err != nil {
		return newDiscoveryError(err)
	}

	log.Info("loop plan ready", "mpdFile", cfg.MpdFile, "destination", cfg.Destination, "muxType", cfg.MuxType)

	if err := r.Start(ctx); err != nil {
		if ctx.Err() != nil {
			return ErrInterrupted
		}
		return err
	}
	return nil
}

// openSink builds a Local or WebDAV sink from cfg.Destination, matching the
// Python original's baseDst-scheme dispatch in FileWriter.__init__.
func openSink(cfg *Config, log *slog.Logger) (sink.Sink, error) {
	if strings.HasPrefix(cfg.Destination, "webdav://") || strings.HasPrefix(cfg.Destination, "webdavs://") {
		u, err := url.Parse(cfg.Destination)
		if err != nil {
			return nil, fmt.Errorf("parse destination %q: %w", cfg.Destination, err)
		}
		scheme := "http"
		if u.Scheme == "webdavs" {
			scheme = "https"
		}
		httpURL := scheme + "://" + u.Host + u.Path
		return sink.NewWebDAV(httpURL, cfg.WebdavUser, cfg.WebdavPassword, log)
	}
	return sink.NewLocal(cfg.Destination), nil
}
