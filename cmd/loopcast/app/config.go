package app

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/spf13/pflag"

	"github.com/dashrelay/loopcast/pkg/logging"
)

// MuxType selects how audio and video segments are combined before they
// reach the sink.
type MuxType string

const (
	MuxTypeNone     MuxType = "none"
	MuxTypeFragment MuxType = "fragment"
	MuxTypeSample   MuxType = "sample"
)

const (
	defaultTimeShiftBufferDepthS = 30
	// MinimumUpdatePeriod is not configurable: the source always advertises
	// a 30-minute period since the MPD never needs to change shape.
	MinimumUpdatePeriodS = 30 * 60
)

// Config is the full set of settings the daemon needs to start looping an
// asset. It is assembled once at start-up and never mutated afterwards.
type Config struct {
	LogFormat string `json:"logformat"`
	LogLevel  string `json:"loglevel"`

	MpdFile     string `json:"mpdfile"`
	Destination string `json:"destination"`

	WebdavUser     string `json:"webdavuser"`
	WebdavPassword string `json:"-"`

	MuxType MuxType `json:"muxtype"`

	TimeShiftBufferDepthS int `json:"timeshiftbufferdepths"`

	FixNamespace bool `json:"fixnamespace"`
	NoClean      bool `json:"noclean"`

	AdjustAvailabilityStartTimeS int  `json:"adjustavailabilitystarttimes"`
	Verbose                      bool `json:"verbose"`
}

var DefaultConfig = Config{
	LogFormat:             "text",
	LogLevel:              "INFO",
	MuxType:               MuxTypeNone,
	TimeShiftBufferDepthS: defaultTimeShiftBufferDepthS,
}

// LoadConfig loads defaults, an optional JSON config file, command-line
// flags, and finally environment variables, in that order of increasing
// precedence.
func LoadConfig(args []string, cwd string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(DefaultConfig, "json"), nil); err != nil {
		return nil, err
	}

	f := pflag.NewFlagSet("loopcast", pflag.ContinueOnError)
	f.Usage = func() {
		parts := strings.Split(args[0], "/")
		name := parts[len(parts)-1]
		fmt.Fprintf(os.Stderr, "Run as %s [options]:\n", name)
		f.PrintDefaults()
	}
	cfgFile := f.String("cfg", "", "path to a JSON config file")
	lf := strings.Join(logging.LogFormats, ", ")
	f.String("logformat", k.String("logformat"), fmt.Sprintf("log format [%s]", lf))
	ll := strings.Join(logging.LogLevels, ", ")
	f.String("loglevel", k.String("loglevel"), fmt.Sprintf("log level [%s]", ll))
	f.String("mpdfile", k.String("mpdfile"), "path to the input (static) MPD")
	f.String("destination", k.String("destination"), "output root: local path or webdav://host/path")
	f.String("webdavuser", k.String("webdavuser"), "WebDAV basic-auth user")
	f.String("webdavpassword", k.String("webdavpassword"), "WebDAV basic-auth password")
	f.String("muxtype", string(DefaultConfig.MuxType), "mux mode [none, fragment, sample]")
	f.Int("timeshiftbufferdepths", k.Int("timeshiftbufferdepths"), "time-shift buffer depth (seconds)")
	f.Bool("fixnamespace", k.Bool("fixnamespace"), "force the default DASH namespace on output")
	f.Bool("noclean", k.Bool("noclean"), "skip deleting stale output files at start-up")
	f.Int("adjustavailabilitystarttimes", k.Int("adjustavailabilitystarttimes"), "availabilityStartTime offset from start-up in seconds; values below 1 use 1")
	f.Bool("verbose", k.Bool("verbose"), "verbose logging")
	if err := f.Parse(args[1:]); err != nil {
		return nil, fmt.Errorf("command line parse: %w", err)
	}

	if *cfgFile != "" {
		cf := file.Provider(*cfgFile)
		if err := k.Load(cf, json.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("parsing cli: %v", err)
	}

	err := k.Load(env.Provider("LOOPCAST_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "LOOPCAST_")), "_", ".", -1)
	}), nil)
	if err != nil {
		return nil, err
	}

	mpdFile := k.String("mpdfile")
	if mpdFile != "" && !path.IsAbs(mpdFile) {
		mpdFile = path.Join(cwd, mpdFile)
		if err := k.Load(confmap.Provider(map[string]any{"mpdfile": mpdFile}, "."), nil); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.MpdFile == "" {
		return fmt.Errorf("mpdfile is required")
	}
	if cfg.Destination == "" {
		return fmt.Errorf("destination is required")
	}
	switch cfg.MuxType {
	case MuxTypeNone, MuxTypeFragment, MuxTypeSample:
	default:
		return &UnknownMuxTypeError{MuxType: string(cfg.MuxType)}
	}
	if cfg.TimeShiftBufferDepthS <= 0 {
		return fmt.Errorf("timeshiftbufferdepths must be positive")
	}
	if cfg.AdjustAvailabilityStartTimeS < 0 {
		return fmt.Errorf("adjustavailabilitystarttimes must be >= 0")
	}
	return nil
}
