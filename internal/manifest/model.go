// Package manifest parses a static DASH MPD, derives the per-representation
// metadata the scheduler needs, and rewrites it into a dynamic (live) MPD,
// optionally folding audio and video into a single multiplexed adaptation
// set.
package manifest

import (
	"fmt"
	"strings"

	m "github.com/Eyevinn/dash-mpd/mpd"
)

// Model is the parsed MPD plus the derived fields the rest of the daemon
// needs: the root namespace (preserved verbatim on output) and one
// AdaptationSet per content type.
type Model struct {
	MPD       *m.MPD
	Namespace string

	MediaPresentationDurationSeconds int

	AdaptationSets []*AdaptationSet

	// MuxedRepresentationId is "<audioRepId>_<videoRepId>" when both an
	// audio and a video adaptation set are present.
	MuxedRepresentationId string
}

// AdaptationSet is one content-type track, lifted from its SegmentTemplate
// and single Representation child.
type AdaptationSet struct {
	raw *m.AdaptationSetType

	ContentType string

	InitializationPattern string
	MediaPattern          string
	StartNumber           int
	SegmentDurationTicks  uint64
	Timescale             uint32

	Representation *Representation
}

// Representation is the one encoded variant an AdaptationSet carries. The
// core rejects adaptation sets with more than one.
type Representation struct {
	raw *m.RepresentationType

	Id        string
	Bandwidth uint32
	Codecs    string

	parent  *AdaptationSet
	trackID uint32
}

// InitializationPath substitutes $RepresentationID$ and $Bandwidth$ into the
// adaptation set's initialization pattern.
func (r *Representation) InitializationPath() string {
	return r.substitute(r.parent.InitializationPattern)
}

// MediaPath substitutes $RepresentationID$, $Bandwidth$ and $Number$ into
// the adaptation set's media pattern.
func (r *Representation) MediaPath(n int) string {
	str := r.substitute(r.parent.MediaPattern)
	return strings.ReplaceAll(str, "$Number$", fmt.Sprintf("%d", n))
}

// MediaNamePattern substitutes $RepresentationID$ and $Bandwidth$ but leaves
// $Number$ in place, for callers that need to match file names on disk.
func (r *Representation) MediaNamePattern() string {
	return r.substitute(r.parent.MediaPattern)
}

func (r *Representation) substitute(pattern string) string {
	str := strings.ReplaceAll(pattern, "$RepresentationID$", r.Id)
	str = strings.ReplaceAll(str, "$Bandwidth$", fmt.Sprintf("%d", r.Bandwidth))
	return str
}

// Parse reads an MPD document, validates its shape against what the core
// supports (one Period, exactly one Representation per AdaptationSet with a
// SegmentTemplate), and returns the derived Model.
func Parse(data []byte) (*Model, error) {
	mpd, err := m.ReadFromString(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse MPD: %w", err)
	}
	if mpd.Type == nil || *mpd.Type != "static" {
		return nil, fmt.Errorf("input MPD must have type=static")
	}
	if len(mpd.Periods) != 1 {
		return nil, fmt.Errorf("expected exactly 1 Period, got %d", len(mpd.Periods))
	}
	period := mpd.Periods[0]

	mdl := &Model{
		MPD:       mpd,
		Namespace: rootNamespace(data),
	}
	if mpd.MediaPresentationDuration != nil {
		mdl.MediaPresentationDurationSeconds = int(durationSeconds(*mpd.MediaPresentationDuration))
	}

	seen := make(map[string]bool)
	var audioRepId, videoRepId string
	for _, as := range period.AdaptationSets {
		adapt, err := newAdaptationSet(as)
		if err != nil {
			return nil, err
		}
		if seen[adapt.ContentType] {
			return nil, fmt.Errorf("duplicate contentType %q in MPD", adapt.ContentType)
		}
		seen[adapt.ContentType] = true
		mdl.AdaptationSets = append(mdl.AdaptationSets, adapt)
		switch adapt.ContentType {
		case "audio":
			audioRepId = adapt.Representation.Id
		case "video":
			videoRepId = adapt.Representation.Id
		}
	}
	if audioRepId != "" && videoRepId != "" {
		mdl.MuxedRepresentationId = audioRepId + "_" + videoRepId
	}
	return mdl, nil
}

func newAdaptationSet(as *m.AdaptationSetType) (*AdaptationSet, error) {
	if string(as.ContentType) == "" {
		return nil, fmt.Errorf("adaptation set has no contentType")
	}
	if as.SegmentTemplate == nil {
		return nil, fmt.Errorf("adaptation set %s has no SegmentTemplate", as.ContentType)
	}
	st := as.SegmentTemplate
	if len(as.Representations) == 0 {
		return nil, fmt.Errorf("adaptation set %s has no Representation", as.ContentType)
	}
	if len(as.Representations) > 1 {
		return nil, fmt.Errorf("adaptation set %s has %d representations, only 1 supported", as.ContentType, len(as.Representations))
	}
	rep := as.Representations[0]
	if rep.SegmentTemplate != nil {
		return nil, fmt.Errorf("representation %s carries its own SegmentTemplate, only AdaptationSet level is supported", rep.Id)
	}

	adapt := &AdaptationSet{
		raw:                   as,
		ContentType:           string(as.ContentType),
		InitializationPattern: st.Initialization,
		MediaPattern:          st.Media,
	}
	if st.StartNumber != nil {
		adapt.StartNumber = int(*st.StartNumber)
	}
	if st.Duration != nil {
		adapt.SegmentDurationTicks = uint64(*st.Duration)
	}
	if st.Timescale != nil {
		adapt.Timescale = *st.Timescale
	}

	repr := &Representation{
		raw:       rep,
		Id:        rep.Id,
		Bandwidth: rep.Bandwidth,
		Codecs:    rep.Codecs,
		parent:    adapt,
	}
	adapt.Representation = repr
	return adapt, nil
}

func rootNamespace(data []byte) string {
	const key = `xmlns="`
	s := string(data)
	idx := strings.Index(s, key)
	if idx < 0 {
		return DefaultNamespace
	}
	rest := s[idx+len(key):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return DefaultNamespace
	}
	return rest[:end]
}

// DefaultNamespace is the DASH MPD schema namespace used when an input
// manifest carries none, or when fixNamespace forces it on output.
const DefaultNamespace = "urn:mpeg:dash:schema:mpd:2011"
