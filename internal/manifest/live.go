package manifest

import (
	"fmt"
	"time"

	m "github.com/Eyevinn/dash-mpd/mpd"
)

func durationSeconds(d m.Duration) float64 {
	return time.Duration(d).Seconds()
}

// LiveParams are the values the startup sequence computes once and bakes
// into the dynamic MPD.
type LiveParams struct {
	AvailabilityStartTimeSeconds int64
	TimeShiftBufferDepthSeconds  int
	MinimumUpdatePeriodSeconds   int
}

// MakeLiveMpd turns the parsed static model into a dynamic one in place:
// type="dynamic", availabilityStartTime/timeShiftBufferDepth/
// minimumUpdatePeriod set, mediaPresentationDuration removed, every
// Period's start reset to PT0S.
func (mdl *Model) MakeLiveMpd(p LiveParams) {
	mpd := mdl.MPD
	mpd.Type = m.Ptr("dynamic")
	mpd.MediaPresentationDuration = nil
	mpd.AvailabilityStartTime = m.ConvertToDateTime(float64(p.AvailabilityStartTimeSeconds))
	mpd.TimeShiftBufferDepth = m.Seconds2DurPtr(p.TimeShiftBufferDepthSeconds)
	mpd.MinimumUpdatePeriod = m.Seconds2DurPtr(p.MinimumUpdatePeriodSeconds)
	for _, period := range mpd.Periods {
		period.Start = m.Seconds2DurPtr(0)
	}
}

// MakeLiveMultiplexedMpd applies MakeLiveMpd and then folds the audio
// adaptation set into the video one: a ContentComponent per track is
// inserted at the head of the video adaptation set, its own contentType
// attribute is dropped, its representation takes the muxed ID and combined
// codecs string, and the audio adaptation set is removed from the period.
func (mdl *Model) MakeLiveMultiplexedMpd(p LiveParams) error {
	mdl.MakeLiveMpd(p)

	if len(mdl.MPD.Periods) != 1 {
		return fmt.Errorf("multiplexed live MPD requires exactly 1 Period")
	}
	period := mdl.MPD.Periods[0]

	var audio, video *AdaptationSet
	for _, as := range mdl.AdaptationSets {
		switch as.ContentType {
		case "audio":
			audio = as
		case "video":
			video = as
		}
	}
	if audio == nil || video == nil {
		return fmt.Errorf("multiplexed live MPD requires both an audio and a video adaptation set")
	}

	audioTrackID, err := trackIDFromRepresentation(audio.Representation)
	if err != nil {
		return fmt.Errorf("audio trackID: %w", err)
	}
	videoTrackID, err := trackIDFromRepresentation(video.Representation)
	if err != nil {
		return fmt.Errorf("video trackID: %w", err)
	}

	videoCC := &m.ContentComponentType{Id: m.Ptr(videoTrackID), ContentType: "video"}
	audioCC := &m.ContentComponentType{Id: m.Ptr(audioTrackID), ContentType: "audio"}
	video.raw.ContentComponents = append([]*m.ContentComponentType{videoCC, audioCC}, video.raw.ContentComponents...)

	video.raw.ContentType = ""
	video.ContentType = ""

	video.Representation.Id = mdl.MuxedRepresentationId
	video.Representation.raw.Id = mdl.MuxedRepresentationId
	if audio.Representation.Codecs != "" && video.Representation.Codecs != "" {
		combined := audio.Representation.Codecs + "," + video.Representation.Codecs
		video.Representation.Codecs = combined
		video.Representation.raw.Codecs = combined
	}

	kept := period.AdaptationSets[:0]
	for _, as := range period.AdaptationSets {
		if as != audio.raw {
			kept = append(kept, as)
		}
	}
	period.AdaptationSets = kept

	var survivors []*AdaptationSet
	for _, as := range mdl.AdaptationSets {
		if as != audio {
			survivors = append(survivors, as)
		}
	}
	mdl.AdaptationSets = survivors

	return nil
}

// trackIDFromRepresentation returns the trackID recorded with SetTrackID
// (scheduler.DiscoverTrack records it from segbox.InspectInit's result), or
// an error when none has been recorded.
func trackIDFromRepresentation(r *Representation) (uint32, error) {
	if r.trackID == 0 {
		return 0, fmt.Errorf("representation %s has no trackID set", r.Id)
	}
	return r.trackID, nil
}

// SetTrackID records the trackID read from this representation's init
// segment, used only when building a multiplexed MPD's ContentComponents.
func (r *Representation) SetTrackID(id uint32) {
	r.trackID = id
}
