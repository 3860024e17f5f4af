package video

import "fmt"

const (
	TrackTypeVideo = "video"
	TrackTypeAudio = "audio"
)

// DefaultBitrate is substituted when ffprobe can't report a bitrate for a
// track (seen for some streamed/remuxed containers).
const DefaultBitrate = 4_000_000

// InputVideo is the subset of a probed source file this module cares about:
// enough to drive scene detection, audio extraction and the report's
// metadata (§4.4, §4.6). It intentionally drops the teacher's ABR-ladder
// and transcode-profile fields, which have no use once there is no
// transcoding step.
type InputVideo struct {
	Format    string       `json:"format,omitempty"`
	Tracks    []InputTrack `json:"tracks,omitempty"`
	Duration  float64      `json:"duration,omitempty"`
	SizeBytes int64        `json:"size,omitempty"`
}

// GetTrack returns the first track of the given type, or an error if none
// is present.
func (i InputVideo) GetTrack(trackType string) (InputTrack, error) {
	if trackType != TrackTypeVideo && trackType != TrackTypeAudio {
		return InputTrack{}, fmt.Errorf("invalid track type - must be '%s' or '%s'", TrackTypeVideo, TrackTypeAudio)
	}
	for _, t := range i.Tracks {
		if t.Type == trackType {
			return t, nil
		}
	}
	return InputTrack{}, fmt.Errorf("no '%s' tracks found", trackType)
}

// HasAudio reports whether the probed input has at least one audio track,
// gating whether the audio phase (§4.3) runs at all.
func (i InputVideo) HasAudio() bool {
	_, err := i.GetTrack(TrackTypeAudio)
	return err == nil
}

type VideoTrack struct {
	Width              int64   `json:"width,omitempty"`
	Height             int64   `json:"height,omitempty"`
	PixelFormat        string  `json:"pixel_format,omitempty"`
	FPS                float64 `json:"fps,omitempty"`
	Rotation           int64   `json:"rotation,omitempty"`
	DisplayAspectRatio string  `json:"display_aspect_ratio,omitempty"`
}

type AudioTrack struct {
	Channels   int `json:"channels,omitempty"`
	SampleRate int `json:"sample_rate,omitempty"`
	SampleBits int `json:"sample_bits,omitempty"`
	BitDepth   int `json:"bit_depth,omitempty"`
}

type InputTrack struct {
	Type    string `json:"type"`
	Codec   string `json:"codec"`
	Bitrate int64  `json:"bitrate"`

	// Fields only used if this is a Video Track
	VideoTrack

	// Fields only used if this is an Audio Track
	AudioTrack
}
