package audio

import (
	"fmt"
	"math"

	"github.com/videoreport/api/config"
	"github.com/videoreport/api/job"
)

// VADModel is the pluggable voice-activity detector (§4.3.2's "VAD model
// boundary"): an external collaborator like the vision/speech providers,
// kept behind an interface so tests can supply a deterministic fake
// instead of shelling out to the real detector.
type VADModel interface {
	Detect(pcm []byte) ([]job.VoiceSegment, error)
}

// EnergyThresholdVADModel is the production VADModel: a bundled
// energy/silence-threshold detector that computes per-frame RMS energy
// in-process over PCM bytes (ToPCM produces them via the codec subprocess),
// consistent with "no ML runtime dependency" per SPEC_FULL.md §1B (the
// reference lineage has no ML-serving library in its stack, so this
// module doesn't reach for one either).
type EnergyThresholdVADModel struct {
	// SampleRate is the PCM sample rate (16kHz per §4.3.2).
	SampleRate int
	// FrameDuration is the analysis window used to bucket PCM samples
	// before computing per-frame RMS energy.
	FrameDuration float64
	// SilenceThreshold is the RMS energy (on a [0,1] normalized scale)
	// below which a frame is classified as silence.
	SilenceThreshold float64
}

func NewEnergyThresholdVADModel() *EnergyThresholdVADModel {
	return &EnergyThresholdVADModel{
		SampleRate:       16000,
		FrameDuration:    0.02,
		SilenceThreshold: 0.02,
	}
}

// Detect classifies 16-bit signed little-endian mono PCM into contiguous
// voice segments by framing the signal and thresholding each frame's RMS
// energy, then merging adjacent voiced frames.
func (m *EnergyThresholdVADModel) Detect(pcm []byte) ([]job.VoiceSegment, error) {
	if len(pcm)%2 != 0 {
		pcm = pcm[:len(pcm)-1]
	}
	samplesPerFrame := int(float64(m.SampleRate) * m.FrameDuration)
	if samplesPerFrame <= 0 {
		return nil, fmt.Errorf("invalid VAD frame duration %.4f", m.FrameDuration)
	}
	bytesPerFrame := samplesPerFrame * 2

	var segments []job.VoiceSegment
	var voiced bool
	var segStart float64

	totalFrames := len(pcm) / bytesPerFrame
	for i := 0; i < totalFrames; i++ {
		frame := pcm[i*bytesPerFrame : (i+1)*bytesPerFrame]
		energy := rmsEnergy(frame)
		frameStart := float64(i) * m.FrameDuration
		isVoice := energy >= m.SilenceThreshold

		if isVoice && !voiced {
			voiced = true
			segStart = frameStart
		} else if !isVoice && voiced {
			voiced = false
			segments = append(segments, job.VoiceSegment{
				StartTime: segStart,
				EndTime:   frameStart,
				Confidence: 1.0,
			})
		}
	}
	if voiced {
		segments = append(segments, job.VoiceSegment{
			StartTime:  segStart,
			EndTime:    float64(totalFrames) * m.FrameDuration,
			Confidence: 1.0,
		})
	}
	return segments, nil
}

func rmsEnergy(frame []byte) float64 {
	if len(frame) < 2 {
		return 0
	}
	var sumSquares float64
	n := len(frame) / 2
	for i := 0; i < n; i++ {
		sample := int16(uint16(frame[2*i]) | uint16(frame[2*i+1])<<8)
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
	}
	mean := sumSquares / float64(n)
	return math.Sqrt(mean)
}

// Chunk is a fixed-duration window of packed voice segments, ready for
// transcription fan-out (§4.3.2, §4.3.3).
type Chunk struct {
	StartTime float64
	EndTime   float64
	Segments  []job.VoiceSegment
}

// PackChunks discards segments shorter than config.MinSpeechDuration, then
// greedily packs the rest into chunks of at most config.MaxChunkDuration:
// a segment joins the current chunk if doing so keeps
// end_time - first_segment_start <= max_chunk_duration; otherwise a new
// chunk starts. Segments must already be time-ordered.
func PackChunks(segments []job.VoiceSegment) []Chunk {
	minDuration := config.MinSpeechDuration.Seconds()
	maxDuration := config.MaxChunkDuration.Seconds()

	var filtered []job.VoiceSegment
	for _, s := range segments {
		if s.Duration() >= minDuration {
			filtered = append(filtered, s)
		}
	}

	var chunks []Chunk
	var current *Chunk
	for _, s := range filtered {
		if current != nil && s.EndTime-current.Segments[0].StartTime <= maxDuration {
			current.Segments = append(current.Segments, s)
			current.EndTime = s.EndTime
			continue
		}
		if current != nil {
			chunks = append(chunks, *current)
		}
		current = &Chunk{StartTime: s.StartTime, EndTime: s.EndTime, Segments: []job.VoiceSegment{s}}
	}
	if current != nil {
		chunks = append(chunks, *current)
	}
	return chunks
}

// VoiceRatio returns the fraction of totalDuration covered by voice
// segments, surfaced for observability per §4.3.2's "Why VAD" note.
func VoiceRatio(segments []job.VoiceSegment, totalDuration float64) float64 {
	if totalDuration <= 0 {
		return 0
	}
	var voiced float64
	for _, s := range segments {
		voiced += s.Duration()
	}
	ratio := voiced / totalDuration
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}
