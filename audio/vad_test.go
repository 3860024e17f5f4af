package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/videoreport/api/job"
)

func tone(sampleRate int, durationSec float64, amplitude int16) []byte {
	n := int(float64(sampleRate) * durationSec)
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := amplitude
		buf[2*i] = byte(v)
		buf[2*i+1] = byte(v >> 8)
	}
	return buf
}

func TestEnergyThresholdVADDetectsSingleVoicedRegion(t *testing.T) {
	m := NewEnergyThresholdVADModel()
	silence := tone(m.SampleRate, 0.5, 0)
	voice := tone(m.SampleRate, 1.0, int16(float64(math.MaxInt16)*0.5))
	pcm := append(append([]byte{}, silence...), voice...)

	segments, err := m.Detect(pcm)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	require.InDelta(t, 0.5, segments[0].StartTime, 0.05)
	require.InDelta(t, 1.5, segments[0].EndTime, 0.05)
}

func TestPackChunksDiscardsShortSegmentsAndSplitsOnMaxDuration(t *testing.T) {
	segments := []job.VoiceSegment{
		{StartTime: 0, EndTime: 0.1},   // below 0.25s minimum, discarded
		{StartTime: 1, EndTime: 3},     // 2s
		{StartTime: 3.5, EndTime: 6},   // would make chunk span 0..6 (>10s)? no, 6-1=5, fits
		{StartTime: 11, EndTime: 12.5}, // starts a new chunk: 12.5-1 > 10
	}
	chunks := PackChunks(segments)
	require.Len(t, chunks, 2)
	require.Len(t, chunks[0].Segments, 2)
	require.Len(t, chunks[1].Segments, 1)
}

func TestVoiceRatio(t *testing.T) {
	segments := []job.VoiceSegment{{StartTime: 0, EndTime: 5}, {StartTime: 10, EndTime: 15}}
	require.InDelta(t, 0.5, VoiceRatio(segments, 20), 0.001)
	require.Equal(t, 0.0, VoiceRatio(segments, 0))
}
