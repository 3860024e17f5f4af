package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSceneTimecodeAndMidTime(t *testing.T) {
	s := Scene{SceneNumber: 2, StartTime: 65, EndTime: 75}
	require.Equal(t, "00:01:05", s.Timecode())
	require.Equal(t, 70.0, s.MidTime())
}

func TestSceneTimecodeZero(t *testing.T) {
	s := Scene{StartTime: 0, EndTime: 5}
	require.Equal(t, "00:00:00", s.Timecode())
}

func TestVoiceSegmentDuration(t *testing.T) {
	v := VoiceSegment{StartTime: 1.5, EndTime: 4.0}
	require.InDelta(t, 2.5, v.Duration(), 0.0001)
}

func TestJobStatusIsStale(t *testing.T) {
	threshold := 5 * time.Minute
	updatedAt, err := time.Parse(time.RFC3339, "2024-01-01T00:00:00Z")
	require.NoError(t, err)
	now, err := time.Parse(time.RFC3339, "2024-01-01T00:06:00Z")
	require.NoError(t, err)

	base := JobStatus{Status: StatusProcessing, UpdatedAt: updatedAt}
	require.True(t, base.IsStale(now, threshold))

	base.Status = StatusCompleted
	require.False(t, base.IsStale(now, threshold))
}
