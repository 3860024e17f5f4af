package report

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/videoreport/api/job"
)

func TestAlignNarrationAssignsByStartTimestamp(t *testing.T) {
	scenes := []job.Scene{
		{SceneNumber: 1, StartTime: 0, EndTime: 5},
		{SceneNumber: 2, StartTime: 5, EndTime: 10},
	}
	segments := []job.TranscriptSegment{
		{Timestamp: 1.0, Text: "hello"},
		{Timestamp: 0.5, Text: "world"},
		{Timestamp: 6.0, Text: "second scene"},
	}

	aligned := AlignNarration(scenes, segments)
	require.Equal(t, "world hello", aligned[0].NarrationText)
	require.Equal(t, "second scene", aligned[1].NarrationText)
}

func TestAlignNarrationLeavesSceneEmptyWithNoOverlap(t *testing.T) {
	scenes := []job.Scene{{SceneNumber: 1, StartTime: 0, EndTime: 5}}
	aligned := AlignNarration(scenes, nil)
	require.Equal(t, "", aligned[0].NarrationText)
}

func TestAlignNarrationBoundarySegmentGoesToContainingScene(t *testing.T) {
	scenes := []job.Scene{
		{SceneNumber: 1, StartTime: 0, EndTime: 5},
		{SceneNumber: 2, StartTime: 5, EndTime: 10},
	}
	segments := []job.TranscriptSegment{{Timestamp: 5.0, Text: "exactly on boundary"}}
	aligned := AlignNarration(scenes, segments)
	require.Equal(t, "", aligned[0].NarrationText)
	require.Equal(t, "exactly on boundary", aligned[1].NarrationText)
}
