package video

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeCutsCollapsesNearDuplicatesKeepingMaxConfidence(t *testing.T) {
	cuts := []cut{
		{time: 5.0, confidence: 1},
		{time: 5.05, confidence: 3},
		{time: 12.0, confidence: 1},
	}
	merged := mergeCuts(cuts)
	require.Len(t, merged, 2)
	require.Equal(t, 5.0, merged[0].time)
	require.Equal(t, 3, merged[0].confidence)
}

func TestCollapseCloseCutsKeepsHigherConfidence(t *testing.T) {
	cuts := []cut{
		{time: 1.0, confidence: 1},
		{time: 2.5, confidence: 3},
		{time: 10.0, confidence: 1},
	}
	collapsed := collapseCloseCuts(cuts, 3.0)
	require.Len(t, collapsed, 2)
	require.Equal(t, 2.5, collapsed[0].time)
	require.Equal(t, 3, collapsed[0].confidence)
	require.Equal(t, 10.0, collapsed[1].time)
}

func TestBuildScenesDropsShortScenesAndKeepsSequentialNumbering(t *testing.T) {
	cuts := []cut{
		{time: 5.0, confidence: 1},
		{time: 5.5, confidence: 1}, // 0.5s scene, below 2.0s min -> merged into previous
		{time: 20.0, confidence: 1},
	}
	scenes := buildScenes(cuts, 30.0, 2.0)

	require.Len(t, scenes, 3)
	require.Equal(t, 1, scenes[0].SceneNumber)
	require.Equal(t, 0.0, scenes[0].StartTime)
	require.Equal(t, 5.5, scenes[0].EndTime) // absorbed the short 5.0-5.5 span

	require.Equal(t, 2, scenes[1].SceneNumber)
	require.Equal(t, 5.5, scenes[1].StartTime)
	require.Equal(t, 20.0, scenes[1].EndTime)

	require.Equal(t, 3, scenes[2].SceneNumber)
	require.Equal(t, 20.0, scenes[2].StartTime)
	require.Equal(t, 30.0, scenes[2].EndTime)
}

func TestParseShowinfoTimestamps(t *testing.T) {
	stderr := `[Parsed_showinfo_1 @ 0x0] n:0 pts:120 pts_time:5.005 duration:0.033
[Parsed_showinfo_1 @ 0x0] n:1 pts:360 pts_time:12.5 duration:0.033`
	times := parseShowinfoTimestamps(stderr)
	require.Equal(t, []float64{5.005, 12.5}, times)
}
