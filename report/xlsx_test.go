package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/videoreport/api/job"
	"github.com/xuri/excelize/v2"
)

func TestGenerateProducesExactlyTwoSheetsByDefault(t *testing.T) {
	scenes := []job.Scene{
		{SceneNumber: 1, StartTime: 0, EndTime: 5, OCRText: "", NarrationText: "hello world"},
		{SceneNumber: 2, StartTime: 5, EndTime: 10},
	}
	stats := Stats{
		Video:  VideoMetadata{Width: 1280, Height: 720, AspectRatio: 16.0 / 9.0, DurationSec: 10},
		Params: DetectionParams{SceneCutThresholds: []float64{0.03, 0.05, 0.10}},
		Metadata: job.ProcessingMetadata{
			TotalScenes:   2,
			ScenesWithOCR: 0,
		},
	}

	data, err := Generate(scenes, stats)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, []string{"Video Analysis", "Statistics"}, wb.GetSheetList())
}

func TestGenerateIncludesWarningsSection(t *testing.T) {
	scenes := []job.Scene{{SceneNumber: 1, StartTime: 0, EndTime: 5}}
	stats := Stats{Warnings: []string{"BGM suppression failed, falling back to unprocessed audio"}}

	data, err := Generate(scenes, stats)
	require.NoError(t, err)
	require.NotEmpty(t, data)
}
