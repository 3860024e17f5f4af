package ocr

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/videoreport/api/job"
)

func TestFilterPersistentOverlaysRemovesCommonLine(t *testing.T) {
	// S3: 6 scenes, every scene's OCR returns "Channel42\n<unique line>".
	scenes := make([]job.Scene, 6)
	for i := range scenes {
		scenes[i] = job.Scene{
			SceneNumber: i + 1,
			OCRText:     "Channel42\nunique-" + string(rune('a'+i)),
		}
	}

	removed := FilterPersistentOverlays(scenes)
	require.Contains(t, removed, "Channel42")

	for i, s := range scenes {
		require.NotContains(t, s.OCRText, "Channel42")
		require.Contains(t, s.OCRText, "unique-"+string(rune('a'+i)))
	}
}

func TestFilterPersistentOverlaysNoopBelowMinScenes(t *testing.T) {
	scenes := []job.Scene{
		{SceneNumber: 1, OCRText: "Channel42"},
		{SceneNumber: 2, OCRText: "Channel42"},
	}
	removed := FilterPersistentOverlays(scenes)
	require.Empty(t, removed)
	require.Equal(t, "Channel42", scenes[0].OCRText)
}

func TestFilterPersistentOverlaysKeepsRareLines(t *testing.T) {
	scenes := []job.Scene{
		{SceneNumber: 1, OCRText: "only once"},
		{SceneNumber: 2, OCRText: "also once"},
		{SceneNumber: 3, OCRText: "and once more"},
	}
	removed := FilterPersistentOverlays(scenes)
	require.Empty(t, removed)
}
