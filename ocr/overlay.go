package ocr

import (
	"strings"

	"github.com/videoreport/api/config"
	"github.com/videoreport/api/job"
)

// FilterPersistentOverlays implements §4.5.1's persistent-overlay filter: a
// line appearing in at least PersistentOverlayMinRatio of scenes, with at
// least PersistentOverlayMinScenes scenes overall, is treated as a
// station logo / watermark / standing caption and removed from every
// scene's text. A no-op below the minimum scene count. Mutates scenes in
// place and also returns the set of removed lines for observability.
func FilterPersistentOverlays(scenes []job.Scene) (removed []string) {
	if len(scenes) < config.PersistentOverlayMinScenes {
		return nil
	}

	lineSceneCount := map[string]int{}
	perSceneLines := make([][]string, len(scenes))
	for i, s := range scenes {
		lines := uniqueLines(s.OCRText)
		perSceneLines[i] = lines
		for _, l := range lines {
			lineSceneCount[l]++
		}
	}

	threshold := float64(len(scenes)) * config.PersistentOverlayMinRatio
	overlay := map[string]bool{}
	for line, count := range lineSceneCount {
		if float64(count) >= threshold {
			overlay[line] = true
			removed = append(removed, line)
		}
	}
	if len(overlay) == 0 {
		return nil
	}

	for i := range scenes {
		kept := make([]string, 0, len(perSceneLines[i]))
		for _, l := range perSceneLines[i] {
			if !overlay[l] {
				kept = append(kept, l)
			}
		}
		scenes[i].OCRText = strings.Join(kept, "\n")
	}
	return removed
}

// uniqueLines splits text on newlines and returns each distinct non-empty
// line once, preserving first-seen order.
func uniqueLines(text string) []string {
	seen := map[string]bool{}
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		lines = append(lines, line)
	}
	return lines
}
