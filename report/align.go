// Package report assembles the spreadsheet artifact (§4.6): narration-to-
// scene alignment and the two-sheet xlsx workbook via xuri/excelize/v2, the
// out-of-pack dependency named in SPEC_FULL.md §1B since no repo in the
// example pack writes OOXML.
package report

import (
	"sort"
	"strings"

	"github.com/videoreport/api/job"
)

// AlignNarration implements §4.6's alignment rule: for each scene, join
// (sorted by timestamp) the text of every segment whose timestamp falls in
// [start_time, end_time). A segment overlapping a scene boundary is
// assigned to the scene containing its start, never split across two.
func AlignNarration(scenes []job.Scene, segments []job.TranscriptSegment) []job.Scene {
	sorted := make([]job.TranscriptSegment, len(segments))
	copy(sorted, segments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	aligned := make([]job.Scene, len(scenes))
	copy(aligned, scenes)

	for _, seg := range sorted {
		idx := sceneIndexFor(aligned, seg.Timestamp)
		if idx < 0 {
			continue
		}
		if aligned[idx].NarrationText == "" {
			aligned[idx].NarrationText = seg.Text
		} else {
			aligned[idx].NarrationText = strings.TrimSpace(aligned[idx].NarrationText + " " + seg.Text)
		}
	}
	return aligned
}

func sceneIndexFor(scenes []job.Scene, timestamp float64) int {
	for i, s := range scenes {
		if timestamp >= s.StartTime && timestamp < s.EndTime {
			return i
		}
	}
	// A segment starting at or after the last scene's end (e.g. narration
	// trailing past a final cut that lands just before end-of-video) still
	// belongs to that last scene rather than nowhere.
	if len(scenes) > 0 && timestamp >= scenes[len(scenes)-1].EndTime {
		return len(scenes) - 1
	}
	return -1
}
