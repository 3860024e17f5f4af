package steps

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type processingMetadata struct {
	SegmentCount        int    `json:"segment_count"`
	TotalScenes         int    `json:"total_scenes"`
	ScenesWithOCR       int    `json:"scenes_with_ocr"`
	ScenesWithNarration int    `json:"scenes_with_narration"`
	DetectionMode       string `json:"detection_mode"`
}

func decodeMetadata(raw json.RawMessage) (processingMetadata, error) {
	var m processingMetadata
	if len(raw) == 0 {
		return m, nil
	}
	err := json.Unmarshal(raw, &m)
	return m, err
}

// CheckProgressCrossesThresholdsWithinSeconds polls uploadID to completion,
// recording every observed progress value, then asserts the trace never
// decreases and crosses each of thresholds in order — S4's
// batch-continuation assertion (25, 47, 69, 89, 100).
func (s *StepContext) CheckProgressCrossesThresholdsWithinSeconds(uploadID string, thresholds []int, secs int) error {
	deadline := time.Now().Add(time.Duration(secs) * time.Second)
	last := -1
	next := 0
	for time.Now().Before(deadline) {
		payload, err := s.pollStatus(uploadID)
		if err != nil {
			return err
		}
		if payload.Progress < last {
			return fmt.Errorf("progress went backwards: %d then %d", last, payload.Progress)
		}
		last = payload.Progress
		for next < len(thresholds) && last >= thresholds[next] {
			next++
		}
		if payload.Status == "completed" {
			break
		}
		if payload.Status == "error" {
			return fmt.Errorf("job %q failed: %s", uploadID, payload.Error)
		}
		time.Sleep(200 * time.Millisecond)
	}
	if next < len(thresholds) {
		return fmt.Errorf("progress trace never crossed threshold %d (last seen %d)", thresholds[next], last)
	}
	return nil
}

// CheckTaskQueueCallCount asserts the fake task queue observed exactly want
// calls to path, S4's "task-queue receives exactly 3 /process-ocr-batch
// calls" assertion.
func (s *StepContext) CheckTaskQueueCallCount(want int, path string) error {
	got := s.TaskQueue.CallCount(path)
	if got != want {
		return fmt.Errorf("expected %d calls to %s, got %d", want, path, got)
	}
	return nil
}

// CheckProgressCrossesThresholds parses a Gherkin comma-list like
// "25, 47, 69, 89, 100" and delegates to
// CheckProgressCrossesThresholdsWithinSeconds — S4's batch-continuation
// assertion.
func (s *StepContext) CheckProgressCrossesThresholds(uploadID, thresholdsCSV string, secs int) error {
	parts := strings.Split(thresholdsCSV, ",")
	thresholds := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return fmt.Errorf("parsing threshold list %q: %w", thresholdsCSV, err)
		}
		thresholds = append(thresholds, v)
	}
	return s.CheckProgressCrossesThresholdsWithinSeconds(uploadID, thresholds, secs)
}

// CheckVisionFallbackServicedScenes is S5's failover assertion, checked
// indirectly via the fallback provider's call count rather than reading
// the Chain's internal cooldown state directly.
func (s *StepContext) CheckVisionFallbackServicedScenes(want int) error {
	got := s.VisionFallback.CallCount()
	if got < want {
		return fmt.Errorf("expected the fallback vision provider to service at least %d scenes, serviced %d", want, got)
	}
	return nil
}

// CheckJobCompletedWithTotalScenesWithinSeconds waits for uploadID to
// complete and asserts its metadata.total_scenes, e.g. S1's
// total_scenes=2.
func (s *StepContext) CheckJobCompletedWithTotalScenesWithinSeconds(uploadID string, want, secs int) error {
	payload, err := s.WaitForStatus(uploadID, "completed", time.Duration(secs)*time.Second)
	if err != nil {
		return err
	}
	meta, err := decodeMetadata(payload.Metadata)
	if err != nil {
		return err
	}
	if meta.TotalScenes != want {
		return fmt.Errorf("expected total_scenes=%d, got %d", want, meta.TotalScenes)
	}
	if payload.Progress != 100 {
		return fmt.Errorf("expected progress=100 on completion, got %d", payload.Progress)
	}
	return nil
}

// CheckJobCompletedWithSegmentCountWithinSeconds is S2's silent-video
// assertion: segment_count=0 and the job still reaches completed.
func (s *StepContext) CheckJobCompletedWithSegmentCountWithinSeconds(uploadID string, want, secs int) error {
	payload, err := s.WaitForStatus(uploadID, "completed", time.Duration(secs)*time.Second)
	if err != nil {
		return err
	}
	meta, err := decodeMetadata(payload.Metadata)
	if err != nil {
		return err
	}
	if meta.SegmentCount != want {
		return fmt.Errorf("expected segment_count=%d, got %d", want, meta.SegmentCount)
	}
	return nil
}

// CheckJobFailedWithCodeWithinSeconds is S6's assertion: the interrupted
// job's status row carries the closed-set error code's user message
// (§4.10).
func (s *StepContext) CheckJobFailedWithCodeWithinSeconds(uploadID, wantSubstring string, secs int) error {
	deadline := time.Now().Add(time.Duration(secs) * time.Second)
	for time.Now().Before(deadline) {
		payload, err := s.pollStatus(uploadID)
		if err != nil {
			return err
		}
		if payload.Status == "error" {
			if !strings.Contains(payload.Error, wantSubstring) {
				return fmt.Errorf("job %q error %q does not mention %q", uploadID, payload.Error, wantSubstring)
			}
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("job %q did not reach status=error within %ds", uploadID, secs)
}
