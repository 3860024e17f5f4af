package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/videoreport/api/config"
	xerrors "github.com/videoreport/api/errors"
	"github.com/videoreport/api/job"
	"github.com/videoreport/api/report"
	"github.com/videoreport/api/video"
)

// runReportPhase implements §4.6: align recovered narration onto scenes,
// render the two-sheet workbook, and upload it to its result key.
func (o *Orchestrator) runReportPhase(ctx context.Context, st *jobState) error {
	st.status.Phase = job.PhaseReport
	st.status.PhaseStatus = job.PhaseStatusInProgress
	st.status.Stage = job.StageNarrationMapping
	st.status.Progress = phaseProgress(config.Phase3ProgressStart, config.Phase3ProgressEnd, 10)
	st.status.UpdatedAt = config.Clock.Now()

	st.scenes = report.AlignNarration(st.scenes, st.transcript)

	var width, height int64
	var aspectRatio float64
	if vt, err := st.video.GetTrack(video.TrackTypeVideo); err == nil {
		width, height = vt.Width, vt.Height
		if height != 0 {
			aspectRatio = float64(width) / float64(height)
		}
	}

	scenesWithOCR := 0
	scenesWithNarration := 0
	transcriptChars := 0
	for _, s := range st.scenes {
		if s.OCRText != "" {
			scenesWithOCR++
		}
		if s.NarrationText != "" {
			scenesWithNarration++
		}
	}
	for _, t := range st.transcript {
		transcriptChars += len(t.Text)
	}

	stats := report.Stats{
		Video: report.VideoMetadata{
			Width:       width,
			Height:      height,
			AspectRatio: aspectRatio,
			DurationSec: st.video.Duration,
		},
		Params: report.DetectionParams{
			DetectionMode:        st.job.DetectionMode,
			MinSceneDurationSec:  config.MinSceneDuration.Seconds(),
			MinSceneIntervalSec:  config.MinSceneInterval.Seconds(),
			SceneCutThresholds:   []float64{config.SceneCutThresholdLow, config.SceneCutThresholdMedium, config.SceneCutThresholdHigh},
			MaxChunkDurationSec:  config.MaxChunkDuration.Seconds(),
			MinSpeechDurationSec: config.MinSpeechDuration.Seconds(),
		},
		Metadata: job.ProcessingMetadata{
			DurationSec:              st.video.Duration,
			SegmentCount:             len(st.transcript),
			OCRResultCount:           scenesWithOCR,
			TranscriptionLengthChars: transcriptChars,
			TotalScenes:              len(st.scenes),
			ScenesWithOCR:            scenesWithOCR,
			ScenesWithNarration:      scenesWithNarration,
			DetectionMode:            st.job.DetectionMode,
		},
		GeneratedAt: config.Clock.Now(),
	}
	if !st.video.HasAudio() {
		stats.Warnings = append(stats.Warnings, "This video has no audio track; narration columns are empty.")
	}

	st.status.Stage = job.StageExcelGeneration
	st.status.Progress = phaseProgress(config.Phase3ProgressStart, config.Phase3ProgressEnd, 50)
	st.status.UpdatedAt = config.Clock.Now()

	workbook, err := report.Generate(st.scenes, stats)
	if err != nil {
		return xerrors.NewJobFatalError(xerrors.ErrReportAssemblyFailed, err)
	}

	resultKey := resultObjectKey(st.job.UserID, st.job.UploadID, st.job.FileName, config.Clock.Now())
	st.status.Stage = job.StageUploadResult
	st.status.Progress = phaseProgress(config.Phase3ProgressStart, config.Phase3ProgressEnd, 85)
	st.status.UpdatedAt = config.Clock.Now()

	if err := o.Objects.Upload(ctx, resultKey, bytes.NewReader(workbook), xlsxContentType); err != nil {
		return xerrors.NewJobFatalError(xerrors.ErrReportAssemblyFailed, err)
	}

	stats.Metadata.ResultR2Key = resultKey
	st.status.ResultKey = resultKey
	st.status.Metadata = &stats.Metadata
	return nil
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// resultObjectKey builds the results/{user_id}/{upload_id}/{title}_{ts}.xlsx
// key (§6): titles are sanitized by replacing every character outside
// [A-Za-z0-9_-] with '_' and truncating to 50 characters; timestamps use
// ISO-8601 with ':' and '.' replaced by '-'.
func resultObjectKey(userID, uploadID, fileName string, ts time.Time) string {
	title := sanitizeTitle(strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName)))
	if title == "" {
		title = "report"
	}
	timestamp := strings.NewReplacer(":", "-", ".", "-").Replace(ts.UTC().Format(time.RFC3339Nano))
	return fmt.Sprintf("results/%s/%s/%s_%s.xlsx", userID, uploadID, title, timestamp)
}

func sanitizeTitle(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if len(out) > 50 {
		out = out[:50]
	}
	return out
}
