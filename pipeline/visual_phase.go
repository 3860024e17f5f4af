package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/videoreport/api/config"
	xerrors "github.com/videoreport/api/errors"
	"github.com/videoreport/api/job"
	"github.com/videoreport/api/log"
	"github.com/videoreport/api/ocr"
	"github.com/videoreport/api/video"
)

// visionFanoutLimit bounds how many scenes this process OCRs concurrently;
// the vision Chain's own per-provider Limiter (§4.7, default 10 concurrent)
// is the real admission control, this is just the fan-out width feeding it.
const visionFanoutLimit = 10

// runVisualPhase implements §4.4/§4.5: scene detection, frame extraction,
// per-scene (or batch-chained) OCR, and persistent-overlay filtering. It
// returns batched=true when phase 2 has been handed off to
// /process-ocr-batch continuation rather than completed inline.
func (o *Orchestrator) runVisualPhase(ctx context.Context, st *jobState) (batched bool, err error) {
	st.status.Phase = job.PhaseVisual
	st.status.PhaseStatus = job.PhaseStatusInProgress
	st.status.Stage = job.StageSceneDetection
	st.status.Progress = config.Phase2ProgressStart
	st.status.UpdatedAt = config.Clock.Now()

	var scenes []job.Scene
	if st.job.DetectionMode == job.DetectionModeEnhanced {
		scenes, err = video.DetectScenesEnhanced(ctx, st.sourceVid, st.video.Duration)
	} else {
		scenes, err = video.DetectScenes(ctx, st.sourceVid, st.video.Duration)
	}
	if err != nil {
		return false, xerrors.NewJobFatalError(xerrors.ErrDecodeFailed, err)
	}
	if len(scenes) == 0 {
		// §7: empty scene list is a non-retryable step error, not job-fatal;
		// the report still assembles, just with no rows.
		log.Log(st.job.UploadID, "no scenes detected, report will have no Video Analysis rows")
	}

	st.status.Stage = job.StageFrameExtraction
	st.status.Progress = phaseProgress(config.Phase2ProgressStart, config.Phase2ProgressEnd, 10)
	st.status.UpdatedAt = config.Clock.Now()

	batchSize := o.Cli.OCRBatchSize
	if batchSize <= 0 {
		batchSize = config.DefaultBatchSize
	}

	if len(scenes) > batchSize {
		if err := o.dispatchBatchedOCR(ctx, st, scenes, batchSize); err != nil {
			return false, err
		}
		return true, nil
	}

	if err := o.extractFrames(ctx, st, scenes); err != nil {
		return false, err
	}

	st.status.Stage = job.StageOCRProcessing
	st.status.Progress = phaseProgress(config.Phase2ProgressStart, config.Phase2ProgressEnd, 40)
	st.status.UpdatedAt = config.Clock.Now()

	if err := o.performOCR(ctx, st, scenes); err != nil {
		return false, err
	}

	removed := ocr.FilterPersistentOverlays(scenes)
	if len(removed) > 0 {
		log.Log(st.job.UploadID, "filtered persistent overlay lines", "lines", strings.Join(removed, "|"))
	}

	st.scenes = scenes
	st.status.Stage = job.StageOCRCompleted
	st.status.Progress = config.Phase2ProgressEnd
	st.status.PhaseStatus = job.PhaseStatusCompleted
	st.status.UpdatedAt = config.Clock.Now()
	return false, nil
}

// extractFrames fills in ScreenshotPath for every scene at its mid_time,
// resized to the configured frame resolution (§4.4).
func (o *Orchestrator) extractFrames(ctx context.Context, st *jobState, scenes []job.Scene) error {
	for i := range scenes {
		path := filepath.Join(st.tempDir, "scene_"+strconv.Itoa(scenes[i].SceneNumber)+".png")
		if err := video.ExtractFrame(ctx, st.sourceVid, scenes[i].MidTime(), path); err != nil {
			return xerrors.NewJobFatalError(xerrors.ErrDecodeFailed, err)
		}
		scenes[i].ScreenshotPath = path
	}
	return nil
}

// performOCR runs per-scene OCR concurrently (standard mode: a single frame
// per scene; enhanced mode: 3 candidate frames per scene resolved by the
// first_stable strategy, §4.5.1).
func (o *Orchestrator) performOCR(ctx context.Context, st *jobState, scenes []job.Scene) error {
	eg, egCtx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, visionFanoutLimit)
	var mu sync.Mutex

	for i := range scenes {
		i := i
		eg.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-egCtx.Done():
				return egCtx.Err()
			}
			defer func() { <-sem }()

			var text string
			var err error
			if st.job.DetectionMode == job.DetectionModeEnhanced {
				text, err = o.multiFrameOCR(egCtx, st, scenes[i])
			} else {
				text, err = o.singleFrameOCR(egCtx, scenes[i])
			}
			if err != nil {
				// §7: an OCR response unparseable / a scene whose every
				// provider attempt failed is a non-retryable step error —
				// skip this scene's text rather than failing the job.
				log.LogError(st.job.UploadID, "OCR failed for scene, leaving text empty", err, "scene_number", scenes[i].SceneNumber)
				return nil
			}

			mu.Lock()
			scenes[i].OCRText = text
			mu.Unlock()
			return nil
		})
	}
	return eg.Wait()
}

func (o *Orchestrator) singleFrameOCR(ctx context.Context, scene job.Scene) (string, error) {
	data, err := os.ReadFile(scene.ScreenshotPath)
	if err != nil {
		return "", err
	}
	result, err := o.Vision.PerformOCR(ctx, data)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// multiFrameOCR extracts frames at 25%/50%/75% of the scene and picks
// among them via first_stable: the earliest frame whose normalized text
// equals the next frame's, else the frame with the most extracted text.
func (o *Orchestrator) multiFrameOCR(ctx context.Context, st *jobState, scene job.Scene) (string, error) {
	duration := scene.EndTime - scene.StartTime
	positions := []float64{
		scene.StartTime + duration*0.25,
		scene.StartTime + duration*0.50,
		scene.StartTime + duration*0.75,
	}

	texts := make([]string, len(positions))
	for i, t := range positions {
		path := filepath.Join(st.tempDir, "scene_"+strconv.Itoa(scene.SceneNumber)+"_frame_"+strconv.Itoa(i)+".png")
		if err := video.ExtractFrame(ctx, st.sourceVid, t, path); err != nil {
			return "", err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		result, err := o.Vision.PerformOCR(ctx, data)
		if err != nil {
			return "", err
		}
		texts[i] = result.Text
	}

	for i := 0; i < len(texts)-1; i++ {
		if normalizeText(texts[i]) == normalizeText(texts[i+1]) {
			return texts[i], nil
		}
	}

	best := 0
	for i := 1; i < len(texts); i++ {
		if len(texts[i]) > len(texts[best]) {
			best = i
		}
	}
	return texts[best], nil
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// dispatchBatchedOCR implements §4.5.3's hand-off: persist the durable
// batch state a continuation request re-downloads/re-reads (since it may
// land on a different worker process with no shared temp dir), write the
// initial checkpoint, and enqueue batch 0.
func (o *Orchestrator) dispatchBatchedOCR(ctx context.Context, st *jobState, scenes []job.Scene, batchSize int) error {
	var width, height int64
	if vt, err := st.video.GetTrack(video.TrackTypeVideo); err == nil {
		width, height = vt.Width, vt.Height
	}
	state := batchState{
		Scenes:     scenes,
		Transcript: st.transcript,
		Video: batchVideoMeta{
			Width:       width,
			Height:      height,
			DurationSec: st.video.Duration,
		},
		DetectionMode: st.job.DetectionMode,
	}
	if err := o.putBatchState(ctx, st.job.UploadID, state); err != nil {
		return xerrors.NewJobFatalError(xerrors.ErrReportAssemblyFailed, err)
	}

	totalBatches := ocr.TotalBatches(len(scenes), batchSize)
	now := config.Clock.Now()
	checkpoint := job.Checkpoint{
		UploadID:           st.job.UploadID,
		CurrentStep:        job.CheckpointStepOCR,
		TotalScenes:        len(scenes),
		CompletedOCRScenes: map[int]bool{},
		RetryCount:         0,
		UpdatedAt:          now,
		ExpiresAt:          now.Add(24 * time.Hour),
	}
	if err := o.Checkpoints.PutCheckpoint(ctx, checkpoint); err != nil {
		return xerrors.NewJobFatalError(xerrors.ErrReportAssemblyFailed, err)
	}

	start, end := ocr.BatchBounds(0, len(scenes), batchSize)
	task := job.BatchTask{
		UploadID:        st.job.UploadID,
		UserID:          st.job.UserID,
		BatchIndex:      0,
		TotalBatches:    totalBatches,
		BatchSize:       batchSize,
		StartSceneIndex: start,
		EndSceneIndex:   end,
		VideoKey:        st.job.SourceKey,
		VideoDuration:   st.video.Duration,
		IsLastBatch:     totalBatches <= 1,
	}
	if err := o.Tasks.Enqueue(ctx, "/process-ocr-batch", task, 0); err != nil {
		return xerrors.NewJobFatalError(xerrors.ErrReportAssemblyFailed, err)
	}

	st.status.Stage = job.StageBatchProcessing
	st.status.Progress = config.BatchProgressBase
	st.status.UpdatedAt = now
	if err := o.Status.Put(ctx, st.status); err != nil {
		log.LogError(st.job.UploadID, "failed to write batch-dispatch status", err)
	}
	return nil
}
