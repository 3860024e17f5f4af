package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/videoreport/api/config"
	xerrors "github.com/videoreport/api/errors"
	"github.com/videoreport/api/job"
	"github.com/videoreport/api/log"
	"github.com/videoreport/api/ocr"
	"github.com/videoreport/api/video"
)

// batchVideoMeta is the slice of InputVideo a batch continuation needs;
// kept separate from video.InputVideo so the durable blob doesn't grow a
// dependency on every field ffprobe happens to report.
type batchVideoMeta struct {
	Width, Height int64
	DurationSec   float64
}

// batchState is the durable JSON blob a batch continuation reads back,
// since job.Checkpoint only tracks completed scene indices, not the scene
// list or transcript text itself, and a continuation request may land on a
// different worker process with no shared temp directory (§4.5.3).
type batchState struct {
	Scenes        []job.Scene              `json:"scenes"`
	Transcript    []job.TranscriptSegment  `json:"transcript"`
	Video         batchVideoMeta           `json:"video"`
	DetectionMode job.DetectionMode        `json:"detection_mode"`
}

func batchStateKey(uploadID string) string {
	return fmt.Sprintf("checkpoints/%s/batch_state.json", uploadID)
}

func (o *Orchestrator) putBatchState(ctx context.Context, uploadID string, state batchState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling batch state: %w", err)
	}
	return o.Objects.Upload(ctx, batchStateKey(uploadID), bytes.NewReader(data), "application/json")
}

func (o *Orchestrator) getBatchState(ctx context.Context, uploadID string) (batchState, error) {
	body, err := o.Objects.Download(ctx, batchStateKey(uploadID))
	if err != nil {
		return batchState{}, fmt.Errorf("downloading batch state: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return batchState{}, fmt.Errorf("reading batch state: %w", err)
	}
	var state batchState
	if err := json.Unmarshal(data, &state); err != nil {
		return batchState{}, fmt.Errorf("unmarshaling batch state: %w", err)
	}
	return state, nil
}

// ProcessOCRBatch implements §4.5.3's /process-ocr-batch continuation: it
// re-downloads the source video fresh (a continuation may land on any
// worker process, never assume the prior request's temp dir survived),
// OCRs one batch's worth of scenes, updates the checkpoint and batch
// state, and either enqueues the next batch or, on the last batch, hands
// off to report assembly. retryCount is read from the
// taskqueue.RetryCountHeader by the HTTP handler and passed through so the
// 4th delivery attempt can fail the job outright instead of retrying
// forever.
func (o *Orchestrator) ProcessOCRBatch(ctx context.Context, task job.BatchTask, retryCount int) error {
	if retryCount >= config.MaxBatchRetries {
		return o.failBatchedJob(ctx, task.UploadID, xerrors.NewJobFatalError(
			xerrors.ErrAllProvidersDown,
			fmt.Errorf("batch %d for upload %s failed after %d retries", task.BatchIndex, task.UploadID, retryCount),
		))
	}

	checkpoint, ok, err := o.Checkpoints.GetCheckpoint(ctx, task.UploadID)
	if err != nil || !ok {
		return o.failBatchedJob(ctx, task.UploadID, xerrors.NewJobFatalError(xerrors.ErrReportAssemblyFailed, fmt.Errorf("missing checkpoint for batch continuation: %w", err)))
	}

	state, err := o.getBatchState(ctx, task.UploadID)
	if err != nil {
		return o.failBatchedJob(ctx, task.UploadID, xerrors.NewJobFatalError(xerrors.ErrReportAssemblyFailed, err))
	}

	tempDir, err := os.MkdirTemp(o.TempRoot, "videoreport-batch-"+sanitizeTempSuffix(task.UploadID))
	if err != nil {
		return o.failBatchedJob(ctx, task.UploadID, xerrors.NewJobFatalError(xerrors.ErrDownloadFailed, err))
	}
	defer os.RemoveAll(tempDir)

	sourcePath, err := o.downloadToTemp(ctx, task.VideoKey, tempDir)
	if err != nil {
		return o.failBatchedJob(ctx, task.UploadID, xerrors.NewJobFatalError(xerrors.ErrDownloadFailed, err))
	}

	for i := task.StartSceneIndex; i < task.EndSceneIndex && i < len(state.Scenes); i++ {
		scene := state.Scenes[i]
		path := filepath.Join(tempDir, "scene_"+strconv.Itoa(scene.SceneNumber)+".png")
		if err := video.ExtractFrame(ctx, sourcePath, scene.MidTime(), path); err != nil {
			log.LogError(task.UploadID, "batch frame extraction failed, skipping scene", err, "scene_number", scene.SceneNumber)
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			log.LogError(task.UploadID, "batch frame read failed, skipping scene", err, "scene_number", scene.SceneNumber)
			continue
		}
		result, err := o.Vision.PerformOCR(ctx, data)
		if err != nil {
			log.LogError(task.UploadID, "batch OCR failed, leaving scene text empty", err, "scene_number", scene.SceneNumber)
			continue
		}
		state.Scenes[i].OCRText = result.Text
		checkpoint.CompletedOCRScenes[i] = true
	}

	checkpoint.RetryCount = 0
	checkpoint.UpdatedAt = config.Clock.Now()
	if err := o.Checkpoints.PutCheckpoint(ctx, checkpoint); err != nil {
		return o.failBatchedJob(ctx, task.UploadID, xerrors.NewJobFatalError(xerrors.ErrReportAssemblyFailed, err))
	}
	if err := o.putBatchState(ctx, task.UploadID, state); err != nil {
		return o.failBatchedJob(ctx, task.UploadID, xerrors.NewJobFatalError(xerrors.ErrReportAssemblyFailed, err))
	}

	progress := ocr.BatchProgress(task.BatchIndex, task.TotalBatches)
	if err := o.Status.Put(ctx, job.JobStatus{
		UploadID:    task.UploadID,
		Status:      job.StatusProcessing,
		Progress:    progress,
		Phase:       job.PhaseVisual,
		PhaseStatus: job.PhaseStatusInProgress,
		Stage:       job.StageBatchProcessing,
		UpdatedAt:   config.Clock.Now(),
	}); err != nil {
		log.LogError(task.UploadID, "failed to write batch progress status", err)
	}

	if task.IsLastBatch {
		removed := ocr.FilterPersistentOverlays(state.Scenes)
		if len(removed) > 0 {
			log.Log(task.UploadID, "filtered persistent overlay lines in final batch", "lines", fmt.Sprint(removed))
		}
		return o.finishBatchedJob(ctx, task, state)
	}

	nextIndex := task.BatchIndex + 1
	start, end := ocr.BatchBounds(nextIndex, len(state.Scenes), task.BatchSize)
	nextTask := job.BatchTask{
		UploadID:        task.UploadID,
		UserID:          task.UserID,
		BatchIndex:      nextIndex,
		TotalBatches:    task.TotalBatches,
		BatchSize:       task.BatchSize,
		StartSceneIndex: start,
		EndSceneIndex:   end,
		VideoKey:        task.VideoKey,
		VideoDuration:   task.VideoDuration,
		IsLastBatch:     nextIndex == task.TotalBatches-1,
	}
	return o.Tasks.Enqueue(ctx, "/process-ocr-batch", nextTask, 2*time.Second)
}

// finishBatchedJob runs report assembly directly (the batch path never
// goes through RunJob's jobState, so it builds just enough of one).
func (o *Orchestrator) finishBatchedJob(ctx context.Context, task job.BatchTask, state batchState) error {
	st := &jobState{
		job: job.Job{
			UploadID:      task.UploadID,
			UserID:        task.UserID,
			SourceKey:     task.VideoKey,
			DetectionMode: state.DetectionMode,
		},
		video: video.InputVideo{
			Duration: state.Video.DurationSec,
			Tracks: []video.InputTrack{{
				Type:       video.TrackTypeVideo,
				VideoTrack: video.VideoTrack{Width: state.Video.Width, Height: state.Video.Height},
			}},
		},
		transcript: state.Transcript,
		scenes:     state.Scenes,
		status: job.JobStatus{
			UploadID: task.UploadID,
			Status:   job.StatusProcessing,
			Phase:    job.PhaseReport,
		},
	}

	if err := o.runReportPhase(ctx, st); err != nil {
		return o.failBatchedJob(ctx, task.UploadID, err)
	}

	st.status.Status = job.StatusCompleted
	st.status.Progress = 100
	st.status.PhaseStatus = job.PhaseStatusCompleted
	st.status.Stage = job.StageCompleted
	st.status.UpdatedAt = config.Clock.Now()
	if err := o.Status.Put(ctx, st.status); err != nil {
		log.LogError(task.UploadID, "failed to write final completed status for batched job", err)
	}
	if err := o.Checkpoints.DeleteCheckpoint(ctx, task.UploadID); err != nil {
		log.LogError(task.UploadID, "failed to delete checkpoint on batched completion", err)
	}
	if err := o.Objects.Delete(ctx, batchStateKey(task.UploadID)); err != nil && !xerrors.IsObjectNotFound(err) {
		log.LogError(task.UploadID, "failed to delete batch state blob", err)
	}
	return nil
}

func (o *Orchestrator) failBatchedJob(ctx context.Context, uploadID string, err error) error {
	var fatal *xerrors.JobFatalError
	if !asJobFatalError(err, &fatal) {
		fatal = xerrors.NewJobFatalError(xerrors.ErrUncaughtException, err)
	}
	status := job.JobStatus{
		UploadID:  uploadID,
		Status:    job.StatusError,
		Stage:     job.StageBatchProcessing,
		Error:     fatal.UserMessage(),
		UpdatedAt: config.Clock.Now(),
	}
	if putErr := o.Status.Put(ctx, status); putErr != nil {
		log.LogError(uploadID, "failed to write error status for batched job", putErr)
	}
	if delErr := o.Checkpoints.DeleteCheckpoint(ctx, uploadID); delErr != nil {
		log.LogError(uploadID, "failed to delete checkpoint after batched job failure", delErr)
	}
	return fatal
}

// downloadToTemp fetches key into tempDir/source.mp4, used by batch
// continuation since it never shares a temp dir with the request that
// dispatched it.
func (o *Orchestrator) downloadToTemp(ctx context.Context, key, tempDir string) (string, error) {
	body, err := o.Objects.Download(ctx, key)
	if err != nil {
		return "", err
	}
	defer body.Close()

	path := filepath.Join(tempDir, "source.mp4")
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating local source file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, body); err != nil {
		return "", fmt.Errorf("copying downloaded source: %w", err)
	}
	return path, nil
}
