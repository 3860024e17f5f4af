// Package pipeline executes one job end-to-end inside a single worker
// request: download, audio extraction/transcription, scene detection/OCR,
// and report assembly, reporting progress and checkpointing along the way.
// Grounded on the teacher's pipeline/coordinator.go shape (a long-lived
// struct wiring every collaborator, a recovered[T]-guarded async handler,
// a single finishJob/failStatus exit path), generalized from the
// transcode-status callback model to this domain's status-store writes.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/videoreport/api/audio"
	"github.com/videoreport/api/cache"
	"github.com/videoreport/api/clients"
	"github.com/videoreport/api/config"
	xerrors "github.com/videoreport/api/errors"
	"github.com/videoreport/api/job"
	"github.com/videoreport/api/log"
	"github.com/videoreport/api/metrics"
	"github.com/videoreport/api/ocr"
	"github.com/videoreport/api/progress"
	"github.com/videoreport/api/ratelimit"
	"github.com/videoreport/api/status"
	"github.com/videoreport/api/taskqueue"
	"github.com/videoreport/api/video"
)

// Orchestrator wires every collaborator a job needs and is safe to share
// across concurrent requests (§5 "Scheduling model"): it holds no per-job
// mutable state itself, only process-wide singletons (rate limiters,
// store/queue clients) and the in-flight job registry used for graceful
// interruption.
type Orchestrator struct {
	Cli config.Cli

	Status      status.StatusWriter
	StatusRead  status.StatusReader
	Checkpoints status.CheckpointStore
	Objects     *clients.ObjectStore
	Tasks       taskqueue.TaskQueue

	Prober        video.Prober
	VAD           audio.VADModel
	Speech        audio.SpeechProvider
	SpeechLimiter *ratelimit.Limiter
	Vision        *ocr.Chain

	TempRoot string

	jobs *cache.Cache[*jobHandle]
}

// jobHandle is the in-flight bookkeeping §4.10 needs to interrupt a job
// mid-run: the means to cancel its context and the upload_id to fail.
// interrupted is set by interruptAll before it cancels the job's context, so
// failJob can tell a §4.10 interruption apart from any other cause of
// context cancellation and defer to interruptAll's own terminal status
// write instead of racing it with one of its own.
type jobHandle struct {
	uploadID    string
	cancel      context.CancelFunc
	interrupted atomic.Bool
}

func NewOrchestrator(cli config.Cli, store status.StatusWriter, reader status.StatusReader, checkpoints status.CheckpointStore, objects *clients.ObjectStore, tasks taskqueue.TaskQueue, prober video.Prober, vad audio.VADModel, speech audio.SpeechProvider, speechLimiter *ratelimit.Limiter, vision *ocr.Chain) *Orchestrator {
	return &Orchestrator{
		Cli:           cli,
		Status:        store,
		StatusRead:    reader,
		Checkpoints:   checkpoints,
		Objects:       objects,
		Tasks:         tasks,
		Prober:        prober,
		VAD:           vad,
		Speech:        speech,
		SpeechLimiter: speechLimiter,
		Vision:        vision,
		TempRoot:      os.TempDir(),
		jobs:          cache.New[*jobHandle](),
	}
}

// jobState accumulates everything produced across phases for one run of
// RunJob. It is intentionally not shared across goroutines beyond the
// single job request that owns it.
type jobState struct {
	job       job.Job
	tempDir   string
	sourceVid string
	video     video.InputVideo

	reporter *progress.Reporter
	status   job.JobStatus

	transcript []job.TranscriptSegment
	scenes     []job.Scene

	batched      bool
	batchedPhase job.Phase
}

// RunJob executes a job's full lifecycle synchronously, for as long as the
// HTTP connection backing /process-task stays open (§4.2). It returns once
// the job reaches a terminal status, OR once phase 2 has been handed off
// to batch-chained continuation (§4.5.3) — in which case the caller's HTTP
// response still completes normally and the remaining phases run across
// later /process-ocr-batch requests.
func (o *Orchestrator) RunJob(ctx context.Context, j job.Job) error {
	ctx, cancel := context.WithCancel(ctx)
	o.jobs.Store(j.UploadID, &jobHandle{uploadID: j.UploadID, cancel: cancel})
	metrics.Metrics.JobsInFlight.Set(float64(o.jobs.Len()))
	defer func() {
		o.jobs.Remove(j.UploadID)
		metrics.Metrics.JobsInFlight.Set(float64(o.jobs.Len()))
		cancel()
	}()

	metrics.Metrics.JobsStarted.WithLabelValues(string(j.DetectionMode)).Inc()
	startedAt := config.Clock.Now()

	st := &jobState{job: j}
	st.status = job.JobStatus{
		UploadID:  j.UploadID,
		Status:    job.StatusDownloading,
		Phase:     job.PhaseAudio,
		Stage:     job.StageDownloading,
		StartedAt: startedAt,
		UpdatedAt: startedAt,
	}

	st.reporter = progress.NewReporter(ctx, o.Status, j.UploadID)
	st.reporter.Track(func() job.JobStatus { return st.status })
	defer st.reporter.Stop()

	tempDir, err := os.MkdirTemp(o.TempRoot, "videoreport-"+sanitizeTempSuffix(j.UploadID))
	if err != nil {
		return o.failJob(ctx, st, xerrors.NewJobFatalError(xerrors.ErrDownloadFailed, fmt.Errorf("creating temp dir: %w", err)))
	}
	st.tempDir = tempDir
	defer o.cleanup(context.Background(), st)

	if _, err := recovered(func() (struct{}, error) {
		return struct{}{}, o.runPhases(ctx, st)
	}); err != nil {
		return o.failJob(ctx, st, err)
	}

	metrics.Metrics.JobDurationSec.WithLabelValues(string(st.status.Status)).Observe(config.Clock.Now().Sub(startedAt).Seconds())
	return nil
}

// runPhases drives the three phases in order. It returns early (nil error,
// st.batched=true) once phase 2 hands off to batch-chained OCR; the
// caller's cleanup still removes the temp dir, since a fresh temp dir and a
// fresh download happen on each batch continuation (§9 design note on
// batch-chain statelessness), but keeps the source key those continuations
// download.
func (o *Orchestrator) runPhases(ctx context.Context, st *jobState) error {
	if err := o.downloadSource(ctx, st); err != nil {
		return err
	}

	if err := o.runAudioPhase(ctx, st); err != nil {
		return err
	}

	batched, err := o.runVisualPhase(ctx, st)
	if err != nil {
		return err
	}
	if batched {
		st.batched = true
		return nil
	}

	if err := o.runReportPhase(ctx, st); err != nil {
		return err
	}

	st.status.Status = job.StatusCompleted
	st.status.Progress = 100
	st.status.PhaseStatus = job.PhaseStatusCompleted
	st.status.Stage = job.StageCompleted
	st.status.UpdatedAt = config.Clock.Now()
	if err := o.Status.Put(ctx, st.status); err != nil {
		log.LogError(st.job.UploadID, "failed to write final completed status", err)
	}
	metrics.Metrics.JobsCompleted.WithLabelValues(string(job.StatusCompleted), "").Inc()
	if err := o.Checkpoints.DeleteCheckpoint(context.Background(), st.job.UploadID); err != nil {
		log.LogError(st.job.UploadID, "failed to delete checkpoint on completion", err)
	}
	return nil
}

func (o *Orchestrator) downloadSource(ctx context.Context, st *jobState) error {
	st.status.Stage = job.StageDownloading
	st.status.Progress = config.DownloadProgressStart
	st.status.UpdatedAt = config.Clock.Now()

	body, err := o.Objects.Download(ctx, st.job.SourceKey)
	if err != nil {
		return xerrors.NewJobFatalError(xerrors.ErrDownloadFailed, err)
	}
	defer body.Close()

	counter := progress.NewReadCounter(body)
	st.sourceVid = filepath.Join(st.tempDir, "source.mp4")
	out, err := os.Create(st.sourceVid)
	if err != nil {
		return xerrors.NewJobFatalError(xerrors.ErrDownloadFailed, fmt.Errorf("creating local source file: %w", err))
	}
	defer out.Close()

	done := make(chan error, 1)
	go func() {
		_, copyErr := io.Copy(out, counter)
		done <- copyErr
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	var copyErr error
loop:
	for {
		select {
		case copyErr = <-done:
			break loop
		case <-ticker.C:
			st.status.Progress = progress.DownloadProgress(counter.Count(), 0)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if copyErr != nil {
		return xerrors.NewJobFatalError(xerrors.ErrDownloadFailed, copyErr)
	}

	iv, err := o.Prober.ProbeFile(st.job.UploadID, st.sourceVid)
	if err != nil {
		return xerrors.NewJobFatalError(xerrors.ErrDecodeFailed, err)
	}
	st.video = iv
	st.status.Progress = config.DownloadProgressEnd
	st.status.Status = job.StatusProcessing
	st.status.Stage = job.StageMetadata
	st.status.UpdatedAt = config.Clock.Now()
	return nil
}

// cleanup implements §4.2's "Cleanup on exit" contract: remove the temp dir
// and delete the source key (404 is success). A run that handed off to
// batch-chained OCR keeps its source key, which the continuations download.
// The checkpoint is deleted by runPhases and failJob, not here. Runs on a
// background context so a caller-cancelled ctx (shutdown, timeout) doesn't
// also abort cleanup.
func (o *Orchestrator) cleanup(ctx context.Context, st *jobState) {
	if st.tempDir != "" {
		if err := os.RemoveAll(st.tempDir); err != nil {
			log.LogError(st.job.UploadID, "failed to remove temp dir", err, "dir", st.tempDir)
		}
	}
	if st.job.SourceKey == "" || st.batched {
		return
	}
	if err := o.Objects.Delete(ctx, st.job.SourceKey); err != nil && !xerrors.IsObjectNotFound(err) {
		log.LogError(st.job.UploadID, "failed to delete source object", err, "key", st.job.SourceKey)
	}
}

// failJob implements failStatus (§7): record the job-fatal error's
// user-visible message and log the technical cause; cleanup runs afterwards
// from RunJob's deferred call. It always returns the original error so the caller's HTTP handler can map
// it to the right status code.
//
// If the job's context was cancelled by interruptAll (§4.10), that call has
// already written — or is about to write — the authoritative terminal
// status (SERVER_SHUTDOWN/MANUAL_STOP/RESOURCE_LIMIT). failJob must not
// also write one of its own: ctx.Done() firing mid-phase surfaces here as a
// generic context.Canceled, which would otherwise overwrite
// interruptAll's closed-set message with UNCAUGHT_EXCEPTION.
func (o *Orchestrator) failJob(ctx context.Context, st *jobState, err error) error {
	if handle := o.jobs.Get(st.job.UploadID); handle != nil && handle.interrupted.Load() {
		log.LogNoRequestID("skipping failJob status write, interruptAll already recorded the terminal status", "upload_id", st.job.UploadID)
		return err
	}

	code := xerrors.ErrUncaughtException
	var jfe *xerrors.JobFatalError
	if asJobFatalError(err, &jfe) {
		code = jfe.Code
	}
	msg := xerrors.UserMessageForCode(code)
	log.LogError(st.job.UploadID, "job failed", err, "error_code", code)

	st.status.Status = job.StatusError
	st.status.Error = msg
	st.status.UpdatedAt = config.Clock.Now()

	writeCtx := ctx
	if writeCtx.Err() != nil {
		writeCtx = context.Background()
	}
	if werr := o.Status.Put(writeCtx, st.status); werr != nil {
		if !o.Cli.Dev {
			log.LogError(st.job.UploadID, "failed to write failure status (production: this is itself job-fatal)", werr)
		} else {
			log.LogError(st.job.UploadID, "failed to write failure status (dev: swallowed)", werr)
		}
	}
	metrics.Metrics.JobsCompleted.WithLabelValues(string(job.StatusError), string(code)).Inc()
	if derr := o.Checkpoints.DeleteCheckpoint(context.Background(), st.job.UploadID); derr != nil {
		log.LogError(st.job.UploadID, "failed to delete checkpoint after failure", derr)
	}
	return err
}

func asJobFatalError(err error, target **xerrors.JobFatalError) bool {
	for err != nil {
		if jfe, ok := err.(*xerrors.JobFatalError); ok {
			*target = jfe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// recovered runs f, turning any panic into an error instead of crashing the
// goroutine (§4.10's uncaught-exception trap). Grounded on the teacher's
// generic recovered[T] helper in pipeline/coordinator.go.
func recovered[T any](f func() (T, error)) (t T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.LogNoRequestID("panic in pipeline, recovering", "err", rec, "trace", string(debug.Stack()))
			err = xerrors.NewJobFatalError(xerrors.ErrUncaughtException, fmt.Errorf("panic: %v", rec))
		}
	}()
	return f()
}

// phaseProgress maps pct (0-100, progress within the current phase) into
// the phase's overall-progress sub-range [start,end] (§4.2).
func phaseProgress(start, end, pct int) int {
	span := end - start
	return start + (span*pct)/100
}

func sanitizeTempSuffix(uploadID string) string {
	if uploadID == "" {
		return uuid.NewString()
	}
	return uploadID
}
