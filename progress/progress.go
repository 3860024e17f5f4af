// Package progress implements the progress-update and staleness-heartbeat
// protocol (§4.2, §4.9): coalesce frequent in-process progress callbacks
// into infrequent status-store writes, and keep `updated_at` moving during
// long steps so readers don't mistake a slow job for a dead one. Grounded on
// the teacher's own ProgressReporter (ticker-driven polling loop, mutex-
// guarded scale/progress state, "only report on bucket change or timeout"
// gate), generalized from a single transcode-status callback to writes
// against a status.StatusWriter.
package progress

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/videoreport/api/config"
	"github.com/videoreport/api/job"
	"github.com/videoreport/api/log"
	"github.com/videoreport/api/status"
)

var Clock = clock.New()

// pollInterval is how often the reporter checks for a pending update; the
// actual write cadence is governed by config.MinProgressDelta and
// config.HeartbeatInterval below.
const pollInterval = 1 * time.Second

// Reporter coalesces progress callbacks for one job into status-store
// writes, keeping `updated_at` moving at least every heartbeatInterval
// (§4.9's staleness contract) even when progress itself hasn't advanced.
type Reporter struct {
	ctx      context.Context
	cancel   context.CancelFunc
	writer   status.StatusWriter
	uploadID string

	mu          sync.Mutex
	getSnapshot func() job.JobStatus

	lastReport   time.Time
	lastProgress int
	lastStage    job.Stage
	lastSubTask  string
}

// NewReporter starts the polling loop in the background; call Stop when the
// phase driving it is done.
func NewReporter(ctx context.Context, writer status.StatusWriter, uploadID string) *Reporter {
	ctx, cancel := context.WithCancel(ctx)
	r := &Reporter{
		ctx:      ctx,
		cancel:   cancel,
		writer:   writer,
		uploadID: uploadID,
	}
	go r.mainLoop()
	return r
}

func (r *Reporter) Stop() {
	r.cancel()
}

// Track installs the snapshot function the reporter polls; getSnapshot must
// be cheap and safe to call from another goroutine.
func (r *Reporter) Track(getSnapshot func() job.JobStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getSnapshot = getSnapshot
}

func (r *Reporter) mainLoop() {
	defer func() {
		if rec := recover(); rec != nil {
			log.LogError(r.uploadID, fmt.Sprintf("panic reporting progress for upload_id=%s: %v\n%s", r.uploadID, rec, string(debug.Stack())), errors.New("panic reporting job progress"))
		}
	}()
	ticker := Clock.Ticker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.reportOnce()
		}
	}
}

func (r *Reporter) reportOnce() {
	r.mu.Lock()
	getSnapshot := r.getSnapshot
	r.mu.Unlock()
	if getSnapshot == nil {
		return
	}

	snapshot := getSnapshot()
	snapshot.Progress = clampProgress(snapshot.Progress)

	r.mu.Lock()
	defer r.mu.Unlock()

	if snapshot.Progress < r.lastProgress {
		log.LogError(r.uploadID, fmt.Sprintf("non-monotonic progress for upload_id=%s last=%d new=%d", r.uploadID, r.lastProgress, snapshot.Progress), errors.New("non-monotonic progress observed"))
		return
	}

	if !r.shouldReport(snapshot) {
		return
	}

	snapshot.UploadID = r.uploadID
	snapshot.UpdatedAt = Clock.Now()
	if err := r.writer.Put(r.ctx, snapshot); err != nil {
		log.LogError(r.uploadID, fmt.Sprintf("error writing job status upload_id=%s progress=%d: %v", r.uploadID, snapshot.Progress, err), err)
		return
	}

	r.lastReport = Clock.Now()
	r.lastProgress = snapshot.Progress
	r.lastStage = snapshot.Stage
	r.lastSubTask = snapshot.SubTask
}

// shouldReport implements §4.2's coalescing gate plus §4.9's heartbeat
// override.
func (r *Reporter) shouldReport(snapshot job.JobStatus) bool {
	if r.lastReport.IsZero() {
		return true
	}
	if snapshot.Progress-r.lastProgress >= config.MinProgressDelta {
		return true
	}
	if snapshot.Stage != r.lastStage || snapshot.SubTask != r.lastSubTask {
		return true
	}
	return Clock.Since(r.lastReport) >= config.HeartbeatInterval
}

func clampProgress(p int) int {
	return int(math.Max(0, math.Min(100, float64(p))))
}
