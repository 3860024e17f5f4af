package pipeline

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/videoreport/api/config"
	xerrors "github.com/videoreport/api/errors"
	"github.com/videoreport/api/job"
	"github.com/videoreport/api/log"
)

// statusFlushGrace bounds how long shutdown waits for in-flight jobs'
// terminal status writes before the process exits anyway (§4.10).
const statusFlushGrace = time.Second

// WatchSignals implements §4.10's graceful interruption: on SIGTERM/SIGINT
// (server shutdown or a manual stop) or SIGBUS (a resource limit trap),
// cancel every in-flight job's context and record a terminal error status
// with the matching closed-set code, then let main exit. An unrecognized
// signal falls through to UNKNOWN_SIGNAL so the same codepath runs rather
// than the process silently dying.
func (o *Orchestrator) WatchSignals(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGBUS)

	go func() {
		select {
		case sig := <-sigCh:
			o.interruptAll(codeForSignal(sig))
		case <-ctx.Done():
		}
	}()
}

func codeForSignal(sig os.Signal) xerrors.JobErrorCode {
	switch sig {
	case syscall.SIGTERM:
		return xerrors.ErrServerShutdown
	case syscall.SIGINT:
		return xerrors.ErrManualStop
	case syscall.SIGBUS:
		return xerrors.ErrResourceLimit
	default:
		return xerrors.ErrUnknownSignal
	}
}

// interruptAll cancels every job in the in-flight registry and writes its
// terminal status, allowing statusFlushGrace for the writes to land before
// returning.
func (o *Orchestrator) interruptAll(code xerrors.JobErrorCode) {
	keys := o.jobs.Keys()
	if len(keys) == 0 {
		return
	}
	log.LogNoRequestID("interrupting in-flight jobs", "count", len(keys), "error_code", code)

	writeCtx, cancel := context.WithTimeout(context.Background(), statusFlushGrace)
	defer cancel()

	for _, uploadID := range keys {
		if handle := o.jobs.Get(uploadID); handle != nil {
			handle.interrupted.Store(true)
			handle.cancel()
		}
		status := job.JobStatus{
			UploadID:  uploadID,
			Status:    job.StatusError,
			Error:     xerrors.UserMessageForCode(code),
			UpdatedAt: config.Clock.Now(),
		}
		if err := o.Status.Put(writeCtx, status); err != nil {
			log.LogError(uploadID, "failed to write interrupted-job status", err)
		}
	}
}
