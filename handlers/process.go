package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/xeipuuv/gojsonschema"

	"github.com/videoreport/api/config"
	"github.com/videoreport/api/errors"
	"github.com/videoreport/api/job"
	"github.com/videoreport/api/log"
)

// ProcessRequest is the body shared by /process and /process-task (§6).
type ProcessRequest struct {
	UploadID      string `json:"upload_id"`
	R2Key         string `json:"r2_key"`
	FileName      string `json:"file_name"`
	UserID        string `json:"user_id"`
	DataConsent   bool   `json:"data_consent"`
	DetectionMode string `json:"detection_mode,omitempty"`
}

func (r ProcessRequest) toJob(defaultMode string) job.Job {
	mode := r.DetectionMode
	if mode == "" {
		mode = defaultMode
	}
	return job.Job{
		UploadID:      r.UploadID,
		UserID:        r.UserID,
		SourceKey:     r.R2Key,
		FileName:      r.FileName,
		DetectionMode: job.DetectionMode(mode),
		DataConsent:   r.DataConsent,
		CreatedAt:     config.Clock.Now(),
	}
}

type processResponse struct {
	Success       bool   `json:"success"`
	UploadID      string `json:"uploadId"`
	TaskName      string `json:"taskName"`
	DetectionMode string `json:"detectionMode"`
}

// Process implements §4.1/§6's POST /process: validate, enqueue a
// /process-task dispatch, and only then write the status row to `pending`
// (duplicate upload_id submissions overwrite it, which is the caller's
// problem to prevent per §4.1). Enqueue runs first because an enqueue
// failure must surface as a 500 with no status row written at all (§4.1);
// writing the row before a not-yet-attempted enqueue would leave a
// `pending` row behind for a job that was never actually scheduled. It
// returns as soon as the task is enqueued — it never waits for processing
// to finish.
func (c *Collection) Process() httprouter.Handle {
	schema := inputSchemasCompiled["Process"]

	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		payload, err := io.ReadAll(req.Body)
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "cannot read body", err)
			return
		}
		result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "body schema validation failed", err)
			return
		}
		if !result.Valid() {
			errors.WriteHTTPBadBodySchema("Process", w, result.Errors())
			return
		}

		var pr ProcessRequest
		if err := json.Unmarshal(payload, &pr); err != nil {
			errors.WriteHTTPBadRequest(w, "invalid request payload", err)
			return
		}

		j := pr.toJob(c.Cli.DetectionMode)

		taskName := fmt.Sprintf("process-task-%s", j.UploadID)
		if err := c.Orchestrator.Tasks.Enqueue(req.Context(), "/process-task", pr, 0); err != nil {
			errors.WriteHTTPInternalServerError(w, "failed to enqueue processing task", err)
			return
		}

		now := config.Clock.Now()
		if err := c.Orchestrator.Status.Put(req.Context(), job.JobStatus{
			UploadID:  j.UploadID,
			Status:    job.StatusPending,
			Phase:     job.PhaseAudio,
			StartedAt: now,
			UpdatedAt: now,
		}); err != nil {
			errors.WriteHTTPInternalServerError(w, "failed to write job status", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(processResponse{
			Success:       true,
			UploadID:      j.UploadID,
			TaskName:      taskName,
			DetectionMode: string(j.DetectionMode),
		}); err != nil {
			log.LogError(j.UploadID, "failed to write process response", err)
		}
	}
}
