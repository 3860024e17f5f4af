package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/videoreport/api/config"
	"github.com/videoreport/api/errors"
	"github.com/videoreport/api/job"
	"github.com/videoreport/api/log"
)

// statusResponse is JobStatus's wire shape: camelCase, as §6 specifies for
// every JSON response, even though the store itself is keyed snake_case to
// match its columns.
type statusResponse struct {
	UploadID               string                  `json:"uploadId"`
	Status                 job.Status              `json:"status"`
	Progress               int                     `json:"progress"`
	Phase                  job.Phase               `json:"phase"`
	PhaseProgress          int                     `json:"phaseProgress"`
	PhaseStatus            job.PhaseStatus         `json:"phaseStatus"`
	Stage                  job.Stage               `json:"stage"`
	SubTask                string                  `json:"subTask"`
	EstimatedTimeRemaining string                  `json:"estimatedTimeRemaining"`
	StartedAt              string                  `json:"startedAt"`
	UpdatedAt              string                  `json:"updatedAt"`
	ResultKey              string                  `json:"resultKey,omitempty"`
	Metadata               *job.ProcessingMetadata `json:"metadata,omitempty"`
	Error                  string                  `json:"error,omitempty"`
	Stale                  bool                    `json:"stale,omitempty"`
}

func toStatusResponse(s job.JobStatus) statusResponse {
	return statusResponse{
		UploadID:               s.UploadID,
		Status:                 s.Status,
		Progress:               s.Progress,
		Phase:                  s.Phase,
		PhaseProgress:          s.PhaseProgress,
		PhaseStatus:            s.PhaseStatus,
		Stage:                  s.Stage,
		SubTask:                s.SubTask,
		EstimatedTimeRemaining: s.EstimatedTimeRemaining,
		StartedAt:              s.StartedAt.UTC().Format(rfc3339Milli),
		UpdatedAt:              s.UpdatedAt.UTC().Format(rfc3339Milli),
		ResultKey:              s.ResultKey,
		Metadata:               s.Metadata,
		Error:                  s.Error,
	}
}

const rfc3339Milli = "2006-01-02T15:04:05.000Z07:00"

// Status implements GET /status/{upload_id} (§4.9, §6). A stale
// "processing" row is reported as-is, with "stale": true added so the
// caller can treat it as failed; the stored row itself is not rewritten.
func (c *Collection) Status() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		uploadID := params.ByName("upload_id")
		st, ok, err := c.StatusRead.Get(req.Context(), uploadID)
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "failed to read job status", err)
			return
		}
		if !ok {
			errors.WriteHTTPNotFound(w, "no such upload", nil)
			return
		}

		resp := toStatusResponse(st)
		if st.IsStale(config.Clock.Now(), config.StalenessThreshold) {
			log.LogNoRequestID("status read found a stale processing job", "upload_id", uploadID)
			resp.Stale = true
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.LogError(uploadID, "failed to write status response", err)
		}
	}
}
