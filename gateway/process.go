package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/videoreport/api/errors"
	"github.com/videoreport/api/log"
	"github.com/videoreport/api/middleware"
)

type v1ProcessRequest struct {
	UploadID      string `json:"upload_id"`
	FileName      string `json:"file_name,omitempty"`
	DetectionMode string `json:"detection_mode,omitempty"`
	DataConsent   bool   `json:"data_consent"`
}

type quotaExceededResponse struct {
	Error     string `json:"error"`
	PlanType  string `json:"planType"`
	Quota     int    `json:"quota"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
}

// Process implements POST /v1/process (§4.8, §6): checks the caller's
// quota before proxying to the worker's /process. The worker always runs
// an accepted job to completion regardless of quota state afterward — this
// check only gates acceptance.
func (c *Collection) Process() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		userID := middleware.UserIDFromContext(req.Context())

		var body v1ProcessRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			errors.WriteHTTPBadRequest(w, "invalid request body", err)
			return
		}
		if body.UploadID == "" {
			errors.WriteHTTPBadRequest(w, "upload_id is required", nil)
			return
		}
		if body.FileName == "" {
			body.FileName = body.UploadID
		}
		if !body.DataConsent {
			errors.WriteHTTPBadRequest(w, "data_consent is required", nil)
			return
		}

		quota, err := c.Quota.CheckQuota(req.Context(), userID)
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "failed to check quota", err)
			return
		}
		if quota.Exhausted() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusPaymentRequired)
			_ = json.NewEncoder(w).Encode(quotaExceededResponse{
				Error:     "quota exceeded",
				PlanType:  quota.PlanType,
				Quota:     quota.Quota,
				Used:      quota.Used,
				Remaining: quota.Remaining,
			})
			return
		}

		workerFields := map[string]interface{}{
			"upload_id":    body.UploadID,
			"r2_key":       fmt.Sprintf("uploads/%s/%s/source.mp4", userID, body.UploadID),
			"file_name":    body.FileName,
			"user_id":      userID,
			"data_consent": body.DataConsent,
		}
		if body.DetectionMode != "" {
			workerFields["detection_mode"] = body.DetectionMode
		}
		workerBody, err := json.Marshal(workerFields)
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "failed to build worker request", err)
			return
		}

		workerReq, err := http.NewRequestWithContext(req.Context(), http.MethodPost, c.Cli.WorkerBaseURL+"/process", bytes.NewReader(workerBody))
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "failed to build worker request", err)
			return
		}
		workerReq.Header.Set("Content-Type", "application/json")
		workerReq.Header.Set("Authorization", "Bearer "+c.Cli.WorkerSecret)

		res, err := c.HTTP.Do(workerReq)
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "failed to reach worker", err)
			return
		}
		defer res.Body.Close()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(res.StatusCode)
		if _, err := io.Copy(w, res.Body); err != nil {
			log.LogError(body.UploadID, "failed to proxy worker process response", err)
		}
	}
}
