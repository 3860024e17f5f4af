package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/videoreport/api/errors"
	"github.com/videoreport/api/job"
	"github.com/videoreport/api/log"
	"github.com/videoreport/api/taskqueue"
)

// OCRBatch implements POST /process-ocr-batch (§4.5.3, §6): the
// batch-chained OCR continuation endpoint a job's own enqueue loop
// re-delivers to itself until every scene has been OCR'd. The retry count
// the task queue attaches is read here, at the HTTP boundary, and handed
// down as a plain int since the pipeline package has no business parsing
// request headers.
func (c *Collection) OCRBatch() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "cannot read body", err)
			return
		}
		body, err := taskqueue.DecodeTaskBody(raw)
		if err != nil {
			errors.WriteHTTPBadRequest(w, "invalid task body encoding", err)
			return
		}

		var task job.BatchTask
		if err := json.Unmarshal(body, &task); err != nil {
			errors.WriteHTTPBadRequest(w, "invalid batch task payload", err)
			return
		}

		retryCount := 0
		if h := req.Header.Get(taskqueue.RetryCountHeader); h != "" {
			if n, err := strconv.Atoi(h); err == nil {
				retryCount = n
			}
		}

		if err := c.Orchestrator.ProcessOCRBatch(req.Context(), task, retryCount); err != nil {
			log.LogError(task.UploadID, "ocr batch processing failed", err)
			errors.WriteHTTPInternalServerError(w, "ocr batch processing failed", err)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}
