package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/xeipuuv/gojsonschema"

	"github.com/videoreport/api/errors"
	"github.com/videoreport/api/log"
)

// ProcessTask implements the worker's POST /process-task (§6): the
// task-queue delivery target enqueued by Process. It runs the job
// synchronously and keeps the connection open until the job reaches a
// terminal status, so the caller's retry behavior (the task queue's own,
// not this module's) reflects whether the run actually failed.
func (c *Collection) ProcessTask() httprouter.Handle {
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
			errors.WriteHTTPBadBodySchema("ProcessTask", w, result.Errors())
			return
		}

		var pr ProcessRequest
		if err := json.Unmarshal(payload, &pr); err != nil {
			errors.WriteHTTPBadRequest(w, "invalid request payload", err)
			return
		}

		j := pr.toJob(c.Cli.DetectionMode)
		if err := c.Orchestrator.RunJob(req.Context(), j); err != nil {
			log.LogError(j.UploadID, "job run failed", err)
			errors.WriteHTTPInternalServerError(w, "job run failed", err)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}
