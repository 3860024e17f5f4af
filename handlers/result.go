package handlers

import (
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/videoreport/api/errors"
	"github.com/videoreport/api/log"
)

// Result implements GET /result/{upload_id} (§6). It is a worker-internal,
// development-only convenience — production result delivery goes through
// the gateway's presigned-URL redirect, which never routes a client's
// traffic through this process.
func (c *Collection) Result() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		uploadID := params.ByName("upload_id")
		st, ok, err := c.StatusRead.Get(req.Context(), uploadID)
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "failed to read job status", err)
			return
		}
		if !ok || st.ResultKey == "" {
			errors.WriteHTTPNotFound(w, "no result available for this upload", nil)
			return
		}

		rc, err := c.Orchestrator.Objects.Download(req.Context(), st.ResultKey)
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "failed to fetch result object", err)
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if _, err := io.Copy(w, rc); err != nil {
			log.LogError(uploadID, "failed to stream result object", err)
		}
	}
}
