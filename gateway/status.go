package gateway

import (
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/videoreport/api/errors"
	"github.com/videoreport/api/log"
)

// Status implements GET /v1/status/{upload_id} (§6): a straight proxy to
// the worker's /status/{upload_id}, bearer-authenticated with the shared
// worker secret rather than the caller's session token.
func (c *Collection) Status() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		uploadID := params.ByName("upload_id")

		workerReq, err := http.NewRequestWithContext(req.Context(), http.MethodGet, c.Cli.WorkerBaseURL+"/status/"+uploadID, nil)
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "failed to build worker request", err)
			return
		}
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
			log.LogError(uploadID, "failed to proxy worker status response", err)
		}
	}
}
