package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/videoreport/api/errors"
)

type statusResultKeyOnly struct {
	ResultKey string `json:"resultKey"`
}

// Result implements GET /v1/result/{upload_id} (§6): looks up the result
// object key via the worker's status endpoint, then redirects the caller
// to a pre-signed, time-limited download URL rather than streaming the
// file body through the gateway itself.
func (c *Collection) Result() httprouter.Handle {
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

		if res.StatusCode == http.StatusNotFound {
			errors.WriteHTTPNotFound(w, "no such upload", nil)
			return
		}
		if res.StatusCode != http.StatusOK {
			errors.WriteHTTPInternalServerError(w, "worker status lookup failed", nil)
			return
		}

		var status statusResultKeyOnly
		if err := json.NewDecoder(res.Body).Decode(&status); err != nil {
			errors.WriteHTTPInternalServerError(w, "failed to decode worker status", err)
			return
		}
		if status.ResultKey == "" {
			errors.WriteHTTPNotFound(w, "no result available for this upload", nil)
			return
		}

		presigned, err := c.Objects.PresignGet(req.Context(), status.ResultKey, resultURLExpiry)
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "failed to presign result URL", err)
			return
		}

		http.Redirect(w, req, presigned, http.StatusFound)
	}
}
