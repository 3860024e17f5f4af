package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/videoreport/api/config"
	"github.com/videoreport/api/errors"
	"github.com/videoreport/api/log"
)

type cleanupResponse struct {
	DeletedCount int `json:"deletedCount"`
}

// CleanupCheckpoints implements POST /cron/cleanup-checkpoints (§6): a
// scheduled sweep of checkpoints past their expiry, so a crashed
// batch-chained run doesn't leave its checkpoint row around forever. Only
// the rows are removed; the run's batch_state.json blob is left in the
// object store.
func (c *Collection) CleanupCheckpoints() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		count, err := c.Checkpoints.DeleteExpired(req.Context(), config.Clock.Now())
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "failed to delete expired checkpoints", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(cleanupResponse{DeletedCount: count}); err != nil {
			log.LogNoRequestID("failed to write cleanup response", "err", err)
		}
	}
}
