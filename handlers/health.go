package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/videoreport/api/config"
	"github.com/videoreport/api/log"
)

type healthResponse struct {
	Status    string `json:"status"`
	Revision  string `json:"revision"`
	BuildTime string `json:"buildTime"`
	Commit    string `json:"commit"`
}

// Health serves GET /health (§6), used by the platform's own readiness
// checks rather than anything in this module's request path.
func (c *Collection) Health() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		resp := healthResponse{
			Status:    "healthy",
			Revision:  config.Version,
			BuildTime: config.BuildTime,
			Commit:    config.Commit,
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.LogNoRequestID("failed to write health response", "err", err)
		}
	}
}
