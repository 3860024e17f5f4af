package gateway

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// Ok implements GET /ok (§6): an unauthenticated liveness probe.
func (c *Collection) Ok() httprouter.Handle {
	return func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusOK)
	}
}
