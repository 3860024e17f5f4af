// Package gateway implements the thin second binary (§6's cmd/gateway):
// session auth, quota enforcement, direct-upload credentials, and proxying
// to the worker's /process and /status endpoints. It reuses this module's
// config, log, errors, and middleware packages rather than defining its
// own, per §6.
package gateway

import (
	"net/http"
	"time"

	"github.com/videoreport/api/clients"
	"github.com/videoreport/api/config"
)

// Collection wires every collaborator the gateway's handlers need.
type Collection struct {
	Cli     config.Cli
	Objects *clients.ObjectStore
	Quota   clients.QuotaClient
	HTTP    *http.Client
}

// uploadURLExpiry bounds how long a direct-upload URL stays valid.
const uploadURLExpiry = 15 * time.Minute

// resultURLExpiry bounds how long a result-download redirect stays valid.
const resultURLExpiry = 5 * time.Minute
