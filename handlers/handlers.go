// Package handlers implements the worker's wire endpoints (§6): request
// validation, auth, and dispatch into the pipeline orchestrator. Grounded
// on the teacher's handlers package shape — one *Collection holding every
// collaborator, one file per endpoint, JSON-schema-validated bodies.
package handlers

import (
	"github.com/videoreport/api/config"
	"github.com/videoreport/api/pipeline"
	"github.com/videoreport/api/status"
)

// Collection wires the orchestrator and config every worker handler needs.
type Collection struct {
	Cli          config.Cli
	Orchestrator *pipeline.Orchestrator
	StatusRead   status.StatusReader
	Checkpoints  status.CheckpointStore
}
