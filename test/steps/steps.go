// Package steps holds the godog step implementations and their shared
// per-scenario state, mirroring the reference's test/steps package: one
// StepContext threaded through every step function, one file per
// collaborator stub.
package steps

import (
	"net/http"
	"os/exec"
)

// StepContext carries everything a scenario's steps need to share: the
// pending/last HTTP exchange with the worker, and handles to the fake
// collaborators a scenario configures before submitting a job.
type StepContext struct {
	BaseURL     string
	WorkerToken string

	App *exec.Cmd

	ObjectStore    *FakeObjectStore
	Vision         *FakeVisionServer
	VisionFallback *FakeVisionServer // set only by S5's failover scenario
	Speech         *FakeSpeechServer
	TaskQueue      *FakeTaskQueue

	pendingRequest *http.Request
	latestResponse *http.Response
	latestUploadID string
	timeoutSecs    int64
}
