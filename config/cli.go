package config

import "time"

// Cli holds every flag/env-var resolved once at worker boot via
// github.com/peterbourgon/ff/v3 (CLI flags, optional config file, env vars
// prefixed VIDEOREPORT_). Constants that never vary per-deployment live in
// config.go instead.
type Cli struct {
	HTTPAddress string
	PromPort    int
	Dev         bool // relaxes required-secret checks; status-write failures are logged and never abort a job, in either mode

	WorkerSecret string

	VisionAPIEndpoint string
	VisionAPIKey      string
	// VisionAPIEndpointFallback/VisionAPIKeyFallback register a second,
	// lower-priority vision provider in the OCR Chain (§4.5.2) when set;
	// optional in every environment, including production, since the Chain
	// tolerates a single registered provider.
	VisionAPIEndpointFallback string
	VisionAPIKeyFallback      string
	SpeechAPIEndpoint         string
	SpeechAPIKey              string

	ObjectStoreAccount   string
	ObjectStoreAccessKey string
	ObjectStoreSecret    string
	ObjectStoreBucket    string
	ObjectStoreEndpoint  string // empty selects the default AWS endpoint resolver
	ObjectStoreRegion    string

	StatusStoreURL        string
	StatusStoreServiceKey string

	TaskQueueProject  string
	TaskQueueLocation string
	TaskQueueBaseURL  string // base URL the worker dispatches /process-task and /process-ocr-batch callbacks to

	DetectionMode string // default detection_mode when the intake request omits one

	OCRBatchSize int

	HeartbeatInterval time.Duration

	// Gateway-only fields (§6's thin cmd/gateway binary reuses this same
	// struct rather than defining its own).
	GatewayHTTPAddress string
	WorkerBaseURL      string // base URL the gateway proxies /process, /status to
	QuotaServiceURL    string
	SessionSecret      string // HMAC secret validating the caller's session JWT
}
