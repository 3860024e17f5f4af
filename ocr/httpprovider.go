package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/videoreport/api/metrics"
	"github.com/videoreport/api/ratelimit"
)

// HTTPVisionProvider is the concrete Provider for the vision API, the
// external collaborator §1 leaves out of scope beyond its call contract.
// Grounded on the teacher's clients/callback_client.go shape: a
// retryablehttp.Client wrapped by metrics.MonitorRequest, except this call
// site does its own retry/backoff via the Chain's per-provider Limiter
// (§4.5.2, §4.7), so RetryMax here is 0 — a single HTTP attempt per Chain
// attempt.
type HTTPVisionProvider struct {
	name     string
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPVisionProvider(name, endpoint, apiKey string) *HTTPVisionProvider {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	return &HTTPVisionProvider{
		name:     name,
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   rc.StandardClient(),
	}
}

func (p *HTTPVisionProvider) Name() string { return p.name }

type visionRequest struct {
	Prompt      string `json:"prompt"`
	ImageBase64 string `json:"image_base64"`
}

// PerformOCR sends the fixed prompt (§4.5.1) and the frame bytes to the
// provider's endpoint, returning a *ratelimit.RetryableError on 429/503 so
// the Chain (§4.5.2) can fall back to the next provider.
func (p *HTTPVisionProvider) PerformOCR(ctx context.Context, imageBytes []byte) (Result, error) {
	payload, err := json.Marshal(visionRequest{
		Prompt:      Prompt,
		ImageBase64: base64.StdEncoding.EncodeToString(imageBytes),
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshalling vision request for %s: %w", p.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("building vision request for %s: %w", p.name, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := metrics.MonitorRequest(metrics.Metrics.VisionProviderClient, p.client, req)
	if err != nil {
		return Result{}, &ratelimit.RetryableError{Err: fmt.Errorf("vision request to %s failed: %w", p.name, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("reading vision response from %s: %w", p.name, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		return Result{}, &ratelimit.RetryableError{
			Err:        fmt.Errorf("vision provider %s returned %d: %s", p.name, resp.StatusCode, body),
			RetryAfter: retryAfterHeader(resp.Header.Get("Retry-After")),
		}
	}
	if resp.StatusCode >= 400 {
		return Result{}, fmt.Errorf("vision provider %s returned %d: %s", p.name, resp.StatusCode, body)
	}

	text, confidence, ok := ParseResponse(string(body))
	if !ok {
		return Result{}, fmt.Errorf("vision provider %s returned an unparseable response", p.name)
	}
	return Result{Text: text, Confidence: confidence}, nil
}

func retryAfterHeader(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return 0
}
