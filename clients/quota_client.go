package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/videoreport/api/metrics"
)

// QuotaStatus is the quota service's response shape (§4.8).
type QuotaStatus struct {
	PlanType  string `json:"plan_type"`
	Quota     int    `json:"quota"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
}

// Exhausted reports whether the caller has no remaining quota (§4.8:
// "If remaining <= 0, intake returns 402-equivalent").
func (q QuotaStatus) Exhausted() bool { return q.Remaining <= 0 }

// QuotaClient checks a user's remaining quota before intake accepts a job
// (§4.8). This check is advisory only: once a job is accepted, it always
// runs to completion regardless of what quota does afterward.
type QuotaClient interface {
	CheckQuota(ctx context.Context, userID string) (QuotaStatus, error)
}

// HTTPQuotaClient calls an external quota service over HTTP. Grounded on
// the teacher's handlers/accesscontrol.GateClient shape (a single-purpose
// HTTP caller with its own base URL and short timeout), adapted from gate
// playback decisions to quota lookups.
type HTTPQuotaClient struct {
	client  *http.Client
	baseURL string
}

func NewHTTPQuotaClient(baseURL string) *HTTPQuotaClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.CheckRetry = metrics.HttpRetryHook
	rc.HTTPClient = &http.Client{Timeout: 2 * time.Second}
	return &HTTPQuotaClient{client: rc.StandardClient(), baseURL: baseURL}
}

func (q *HTTPQuotaClient) CheckQuota(ctx context.Context, userID string) (QuotaStatus, error) {
	endpoint := fmt.Sprintf("%s?user_id=%s", q.baseURL, url.QueryEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return QuotaStatus{}, err
	}

	res, err := metrics.MonitorRequest(metrics.Metrics.QuotaClient, q.client, req)
	if err != nil {
		return QuotaStatus{}, fmt.Errorf("quota check request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return QuotaStatus{}, fmt.Errorf("quota check returned status %d", res.StatusCode)
	}

	var status QuotaStatus
	if err := json.NewDecoder(res.Body).Decode(&status); err != nil {
		return QuotaStatus{}, fmt.Errorf("decoding quota response: %w", err)
	}
	return status, nil
}
