package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/videoreport/api/job"
	"github.com/videoreport/api/metrics"
	"github.com/videoreport/api/ratelimit"
)

// HTTPSpeechProvider is the concrete SpeechProvider for the speech-to-text
// API, the external collaborator §1 leaves out of scope beyond its call
// contract (§4.3.3: language hint "ja", verbose JSON response, temperature
// 0). Retry/backoff is owned by the caller's ratelimit.Limiter
// (§4.3.3/§4.7), so this client makes a single HTTP attempt per call.
type HTTPSpeechProvider struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPSpeechProvider(endpoint, apiKey string) *HTTPSpeechProvider {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	return &HTTPSpeechProvider{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   rc.StandardClient(),
	}
}

type verboseSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type verboseTranscription struct {
	Segments []verboseSegment `json:"segments"`
}

// Transcribe posts a chunk's audio bytes as multipart form data with the
// fixed parameters from §4.3.3, parsing the verbose-JSON response into
// absolute-within-chunk TranscriptSegments (the caller shifts them by the
// chunk's start time).
func (p *HTTPSpeechProvider) Transcribe(ctx context.Context, audioBytes []byte) ([]job.TranscriptSegment, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", "chunk.mp3")
	if err != nil {
		return nil, fmt.Errorf("creating multipart file field: %w", err)
	}
	if _, err := part.Write(audioBytes); err != nil {
		return nil, fmt.Errorf("writing chunk bytes: %w", err)
	}
	_ = w.WriteField("language", "ja")
	_ = w.WriteField("response_format", "verbose_json")
	_ = w.WriteField("temperature", "0")
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("building speech request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := metrics.MonitorRequest(metrics.Metrics.SpeechProviderClient, p.client, req)
	if err != nil {
		return nil, &ratelimit.RetryableError{Err: fmt.Errorf("speech request failed: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading speech response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		return nil, &ratelimit.RetryableError{Err: fmt.Errorf("speech API returned %d: %s", resp.StatusCode, respBody)}
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusUnsupportedMediaType {
		// Authentication / invalid-audio-format failures abort the chunk
		// immediately (§4.3.3) rather than retrying.
		return nil, fmt.Errorf("non-retryable speech API error %d: %s", resp.StatusCode, respBody)
	}
	if resp.StatusCode >= 400 {
		return nil, &ratelimit.RetryableError{Err: fmt.Errorf("speech API returned %d: %s", resp.StatusCode, respBody)}
	}

	var parsed verboseTranscription
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("non-retryable speech API error: unparseable response: %w", err)
	}

	segments := make([]job.TranscriptSegment, 0, len(parsed.Segments))
	for _, s := range parsed.Segments {
		segments = append(segments, job.TranscriptSegment{
			Timestamp: s.Start,
			Duration:  s.End - s.Start,
			Text:      s.Text,
		})
	}
	return segments, nil
}
