// Package ocr implements the vision-model provider abstraction and fallback
// chain (§4.5.2), the per-scene OCR prompt/parsing contract (§4.5.1), and
// the persistent-overlay filter (§4.5.1). Grounded primarily on
// apresai-podcaster's internal/tts/provider.go (Provider interface,
// RetryableError, WithRetry, ProviderSet lazy pool) adapted from
// text-to-speech to vision OCR, and on the teacher's provider-fallback-style
// retry/backoff usage of cenkalti/backoff/v4.
package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/videoreport/api/ratelimit"
)

// Result is what a provider returns for a single frame (§4.5.2).
type Result struct {
	Text             string
	Confidence       float64
	Provider         string
	ProcessingTimeMs int64
}

// Provider is the single capability every OCR vendor implements.
type Provider interface {
	Name() string
	PerformOCR(ctx context.Context, imageBytes []byte) (Result, error)
}

// Prompt is the fixed instruction sent to every vision provider. It is part
// of the behavioral contract (§9) and must not be paraphrased per provider.
const Prompt = `Look only at subtitles, captions, or titles in the bottom 20% and the ` +
	`center 30% of this image. Ignore background text, logos, and watermarks. ` +
	`Respond with strict JSON: {"text": string, "confidence": number}. ` +
	`If no primary text is visible, return {"text": "", "confidence": 0}.`

// cooldownSchedule is the adaptive cooldown sequence on consecutive
// failures (§4.5.2): 30s -> 1m -> 2m -> 5m, holding at 5m afterwards.
var cooldownSchedule = []time.Duration{
	30 * time.Second,
	1 * time.Minute,
	2 * time.Minute,
	5 * time.Minute,
}

// registration wraps a Provider with its priority, limiter, and the
// unavailability bookkeeping the fallback chain needs.
type registration struct {
	provider Provider
	priority int
	limiter  *ratelimit.Limiter

	mu                sync.Mutex
	unavailableUntil  time.Time
	consecutiveErrors int
}

func (r *registration) available(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return now.After(r.unavailableUntil) || now.Equal(r.unavailableUntil)
}

func (r *registration) markUnavailable(now time.Time, retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.consecutiveErrors
	if idx >= len(cooldownSchedule) {
		idx = len(cooldownSchedule) - 1
	}
	cooldown := cooldownSchedule[idx]
	if retryAfter > cooldown {
		cooldown = retryAfter
	}
	r.unavailableUntil = now.Add(cooldown)
	r.consecutiveErrors++
}

func (r *registration) markSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consecutiveErrors = 0
	r.unavailableUntil = time.Time{}
}

// Chain selects a provider priority-first among available providers and
// falls back to the next on a retryable error (§4.5.2). It is a process-wide
// singleton per deployment, but tests construct independent instances (§9,
// "Global mutable singletons").
type Chain struct {
	clock         clock.Clock
	registrations []*registration
}

func NewChain(clk clock.Clock) *Chain {
	if clk == nil {
		clk = clock.New()
	}
	return &Chain{clock: clk}
}

// Register adds a provider at the given priority (lower runs first) with
// its own rate limiter.
func (c *Chain) Register(p Provider, priority int, limiter *ratelimit.Limiter) {
	c.registrations = append(c.registrations, &registration{
		provider: p,
		priority: priority,
		limiter:  limiter,
	})
}

// PerformOCR tries providers in priority order among those currently
// available, making one call per provider through that provider's limiter;
// on a retryable failure the provider is marked unavailable and the next
// one is tried. It fails only when
// every provider has been exhausted (§4.5.2, §7 "all OCR providers
// unavailable").
func (c *Chain) PerformOCR(ctx context.Context, imageBytes []byte) (Result, error) {
	ordered := c.orderedByPriority()

	var lastErr error
	triedAny := false
	for _, reg := range ordered {
		now := c.clock.Now()
		if !reg.available(now) {
			continue
		}
		triedAny = true

		start := c.clock.Now()
		var result Result
		err := reg.limiter.Execute(ctx, func(ctx context.Context) error {
			r, err := reg.provider.PerformOCR(ctx, imageBytes)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
		if err == nil {
			reg.markSuccess()
			result.Provider = reg.provider.Name()
			result.ProcessingTimeMs = c.clock.Now().Sub(start).Milliseconds()
			return result, nil
		}

		lastErr = err
		if !IsRetryable(err) {
			return Result{}, fmt.Errorf("provider %s returned a non-retryable error: %w", reg.provider.Name(), err)
		}
		reg.markUnavailable(now, retryAfterOf(err))
	}

	if !triedAny {
		return Result{}, fmt.Errorf("all OCR providers unavailable")
	}
	return Result{}, fmt.Errorf("all OCR providers exhausted: %w", lastErr)
}

func (c *Chain) orderedByPriority() []*registration {
	ordered := make([]*registration, len(c.registrations))
	copy(ordered, c.registrations)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].priority < ordered[j-1].priority; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	return ordered
}

func retryAfterOf(err error) time.Duration {
	var re *ratelimit.RetryableError
	for err != nil {
		if r, ok := err.(*ratelimit.RetryableError); ok {
			re = r
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if re != nil {
		return re.RetryAfter
	}
	return 0
}

// IsRetryable classifies an OCR provider error per §4.5.2/§7. Delegates to
// ratelimit.IsRetryable, the shared classification rule also used by the
// audio package's transcription fan-out.
func IsRetryable(err error) bool {
	return ratelimit.IsRetryable(err)
}

// codeFence strips markdown code fences some vision models wrap JSON in
// before this package attempts to decode the response.
var codeFence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// quotedTextPatterns are applied as a last resort when JSON parsing fails: it mines
// the response for quoted substrings using natural-language patterns a
// model tends to fall back to ("the text reads \"...\"", "I can see
// \"...\"").
var quotedTextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)text (?:reads|says|is)[:\s]+"([^"]*)"`),
	regexp.MustCompile(`(?i)(?:I can see|visible text)[:\s]+"([^"]*)"`),
	regexp.MustCompile(`"text"\s*:\s*"([^"]*)"`),
	regexp.MustCompile(`"([^"]{1,200})"`),
}

type rawResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// ParseResponse implements the lenient decode contract (§4.5.1, §9): strip
// code fences, try strict JSON, and on failure mine quoted substrings.
func ParseResponse(body string) (text string, confidence float64, ok bool) {
	cleaned := strings.TrimSpace(body)
	if m := codeFence.FindStringSubmatch(cleaned); m != nil {
		cleaned = strings.TrimSpace(m[1])
	}

	var raw rawResponse
	if err := json.Unmarshal([]byte(cleaned), &raw); err == nil {
		return raw.Text, raw.Confidence, true
	}

	for _, pattern := range quotedTextPatterns {
		if m := pattern.FindStringSubmatch(cleaned); m != nil {
			return m[1], 0, true
		}
	}
	return "", 0, false
}
