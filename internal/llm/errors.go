package llm

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrQuotaExhausted marks a request that failed because the provider quota is
// gone for the day. Callers surface it as an operator-facing message instead
// of retrying.
var ErrQuotaExhausted = errors.New("llm: provider quota exhausted")

// IsRateLimited reports whether err is a 429-class failure: HTTP 429, the
// provider's RESOURCE_EXHAUSTED code, or rate-limit wording in the message.
// These count against the circuit breaker and trigger backoff.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == 429 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "rate limit")
}

// IsQuotaExhausted reports whether err indicates the daily quota is spent, as
// opposed to a transient per-minute rate limit. Quota errors are fatal for
// the current run.
func IsQuotaExhausted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExhausted) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota")
}

var retryHintRe = regexp.MustCompile(`(?i)(?:retry\s*in|retrydelay:?)\s*(\d+(?:\.\d+)?)\s*s`)

// RetryAfterHint extracts a server-suggested retry delay from an error
// message, e.g. "retry in 30s" or "retryDelay: 21s". Gemini-compatible
// gateways attach these to 429 responses.
func RetryAfterHint(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	m := retryHintRe.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, false
	}
	secs, perr := strconv.ParseFloat(m[1], 64)
	if perr != nil || secs <= 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}
