package llm

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a gateway that cannot be built: no credential or
// no model. It is fatal for the caller and never retried.
type ConfigurationError struct {
	Label   string
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("llm [%s]: missing %s (set OPENAI_API_KEY / SAH_MODEL)", e.Label, strings.Join(e.Missing, ", "))
}

// UpstreamError reports a failed model call: transport error, timeout,
// non-200 status or an envelope that could not be decoded.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm: HTTP %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("llm: %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func upstream(op string, err error) *UpstreamError {
	return &UpstreamError{Op: op, Err: err}
}
