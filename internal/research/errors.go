package research

import "fmt"

// ConfigurationError reports an unusable mandatory component. It is the only
// error that aborts a run before any fan-out begins.
type ConfigurationError struct {
	Component string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Component, e.Reason)
}

// SourceErrorKind distinguishes why a single adapter call failed.
type SourceErrorKind string

const (
	SourceUnavailable SourceErrorKind = "unavailable"
	SourceTimedOut    SourceErrorKind = "timeout"
	SourceRateLimited SourceErrorKind = "rate-limited"
)

// SourceError wraps one adapter's failure. It is recorded as a per-adapter
// status and never aborts the fan-out of siblings.
type SourceError struct {
	Source string
	Kind   SourceErrorKind
	Err    error
}

func (e *SourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("source %s %s", e.Source, e.Kind)
	}
	return fmt.Sprintf("source %s %s: %v", e.Source, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// InsufficientResults is a quality warning attached to a report whose unique
// result count fell below the depth tier's floor. It is not a run failure;
// the consumer decides whether to proceed.
type InsufficientResults struct {
	Found   int `json:"found"`
	Minimum int `json:"minimum"`
}

func (e *InsufficientResults) Error() string {
	return fmt.Sprintf("insufficient results: %d found, %d expected", e.Found, e.Minimum)
}
