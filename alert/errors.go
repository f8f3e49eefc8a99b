package alert

import "fmt"

// ErrorKind classifies a dispatch failure for callers that need to map it
// onto a response code or decide whether a retry could ever help.
type ErrorKind string

const (
	// KindInvalidRequest marks bad or missing caller input. Retrying the
	// identical request cannot succeed.
	KindInvalidRequest ErrorKind = "InvalidRequest"
	// KindConfiguration marks a missing credential or config value.
	// This is an operator error surfaced at startup or first use.
	KindConfiguration ErrorKind = "ConfigurationError"
	// KindProvider marks a network, auth, rate-limit or timeout failure
	// from a downstream channel, reported per attempt.
	KindProvider ErrorKind = "ProviderError"
)

// ProviderError is the normalized form of any failure reported by a
// downstream channel. Adapters translate transport errors into this type;
// transport-level error types never cross an adapter boundary.
type ProviderError struct {
	// Provider names the adapter that produced the error.
	Provider string
	// Code is an adapter-specific short code, e.g. "timeout" or "http_502".
	Code string
	// Message is the raw provider message, trimmed to a short string.
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error (%s): %s", e.Provider, e.Code, e.Message)
}

// ConfigurationError reports a missing credential or config value
// discovered when an adapter was asked to act.
type ConfigurationError struct {
	Provider string
	Message  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s configuration error: %s", e.Provider, e.Message)
}

// Kind returns the error classification for err. Errors an adapter did not
// classify are treated as provider failures.
func Kind(err error) ErrorKind {
	switch err.(type) {
	case *ConfigurationError:
		return KindConfiguration
	default:
		return KindProvider
	}
}
