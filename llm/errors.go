package llm

import "errors"

// ProviderResponseError signals that a backend returned unusable content: an empty
// completion, or a JSON-bearing response that failed to parse or validate.
// It is always fatal to the current stage call and never retried here.
type ProviderResponseError struct {
	Message string
	Err     error
}

// NewProviderResponseError creates a ProviderResponseError wrapping an optional cause.
func NewProviderResponseError(message string, err error) *ProviderResponseError {
	return &ProviderResponseError{Message: message, Err: err}
}

func (e *ProviderResponseError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ProviderResponseError) Unwrap() error {
	return e.Err
}

// IsProviderResponseError reports whether err is or wraps a ProviderResponseError.
func IsProviderResponseError(err error) bool {
	var target *ProviderResponseError
	return errors.As(err, &target)
}
