package ai

import "fmt"

// ProviderError indicates a transport or auth level failure talking to the
// model provider. These are transient from the pipeline's point of view and
// eligible for retry with backoff.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// FormatError indicates the model responded but its output violates the JSON
// feedback contract. Retrying rarely helps here, so the pipeline surfaces it
// after at most one retry.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("response format: %s: %v", e.Reason, e.Err)
	}

	return fmt.Sprintf("response format: %s", e.Reason)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}
