package provider

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the model-error taxonomy. Only these are loop-fatal;
// tool failures are folded into the conversation as ordinary content.
var (
	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrAuth          = errors.New("authentication failed")
	ErrSafetyBlocked = errors.New("response blocked by safety filters")
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// ModelError wraps a provider failure with its classified category.
type ModelError struct {
	Kind   error // one of the sentinels above, or nil for generic
	Detail string
}

func (e *ModelError) Error() string {
	if e.Kind != nil {
		return fmt.Sprintf("%v: %s", e.Kind, e.Detail)
	}
	return e.Detail
}

func (e *ModelError) Unwrap() error { return e.Kind }

// ClassifyError maps a raw provider error to the model-error taxonomy by
// status code and message content. Unrecognized failures stay generic.
func ClassifyError(statusCode int, message string) error {
	detail := strings.TrimSpace(message)
	switch statusCode {
	case 429:
		return &ModelError{Kind: ErrRateLimited, Detail: detail}
	case 401, 403:
		return &ModelError{Kind: ErrAuth, Detail: detail}
	}

	lower := strings.ToLower(detail)
	switch {
	case strings.Contains(lower, "resource_exhausted") ||
		strings.Contains(lower, "resource exhausted") ||
		strings.Contains(detail, "429") ||
		strings.Contains(lower, "quota"):
		return &ModelError{Kind: ErrRateLimited, Detail: detail}
	case strings.Contains(lower, "unauthenticated") ||
		strings.Contains(lower, "api key") ||
		strings.Contains(detail, "401") ||
		strings.Contains(lower, "permission denied"):
		return &ModelError{Kind: ErrAuth, Detail: detail}
	}
	return &ModelError{Detail: detail}
}

// ClassifyFinishReason inspects a candidate finish reason for terminal
// conditions on an otherwise empty response.
func ClassifyFinishReason(finishReason string) error {
	if strings.EqualFold(finishReason, "SAFETY") {
		return &ModelError{Kind: ErrSafetyBlocked, Detail: "finish reason SAFETY"}
	}
	if finishReason == "" {
		finishReason = "UNKNOWN"
	}
	return &ModelError{Kind: ErrEmptyResponse, Detail: fmt.Sprintf("finish reason %s", finishReason)}
}
