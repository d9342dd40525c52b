package provider

import (
	"errors"
	"testing"
)

func TestClassifyErrorByStatus(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{429, ErrRateLimited},
		{401, ErrAuth},
		{403, ErrAuth},
	}
	for _, tc := range cases {
		err := ClassifyError(tc.status, "boom")
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d classified as %v, want %v", tc.status, err, tc.want)
		}
	}
}

func TestClassifyErrorByMessage(t *testing.T) {
	cases := []struct {
		message string
		want    error
	}{
		{"RESOURCE_EXHAUSTED: quota exceeded for model", ErrRateLimited},
		{"error 429 too many requests", ErrRateLimited},
		{"UNAUTHENTICATED: invalid credentials", ErrAuth},
		{"API key not valid", ErrAuth},
	}
	for _, tc := range cases {
		err := ClassifyError(500, tc.message)
		if !errors.Is(err, tc.want) {
			t.Errorf("%q classified as %v, want %v", tc.message, err, tc.want)
		}
	}
}

func TestClassifyErrorGeneric(t *testing.T) {
	err := ClassifyError(500, "internal server error")
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrAuth) {
		t.Fatalf("generic failure misclassified: %v", err)
	}
	var me *ModelError
	if !errors.As(err, &me) {
		t.Fatalf("expected *ModelError, got %T", err)
	}
}

func TestClassifyFinishReason(t *testing.T) {
	if err := ClassifyFinishReason("SAFETY"); !errors.Is(err, ErrSafetyBlocked) {
		t.Fatalf("SAFETY classified as %v", err)
	}
	if err := ClassifyFinishReason("safety"); !errors.Is(err, ErrSafetyBlocked) {
		t.Fatalf("lowercase safety classified as %v", err)
	}
	if err := ClassifyFinishReason("STOP"); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("STOP classified as %v", err)
	}
	if err := ClassifyFinishReason(""); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("empty reason classified as %v", err)
	}
}
