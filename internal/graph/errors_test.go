package graph

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestClassifiersWalkWrappedChains(t *testing.T) {
	base := NewVersionConflict(OpUpdate, "node-1")
	wrapped := fmt.Errorf("unlink pass: %w", base)

	if !IsVersionConflict(wrapped) {
		t.Fatal("expected version conflict through wrap")
	}
	if IsRetryable(wrapped) {
		t.Fatal("version conflicts must not be blindly retried")
	}
}

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", NewRateLimited(OpFetchPage, 0), true},
		{"timeout", NewTimeout(OpFetchNode, "a"), true},
		{"unavailable", NewUnavailable(OpFetchPage, fmt.Errorf("connection reset")), true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"not found", NewNotFound(OpFetchNode, "a"), false},
		{"validation", NewValidation(OpUpdate, "a", "bad payload"), false},
		{"malformed page", NewMalformedPage(OpFetchPage, "total is negative"), false},
		{"nil", nil, false},
	}

	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Fatalf("%s: IsRetryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRetryAfterExtraction(t *testing.T) {
	err := NewRateLimited(OpFetchPage, 5*time.Second)
	wrapped := fmt.Errorf("page 3: %w", err)

	if got := RetryAfter(wrapped); got != 5*time.Second {
		t.Fatalf("RetryAfter = %v, want 5s", got)
	}
	if got := RetryAfter(NewNotFound(OpFetchNode, "a")); got != 0 {
		t.Fatalf("RetryAfter on not-found = %v, want 0", got)
	}
}

func TestOpErrorMessageIncludesNode(t *testing.T) {
	err := NewNotFound(OpFetchNode, "entry-9")
	if got := err.Error(); got != "graph: fetch_node entry-9: graph: node not found" {
		t.Fatalf("unexpected message: %q", got)
	}
}
