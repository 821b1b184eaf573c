package derrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodedErrors(t *testing.T) {
	t.Run("New carries code and message", func(t *testing.T) {
		err := New(CodeNotFound, "referral not found")
		if !HasCode(err, CodeNotFound) {
			t.Fatalf("expected code %s, got %s", CodeNotFound, CodeOf(err))
		}
		if MessageOf(err) != "referral not found" {
			t.Fatalf("unexpected message %q", MessageOf(err))
		}
	})

	t.Run("Wrap preserves the cause", func(t *testing.T) {
		cause := errors.New("pq: connection refused")
		err := Wrap(cause, CodeInternal, "persist referral")
		if !errors.Is(err, cause) {
			t.Fatalf("expected wrapped error to match its cause")
		}
		if !HasCode(err, CodeInternal) {
			t.Fatalf("expected internal code, got %s", CodeOf(err))
		}
	})

	t.Run("Wrap of nil is nil", func(t *testing.T) {
		if Wrap(nil, CodeInternal, "whatever") != nil {
			t.Fatalf("expected nil")
		}
	})

	t.Run("HasCode sees through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("create referral: %w", New(CodeRateLimited, "slow down"))
		if !HasCode(err, CodeRateLimited) {
			t.Fatalf("expected rate_limited through the wrap chain")
		}
		if HasCode(err, CodeConflict) {
			t.Fatalf("did not expect conflict")
		}
	})

	t.Run("uncoded errors default to internal", func(t *testing.T) {
		err := errors.New("something broke")
		if CodeOf(err) != CodeInternal {
			t.Fatalf("expected default internal code, got %s", CodeOf(err))
		}
		if MessageOf(err) != "internal error" {
			t.Fatalf("uncoded message must stay opaque, got %q", MessageOf(err))
		}
	})
}
