package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(CodeDependency, cause, "upload document")

	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", err.Code())
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to survive wrapping")
	}
	if got := err.Error(); got != "DEPENDENCY_ERROR: upload document" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestAsUnwrapsThroughFmtWrapping(t *testing.T) {
	inner := New(CodeCooldownActive, "24h not elapsed")
	wrapped := fmt.Errorf("continue campaign: %w", inner)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeCooldownActive {
		t.Fatalf("unexpected code %s", typed.Code())
	}
}

func TestMetadataForDomainCodes(t *testing.T) {
	cases := map[Code]int{
		CodeAllocationExhausted: http.StatusServiceUnavailable,
		CodeIssuanceFailed:      http.StatusServiceUnavailable,
		CodeCooldownActive:      http.StatusTooManyRequests,
		CodeInconsistency:       http.StatusConflict,
	}
	for code, status := range cases {
		if got := MetadataFor(code).HTTPStatus; got != status {
			t.Fatalf("code %s: expected status %d, got %d", code, status, got)
		}
	}
	if MetadataFor(Code("BOGUS")).HTTPStatus != http.StatusInternalServerError {
		t.Fatal("unknown codes must fall back to internal")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if IsUniqueViolation(nil) {
		t.Fatal("nil is not a violation")
	}
	if IsUniqueViolation(errors.New("deadlock detected")) {
		t.Fatal("unrelated errors must not match")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: invoices.number")) {
		t.Fatal("sqlite unique violations must match")
	}
}
