package tracing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsPayerFields(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/callback"),
		attribute.String("msisdn", "254712345678"),
		attribute.String("account_number", "600000"),
	)
	if len(attrs) != 1 {
		t.Fatalf("expected 1 attribute, got %d", len(attrs))
	}
	if attrs[0].Key != "http.route" {
		t.Fatalf("unexpected attribute %s", attrs[0].Key)
	}
}

func TestSafeError(t *testing.T) {
	if SafeError(nil) != nil {
		t.Fatalf("expected nil")
	}
	if !errors.Is(SafeError(fmt.Errorf("append: %w", context.DeadlineExceeded)), context.DeadlineExceeded) {
		t.Fatalf("expected deadline to be preserved")
	}
	if got := SafeError(errors.New("row 254712345678 failed")).Error(); got != "internal_error" {
		t.Fatalf("expected redacted error, got %q", got)
	}
}
