package services_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"

	"blendflow/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "fetch", "download", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"fetch", "download", "failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "publish", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want services.Kind
	}{
		{"nil", nil, services.KindNone},
		{"validation", services.Wrap(services.ErrValidation, "transform", "prepare", "ratio", nil), services.KindValidation},
		{"timeout", services.Wrap(services.ErrTimeout, "publish", "upload", "", nil), services.KindTransient},
		{"rate limited", services.Wrap(services.ErrRateLimited, "fetch", "", "", nil), services.KindTransient},
		{"unauthorized", services.Wrap(services.ErrUnauthorized, "publish", "", "", nil), services.KindPermanent},
		{"not found", services.Wrap(services.ErrNotFound, "fetch", "", "", nil), services.KindPermanent},
		{"circuit", services.Wrap(services.ErrCircuitOpen, "fetch", "", "", nil), services.KindCircuitOpen},
		{"cancelled", context.Canceled, services.KindCancelled},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), services.KindTransient},
		{"http 503", errors.New("server returned 503 Service Unavailable"), services.KindTransient},
		{"quota", errors.New("Quota exceeded for bucket"), services.KindTransient},
		{"plain", errors.New("disk full of nonsense"), services.KindPermanent},
		{"bad gateway code", errors.New("bad response code: 502"), services.KindTransient},
		{"status sentence", errors.New("upload failed with HTTP 500."), services.KindTransient},
		{"connection refused", errors.New("dial tcp 10.0.0.1:443: connect: connection refused"), services.KindTransient},
		{"size with status digits", errors.New("file too small: 1500 bytes"), services.KindPermanent},
		{"decimal with status digits", errors.New("ratio 0.503 out of range"), services.KindPermanent},
		{"connection string", errors.New("connection string invalid"), services.KindPermanent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Classify(tc.err); got != tc.want {
				t.Fatalf("Classify(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestCountsAgainstDependency(t *testing.T) {
	if !services.CountsAgainstDependency(services.Wrap(services.ErrTransient, "fetch", "", "", nil)) {
		t.Fatal("expected transient failure to count")
	}
	if !services.CountsAgainstDependency(services.Wrap(services.ErrUnauthorized, "publish", "", "", nil)) {
		t.Fatal("expected unauthorized failure to count")
	}
	for _, err := range []error{
		nil,
		services.Wrap(services.ErrValidation, "fetch", "", "", nil),
		services.Wrap(services.ErrNotFound, "fetch", "", "", nil),
		services.Wrap(services.ErrMalformedInput, "transform", "", "", nil),
		context.Canceled,
		services.Wrap(services.ErrCircuitOpen, "fetch", "", "", nil),
	} {
		if services.CountsAgainstDependency(err) {
			t.Fatalf("expected %v not to count against dependency", err)
		}
	}
}

func TestHintRoundTrip(t *testing.T) {
	err := services.WithHint(services.Wrap(services.ErrUnauthorized, "publish", "", "", nil), "check GOOGLE_APPLICATION_CREDENTIALS")
	if got := services.Hint(err); !strings.Contains(got, "GOOGLE_APPLICATION_CREDENTIALS") {
		t.Fatalf("unexpected hint %q", got)
	}
	if services.Hint(nil) != "" {
		t.Fatal("expected empty hint for nil")
	}
}
