package services

import (
	"context"
	"net"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrValidation     = errors.New("validation error")
	ErrConfiguration  = errors.New("configuration error")
	ErrTransient      = errors.New("transient failure")
	ErrTimeout        = errors.New("timeout")
	ErrRateLimited    = errors.New("rate limited")
	ErrPermanent      = errors.New("permanent failure")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not found")
	ErrMalformedInput = errors.New("malformed input")
	ErrCircuitOpen    = errors.New("circuit open")
	ErrCancelled      = errors.New("cancelled")
)

// Kind is the coarse failure class the executor acts on.
type Kind string

const (
	KindNone        Kind = ""
	KindValidation  Kind = "validation"
	KindTransient   Kind = "transient"
	KindPermanent   Kind = "permanent"
	KindCircuitOpen Kind = "circuit_open"
	KindCancelled   Kind = "cancelled"
)

// Wrap builds an error message that includes stage context while marking it
// with the provided sentinel for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	var wrapped error
	if err != nil {
		wrapped = errors.Wrapf(err, "%s: %s", marker.Error(), detail)
	} else {
		wrapped = errors.Newf("%s: %s", marker.Error(), detail)
	}
	return errors.Mark(wrapped, marker)
}

// WithHint attaches an operator-facing remediation hint.
func WithHint(err error, hint string) error {
	if err == nil || strings.TrimSpace(hint) == "" {
		return err
	}
	return errors.WithHint(err, hint)
}

// Hint returns the flattened hints attached to err, if any.
func Hint(err error) string {
	if err == nil {
		return ""
	}
	return errors.FlattenHints(err)
}

// Classify maps an error onto the failure kinds the retry and breaker logic
// understand. Marked errors are trusted first; unmarked errors fall back to
// message heuristics so foreign client errors still classify sensibly.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrCircuitOpen):
		return KindCircuitOpen
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration):
		return KindValidation
	case errors.IsAny(err, ErrPermanent, ErrUnauthorized, ErrNotFound, ErrMalformedInput):
		return KindPermanent
	case errors.IsAny(err, ErrTransient, ErrTimeout, ErrRateLimited, context.DeadlineExceeded):
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTransient
	}
	if looksTransient(err.Error()) {
		return KindTransient
	}
	return KindPermanent
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return Classify(err) == KindTransient
}

// CountsAgainstDependency reports whether a failure should be recorded on the
// dependency's circuit breaker. Input problems and cancellations say nothing
// about the dependency's health.
func CountsAgainstDependency(err error) bool {
	if err == nil {
		return false
	}
	switch Classify(err) {
	case KindTransient:
		return true
	case KindPermanent:
		return !errors.IsAny(err, ErrNotFound, ErrMalformedInput)
	default:
		return false
	}
}

var transientFragments = []string{
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"connection aborted",
	"broken pipe",
	"temporary failure",
	"temporarily",
	"unavailable",
	"rate limit",
	"too many requests",
	"quota exceeded",
}

// transientStatus matches retryable HTTP status codes as whole numbers, so
// sizes and counts such as "1500 bytes" do not qualify.
var transientStatus = regexp.MustCompile(`(?:^|[^\w.])(?:429|50[0-4])(?:$|\.?[^\w.]|\.$)`)

func looksTransient(message string) bool {
	lower := strings.ToLower(message)
	for _, fragment := range transientFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return transientStatus.MatchString(lower)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
