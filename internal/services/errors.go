package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

// Outcome names how a failed resolution step is reported in logs. Both
// outcomes are folded into "no result" before anything reaches a caller.
type Outcome string

const (
	// OutcomeAbsent means the resource genuinely does not exist.
	OutcomeAbsent Outcome = "absent"
	// OutcomeIndeterminate covers bad statuses, timeouts, malformed bodies
	// and filesystem errors.
	OutcomeIndeterminate Outcome = "indeterminate"
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps a step error to the outcome reported in logs. A nil error is
// classified as absent since the step simply produced nothing.
func Classify(err error) Outcome {
	switch {
	case err == nil, errors.Is(err, ErrNotFound):
		return OutcomeAbsent
	default:
		return OutcomeIndeterminate
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
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
