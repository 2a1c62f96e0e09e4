package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"covercache/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "transport", "fetch", "request failed", base)
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
	for _, fragment := range []string{"transport", "fetch", "request failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want services.Outcome
	}{
		{name: "nil", err: nil, want: services.OutcomeAbsent},
		{name: "not found", err: services.Wrap(services.ErrNotFound, "transport", "fetch", "404", nil), want: services.OutcomeAbsent},
		{name: "transient", err: services.Wrap(services.ErrTransient, "transport", "fetch", "503", nil), want: services.OutcomeIndeterminate},
		{name: "plain", err: fmt.Errorf("disk full"), want: services.OutcomeIndeterminate},
		{name: "deadline", err: context.DeadlineExceeded, want: services.OutcomeIndeterminate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.Classify(tt.err); got != tt.want {
				t.Fatalf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}
