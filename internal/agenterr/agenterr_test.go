package agenterr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestNotFound(t *testing.T) {
	err := NewAgentNotFound("writer")
	if !IsNotFound(err) {
		t.Fatal("expected IsNotFound")
	}
	if !strings.Contains(err.Error(), "agent") || !strings.Contains(err.Error(), "writer") {
		t.Fatalf("message = %q", err.Error())
	}

	wrapped := fmt.Errorf("loading: %w", NewSessionNotFound("s1"))
	if !IsNotFound(wrapped) {
		t.Fatal("expected IsNotFound through wrapping")
	}
	if IsNotFound(errors.New("other")) {
		t.Fatal("unrelated error must not match")
	}
}

func TestToolErrorUnwrap(t *testing.T) {
	cause := errors.New("file missing")
	err := &ToolError{Tool: "read_file", Elapsed: 15 * time.Millisecond, Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatal("expected Unwrap to expose the cause")
	}
	if !strings.Contains(err.Error(), "read_file") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestModelErrorUnwrap(t *testing.T) {
	cause := errors.New("429")
	err := &ModelError{Model: "gpt-4o", Elapsed: time.Second, Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatal("expected Unwrap to expose the cause")
	}
}

func TestInteractionTimeout(t *testing.T) {
	err := &InteractionTimeoutError{SessionID: "s1", AgentID: "helper", Bound: 2 * time.Minute}
	if !IsInteractionTimeout(err) {
		t.Fatal("expected IsInteractionTimeout")
	}
	if IsInteractionTimeout(errors.New("deadline")) {
		t.Fatal("unrelated error must not match")
	}
	if !strings.Contains(err.Error(), "helper") {
		t.Fatalf("message = %q", err.Error())
	}
}
