package qerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := InvalidModel("model %q is broken", "User")
	if KindOf(err) != KindInvalidModel {
		t.Errorf("KindOf = %q, want %q", KindOf(err), KindInvalidModel)
	}

	wrapped := fmt.Errorf("loading models: %w", err)
	if KindOf(wrapped) != KindInvalidModel {
		t.Error("KindOf should see through wrapping")
	}

	if KindOf(errors.New("plain")) != "" {
		t.Error("KindOf of a foreign error should be empty")
	}
}

func TestExecutorFailureCarriesSQLAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := ExecutorFailure("DROP TABLE \"users\";", cause)

	if !errors.Is(err, cause) {
		t.Error("cause should be unwrappable")
	}

	msg := err.Error()
	for _, want := range []string{"executor", "DROP TABLE", "connection refused"} {
		if !containsStr(msg, want) {
			t.Errorf("error message %q missing %q", msg, want)
		}
	}
}

func containsStr(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
