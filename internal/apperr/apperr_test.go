package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeSurvivesWrapping(t *testing.T) {
	base := errors.New("permission denied")
	err := fmt.Errorf("merge: %w", StoreUnavailable("commit lead table", base))

	if !Is(err, CodeStoreUnavailable) {
		t.Fatalf("expected STORE_UNAVAILABLE in chain, got %q", CodeOf(err))
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected underlying cause to be reachable")
	}
	if Is(err, CodeMissingIdentity) {
		t.Fatalf("unexpected code match")
	}
	if Is(nil, CodeStoreUnavailable) {
		t.Fatalf("nil must not match any code")
	}
}

func TestMessageOf(t *testing.T) {
	if got := MessageOf(NoPendingWork("all caught up")); got != "all caught up" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := MessageOf(errors.New("plain")); got != "plain" {
		t.Fatalf("unexpected message %q", got)
	}
}
