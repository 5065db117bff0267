package trace

import (
	"context"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := WithContext(context.Background(), "abc")
	if got := FromContext(ctx); got != "abc" {
		t.Errorf("FromContext() = %q, want %q", got, "abc")
	}
	if got := FromContext(context.Background()); got != "" {
		t.Errorf("FromContext(empty) = %q, want empty", got)
	}
}

func TestFromHeader(t *testing.T) {
	if got := FromHeader("given"); got != "given" {
		t.Errorf("FromHeader(given) = %q", got)
	}
	got := FromHeader("")
	if len(got) != 32 {
		t.Errorf("FromHeader(\"\") = %q, want 32 hex chars", got)
	}
}
