package env

import "testing"

func TestGetPrefersEarlierKeys(t *testing.T) {
	t.Setenv("VEHICLESYNC_LOG_FORMAT", " console ")
	t.Setenv("LOG_FORMAT", "json")

	if got := Get("json", "VEHICLESYNC_LOG_FORMAT", "LOG_FORMAT"); got != "console" {
		t.Fatalf("expected console, got %q", got)
	}
	t.Setenv("VEHICLESYNC_LOG_FORMAT", "  ")
	if got := Get("text", "VEHICLESYNC_LOG_FORMAT", "LOG_FORMAT"); got != "json" {
		t.Fatalf("expected generic key to apply, got %q", got)
	}
	if got := Get("text", "VEHICLESYNC_UNSET_FOR_TEST"); got != "text" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
