package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestActorDefaultsWhenHeaderMissing(t *testing.T) {
	var got string
	handler := Actor(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ActorFromContext(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/stock", nil))
	if got != defaultActor {
		t.Fatalf("expected default actor, got %q", got)
	}
}

func TestActorTrimsAndCapsHeader(t *testing.T) {
	var got string
	handler := Actor(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", nil)
	req.Header.Set(actorHeader, "  "+strings.Repeat("a", maxActorLen+10)+"  ")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if len(got) != maxActorLen {
		t.Fatalf("expected actor capped at %d chars, got %d", maxActorLen, len(got))
	}
}
