package pubsub

import (
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/vehiclesync-backend/pkg/config"
)

func TestResourceName(t *testing.T) {
	c := &Client{projectID: "vs-prod"}

	cases := []struct {
		kind resourceKind
		in   string
		want string
	}{
		{kindTopic, "vehicle-lifecycle-events", "projects/vs-prod/topics/vehicle-lifecycle-events"},
		{kindTopic, "projects/other/topics/lifecycle", "projects/other/topics/lifecycle"},
		{kindTopic, "projects/other/subscriptions/audit", "projects/vs-prod/topics/projects/other/subscriptions/audit"},
		{kindSubscription, " lifecycle-audit ", "projects/vs-prod/subscriptions/lifecycle-audit"},
		{kindSubscription, "", ""},
	}
	for _, tc := range cases {
		if got := c.resourceName(tc.kind, tc.in); got != tc.want {
			t.Fatalf("resourceName(%s, %q) = %q, want %q", tc.kind, tc.in, got, tc.want)
		}
	}

	if got := (&Client{}).resourceName(kindTopic, "t"); got != "" {
		t.Fatalf("expected empty name without a project, got %q", got)
	}
}

func TestDescribeLookup(t *testing.T) {
	if err := describeLookup(kindTopic, "t", nil); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	missing := describeLookup(kindSubscription, "audit", status.Error(codes.NotFound, "gone"))
	if missing == nil || !strings.Contains(missing.Error(), `subscription "audit" does not exist`) {
		t.Fatalf("unexpected not-found error %v", missing)
	}
	denied := status.Error(codes.PermissionDenied, "no")
	if err := describeLookup(kindTopic, "t", denied); !errors.Is(err, denied) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Publisher("t") != nil || c.LifecyclePublisher() != nil {
		t.Fatal("expected nil publishers")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Ping(context.Background()); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{ProjectID: "  "}, config.PubSubConfig{}, nil)
	if !errors.Is(err, errProjectIDRequired) {
		t.Fatalf("expected project id error, got %v", err)
	}
}
