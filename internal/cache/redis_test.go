package cache

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestConnectRejectsBadURL(t *testing.T) {
	_, err := Connect(context.Background(), "redis://:bad:port:/x", time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "redis") {
		t.Fatalf("expected error, got %v", err)
	}
}

func TestConnectFailsWithoutServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := Connect(ctx, "127.0.0.1:1", 50*time.Millisecond); err == nil {
		t.Fatal("expected ping failure")
	}
}

func TestWebhookKey(t *testing.T) {
	if got := webhookKey("evt_1"); got != "teevil:webhook:event:evt_1" {
		t.Fatalf("key = %q", got)
	}
}
