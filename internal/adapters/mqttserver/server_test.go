package mqttserver

import (
	"strings"
	"testing"
)

func TestTruncatePayload(t *testing.T) {
	if got := truncatePayload([]byte("short")); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	long := strings.Repeat("x", 3000)
	got := truncatePayload([]byte(long))
	if len(got) != 2048+3 || !strings.HasSuffix(got, "...") {
		t.Fatalf("expected truncated payload, got %d bytes", len(got))
	}
}
