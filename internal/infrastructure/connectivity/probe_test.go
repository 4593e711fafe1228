package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestIsOnlineCachesVerdict(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	probe := NewProbe(server.URL)
	current := time.Now()
	probe.now = func() time.Time { return current }

	for i := 0; i < 5; i++ {
		if !probe.IsOnline(context.Background()) {
			t.Fatalf("expected online")
		}
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected a single probe within the cache window, got %d", got)
	}

	current = current.Add(probe.cacheTTL + time.Second)
	if !probe.IsOnline(context.Background()) {
		t.Fatalf("expected online after cache expiry")
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected a fresh probe after expiry, got %d", got)
	}
}

func TestIsOnlineFalseWhenUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	probe := NewProbe(server.URL)
	if probe.IsOnline(context.Background()) {
		t.Fatalf("expected offline against a closed server")
	}
}

func TestIsOnlineFalseOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	probe := NewProbe(server.URL)
	if probe.IsOnline(context.Background()) {
		t.Fatalf("expected offline on 5xx")
	}
}
