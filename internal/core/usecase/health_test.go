package usecase

import (
	"testing"
	"time"

	"github.com/abalcerek/docuscan/internal/core/domain"
)

func TestHealthTrackerStartsUnknown(t *testing.T) {
	tracker := NewBackendHealthTracker(time.Minute)
	if got := tracker.Status(); got != domain.BackendUnknown {
		t.Fatalf("expected unknown, got %s", got)
	}
	if tracker.InCooldown() {
		t.Fatalf("unknown backend must be eligible for cloud attempts")
	}
}

func TestHealthTrackerHardFailureMarksDown(t *testing.T) {
	for _, kind := range []domain.ExtractionErrorKind{
		domain.ErrKindNetwork,
		domain.ErrKindTimeout,
		domain.ErrKindBackendUnavailable,
	} {
		tracker := NewBackendHealthTracker(time.Minute)
		tracker.RecordFailure(domain.NewExtractionError(kind, "boom", nil))
		if got := tracker.Status(); got != domain.BackendDown {
			t.Fatalf("kind %s: expected down, got %s", kind, got)
		}
		if !tracker.InCooldown() {
			t.Fatalf("kind %s: expected cooldown active", kind)
		}
	}
}

func TestHealthTrackerServerErrorDegradesWithoutCooldown(t *testing.T) {
	tracker := NewBackendHealthTracker(time.Minute)
	serverErr := domain.NewExtractionError(domain.ErrKindServer, "internal", nil)
	serverErr.StatusCode = 502
	tracker.RecordFailure(serverErr)

	if got := tracker.Status(); got != domain.BackendDegraded {
		t.Fatalf("expected degraded, got %s", got)
	}
	if tracker.InCooldown() {
		t.Fatalf("degraded backend must not trigger the cooldown skip")
	}
}

func TestHealthTrackerRepeatedRateLimitStaysHealthy(t *testing.T) {
	tracker := NewBackendHealthTracker(time.Minute)
	for i := 0; i < 5; i++ {
		tracker.RecordFailure(domain.NewExtractionError(domain.ErrKindRateLimitExceeded, "quota", nil))
	}
	if got := tracker.Status(); got != domain.BackendHealthy {
		t.Fatalf("rate limiting indicates a working backend, got %s", got)
	}
	if tracker.InCooldown() {
		t.Fatalf("rate limiting must never start a cooldown")
	}
}

func TestHealthTrackerOtherKindsDoNotTransition(t *testing.T) {
	tracker := NewBackendHealthTracker(time.Minute)
	tracker.RecordSuccess()
	for _, kind := range []domain.ExtractionErrorKind{
		domain.ErrKindAuthenticationRequired,
		domain.ErrKindSubscriptionRequired,
		domain.ErrKindNotAvailable,
		domain.ErrKindInvalidResponse,
		domain.ErrKindAnalysisIncomplete,
		domain.ErrKindImageUploadFailed,
	} {
		tracker.RecordFailure(domain.NewExtractionError(kind, "x", nil))
		if got := tracker.Status(); got != domain.BackendHealthy {
			t.Fatalf("kind %s: expected no transition from healthy, got %s", kind, got)
		}
	}
}

func TestHealthTrackerCooldownExpires(t *testing.T) {
	tracker := NewBackendHealthTracker(time.Minute)
	current := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return current }

	tracker.RecordFailure(domain.NewExtractionError(domain.ErrKindNetwork, "unreachable", nil))
	if !tracker.InCooldown() {
		t.Fatalf("expected cooldown right after failure")
	}

	current = current.Add(59 * time.Second)
	if !tracker.InCooldown() {
		t.Fatalf("expected cooldown at 59s")
	}

	current = current.Add(2 * time.Second)
	if tracker.InCooldown() {
		t.Fatalf("expected cooldown expired at 61s")
	}
	if got := tracker.Status(); got != domain.BackendDown {
		t.Fatalf("expiry only re-enables attempts, status stays down until an outcome, got %s", got)
	}
}

func TestHealthTrackerSuccessClearsFailure(t *testing.T) {
	tracker := NewBackendHealthTracker(time.Minute)
	tracker.RecordFailure(domain.NewExtractionError(domain.ErrKindTimeout, "slow", nil))
	tracker.RecordSuccess()

	if got := tracker.Status(); got != domain.BackendHealthy {
		t.Fatalf("expected healthy, got %s", got)
	}
	if tracker.InCooldown() {
		t.Fatalf("success must clear the failure timestamp")
	}
}
