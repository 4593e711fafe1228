package usecase

import (
	"sync"
	"time"

	"github.com/abalcerek/docuscan/internal/core/domain"
)

// DefaultBackendCooldown is how long the router avoids the cloud backend
// after a hard failure marked it down.
const DefaultBackendCooldown = 60 * time.Second

// BackendHealthTracker records the observed health of the cloud backend
// across requests. Transitions happen only after a cloud attempt completes.
// A fixed cooldown after a hard failure acts as a simple circuit breaker:
// the routing engine short-circuits to local until the cooldown elapses.
type BackendHealthTracker struct {
	mu          sync.Mutex
	status      domain.BackendHealthStatus
	lastFailure time.Time
	cooldown    time.Duration
	now         func() time.Time
}

func NewBackendHealthTracker(cooldown time.Duration) *BackendHealthTracker {
	if cooldown <= 0 {
		cooldown = DefaultBackendCooldown
	}
	return &BackendHealthTracker{
		status:   domain.BackendUnknown,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Status returns the current backend health.
func (t *BackendHealthTracker) Status() domain.BackendHealthStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// RecordSuccess marks the backend healthy and clears any failure timestamp.
func (t *BackendHealthTracker) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = domain.BackendHealthy
	t.lastFailure = time.Time{}
}

// RecordFailure applies the health state machine for a classified cloud
// failure. Rate limiting marks the backend healthy: the quota response
// proves the backend is reachable and functioning, and must never be
// conflated with an outage.
func (t *BackendHealthTracker) RecordFailure(extractionErr *domain.ExtractionError) {
	if extractionErr == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch extractionErr.Kind {
	case domain.ErrKindNetwork, domain.ErrKindTimeout, domain.ErrKindBackendUnavailable:
		t.status = domain.BackendDown
		t.lastFailure = t.now()
	case domain.ErrKindServer:
		if extractionErr.StatusCode >= 500 {
			t.status = domain.BackendDegraded
		}
	case domain.ErrKindRateLimitExceeded:
		t.status = domain.BackendHealthy
		t.lastFailure = time.Time{}
	}
	// Remaining kinds carry no signal about backend reachability.
}

// InCooldown reports whether the backend is down and the cooldown window
// since the last hard failure has not elapsed yet.
func (t *BackendHealthTracker) InCooldown() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != domain.BackendDown || t.lastFailure.IsZero() {
		return false
	}
	return t.now().Sub(t.lastFailure) < t.cooldown
}
