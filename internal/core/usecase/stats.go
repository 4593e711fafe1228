package usecase

import (
	"sync"
	"sync/atomic"

	"github.com/abalcerek/docuscan/internal/core/domain"
)

// RoutingStats holds the router's monotonically increasing counters. It is
// shared by all in-flight requests of one router instance; counters are
// atomic and the running average is guarded by a small mutex.
type RoutingStats struct {
	totalRouted    atomic.Int64
	localOnly      atomic.Int64
	cloudAssisted  atomic.Int64
	localFallbacks atomic.Int64
	cloudFallbacks atomic.Int64

	mu                  sync.Mutex
	fallbackConfSum     float64
	fallbackConfSamples int64
}

func NewRoutingStats() *RoutingStats {
	return &RoutingStats{}
}

func (s *RoutingStats) recordRouted()        { s.totalRouted.Add(1) }
func (s *RoutingStats) recordLocalOnly()     { s.localOnly.Add(1) }
func (s *RoutingStats) recordCloudAssisted() { s.cloudAssisted.Add(1) }
func (s *RoutingStats) recordLocalFallback() { s.localFallbacks.Add(1) }

func (s *RoutingStats) recordCloudFallback(localConfidence float64) {
	s.cloudFallbacks.Add(1)
	s.mu.Lock()
	s.fallbackConfSum += localConfidence
	s.fallbackConfSamples++
	s.mu.Unlock()
}

// Snapshot returns a consistent-enough point-in-time copy of the counters.
func (s *RoutingStats) Snapshot() domain.RoutingStatsSnapshot {
	s.mu.Lock()
	avg := 0.0
	if s.fallbackConfSamples > 0 {
		avg = s.fallbackConfSum / float64(s.fallbackConfSamples)
	}
	s.mu.Unlock()

	return domain.RoutingStatsSnapshot{
		TotalRouted:               s.totalRouted.Load(),
		LocalOnly:                 s.localOnly.Load(),
		CloudAssisted:             s.cloudAssisted.Load(),
		LocalFallbacks:            s.localFallbacks.Load(),
		CloudFallbacks:            s.cloudFallbacks.Load(),
		AverageFallbackConfidence: avg,
	}
}
