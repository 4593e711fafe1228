package policy

import (
	"context"
	"sync"

	"github.com/abalcerek/docuscan/internal/core/domain"
)

// Unlimited disables quota tracking.
const Unlimited = -1

// Static is the access policy for standalone deployments without a central
// entitlement service: cloud access tracks credential presence, optionally
// bounded by a per-process quota.
type Static struct {
	allowed bool

	mu        sync.Mutex
	remaining int
}

// NewStatic builds a policy that grants cloud access while quota lasts.
// A negative quota means unlimited.
func NewStatic(allowed bool, quota int) *Static {
	if quota < 0 {
		quota = Unlimited
	}
	return &Static{allowed: allowed, remaining: quota}
}

func (p *Static) Decide(_ context.Context, _ *domain.AnalysisRequest) (domain.RoutingDecision, error) {
	if !p.allowed {
		return domain.LocalOnlyDecision(domain.ReasonNotSignedIn), nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remaining == Unlimited {
		return domain.CloudAllowedDecision(Unlimited), nil
	}
	if p.remaining == 0 {
		return domain.LocalOnlyDecision(domain.ReasonQuotaExhausted), nil
	}
	p.remaining--
	return domain.CloudAllowedDecision(p.remaining), nil
}
