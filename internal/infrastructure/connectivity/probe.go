package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"
)

const (
	defaultProbeTimeout = 2 * time.Second
	defaultCacheTTL     = 5 * time.Second
)

// Probe answers "is the network reachable right now" with a HEAD request
// against a well-known endpoint. Verdicts are cached briefly so a burst of
// routing decisions does not turn into a burst of probe traffic.
type Probe struct {
	url        string
	httpClient *http.Client
	cacheTTL   time.Duration
	now        func() time.Time

	mu        sync.Mutex
	online    bool
	checkedAt time.Time
}

func NewProbe(url string) *Probe {
	if url == "" {
		url = "https://www.google.com/generate_204"
	}
	return &Probe{
		url:        url,
		httpClient: &http.Client{Timeout: defaultProbeTimeout},
		cacheTTL:   defaultCacheTTL,
		now:        time.Now,
	}
}

func (p *Probe) IsOnline(ctx context.Context) bool {
	p.mu.Lock()
	if !p.checkedAt.IsZero() && p.now().Sub(p.checkedAt) < p.cacheTTL {
		online := p.online
		p.mu.Unlock()
		return online
	}
	p.mu.Unlock()

	online := p.check(ctx)

	p.mu.Lock()
	p.online = online
	p.checkedAt = p.now()
	p.mu.Unlock()
	return online
}

func (p *Probe) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}
