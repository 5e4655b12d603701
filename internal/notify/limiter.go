package notify

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// DomainLimiter rate-limits sends per recipient mail domain, so one large
// team does not trip its provider's inbound limits.
type DomainLimiter struct {
	mu sync.Mutex
	m  map[string]*rate.Limiter
	r  rate.Limit
	b  int
}

// NewDomainLimiter returns nil when perSec <= 0, which disables throttling.
func NewDomainLimiter(perSec float64, burst int) *DomainLimiter {
	if perSec <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &DomainLimiter{
		m: make(map[string]*rate.Limiter),
		r: rate.Limit(perSec),
		b: burst,
	}
}

func (dl *DomainLimiter) limiterFor(domain string) *rate.Limiter {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	if lim, ok := dl.m[domain]; ok {
		return lim
	}
	lim := rate.NewLimiter(dl.r, dl.b)
	dl.m[domain] = lim
	return lim
}

func (dl *DomainLimiter) Wait(ctx context.Context, recipient string) error {
	if dl == nil {
		return nil
	}
	_, domain, ok := strings.Cut(recipient, "@")
	if !ok || domain == "" {
		domain = "_"
	}
	return dl.limiterFor(strings.ToLower(domain)).Wait(ctx)
}
