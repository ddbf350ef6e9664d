package infra

import (
	"context"

	"golang.org/x/time/rate"

	"deal-gateway/gateway/domain"
)

// PacedTransport limita o ritmo de chamadas ao upstream com token bucket (x/time/rate).
//
// É proteção do upstream, independente do rate limit por ação do cliente:
// a chamada espera um token (respeitando ctx) em vez de ser negada.
type PacedTransport struct {
	next domain.Transport
	lim  *rate.Limiter
}

// NewPacedTransport devolve `next` sem alteração quando rps <= 0.
func NewPacedTransport(next domain.Transport, rps float64, burst int) domain.Transport {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &PacedTransport{next: next, lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (p *PacedTransport) RPS() float64 { return float64(p.lim.Limit()) }
func (p *PacedTransport) Burst() int   { return p.lim.Burst() }

// Get implementa domain.Transport.
func (p *PacedTransport) Get(ctx context.Context, url string, opts domain.Options) (domain.Response, error) {
	if err := p.lim.Wait(ctx); err != nil {
		return domain.Response{}, err
	}
	return p.next.Get(ctx, url, opts)
}
