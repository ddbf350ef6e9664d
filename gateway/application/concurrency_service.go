package application

import (
	"context"
	"time"

	"deal-gateway/gateway/domain"
)

// ConcurrencyService concentra a regra de aquisição de vagas para chamadas ao upstream,
// sem saber nada sobre HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
//   - Sem Pool configurado, sempre libera (release no-op).
//   - Se `AcquireTimeout <= 0`, espera até ctx encerrar.
//   - Se `AcquireTimeout > 0`, espera no máximo o timeout.
//
// Retorna domain.ErrNoSlot quando nenhuma vaga foi adquirida.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), error) {
	if s.Pool == nil {
		return func() {}, nil
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	if !ok {
		return nil, domain.ErrNoSlot
	}
	return release, nil
}
