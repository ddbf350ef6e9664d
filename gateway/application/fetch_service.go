package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"deal-gateway/gateway/domain"
)

// FetchService busca JSON de uma URL passando por cache e deduplicação.
//
// Ordem: cache válido -> chamada pendente da mesma chave -> nova chamada com timeout.
// Falhas nunca são cacheadas e todos os chamadores anexados a uma chamada recebem
// o mesmo valor (ou a mesma falha). Seguro para uso concorrente.
type FetchService struct {
	Cache     domain.ResponseCache
	Transport domain.Transport
	Slots     ConcurrencyService
	Stats     domain.StatsStore
	Clock     domain.Clock
	Timeout   time.Duration
	Log       zerolog.Logger

	flights singleflight.Group
}

const defaultFetchTimeout = 10 * time.Second

func (s *FetchService) timeout() time.Duration {
	if s.Timeout <= 0 {
		return defaultFetchTimeout
	}
	return s.Timeout
}

// Fetch retorna o JSON decodificado para (url, opts).
//
// Se ctx do chamador encerrar, ele para de esperar, mas a chamada compartilhada
// continua para os demais chamadores anexados (cancelamento é tudo-ou-nada por chave,
// e só o timeout fixo cancela a chamada).
func (s *FetchService) Fetch(ctx context.Context, rawURL string, opts domain.Options) (any, error) {
	key, err := CanonicalKey(rawURL, opts)
	if err != nil {
		return nil, err
	}

	if v, ok := s.Cache.Get(key, s.Clock.Now()); ok {
		s.record(ctx, domain.KindCache, key, domain.OutcomeHit)
		return v, nil
	}

	ch := s.flights.DoChan(string(key), func() (any, error) {
		return s.load(ctx, key, rawURL, opts)
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.record(ctx, domain.KindCache, key, domain.OutcomeShared)
		}
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// load roda uma única vez por chave em voo.
func (s *FetchService) load(ctx context.Context, key domain.Key, rawURL string, opts domain.Options) (any, error) {
	// outro voo pode ter gravado entre o Get do chamador e o registro deste voo
	if v, ok := s.Cache.Get(key, s.Clock.Now()); ok {
		s.record(ctx, domain.KindCache, key, domain.OutcomeHit)
		return v, nil
	}
	s.record(ctx, domain.KindCache, key, domain.OutcomeMiss)

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout())
	defer cancel()

	release, err := s.Slots.Acquire(callCtx)
	if err != nil {
		s.record(ctx, domain.KindFetch, key, domain.OutcomeFailure)
		return nil, &domain.NetworkFailure{URL: rawURL, Timeout: true, Err: err}
	}
	defer release()

	start := time.Now()
	resp, err := s.Transport.Get(callCtx, rawURL, opts)
	if err != nil {
		nf := &domain.NetworkFailure{URL: rawURL, Timeout: isTimeout(callCtx, err), Err: err}
		s.failed(ctx, key, nf, time.Since(start))
		return nil, nf
	}
	if resp.Status < 200 || resp.Status > 299 {
		nf := &domain.NetworkFailure{URL: rawURL, Status: resp.Status}
		s.failed(ctx, key, nf, time.Since(start))
		return nil, nf
	}

	var v any
	if err := json.Unmarshal(resp.Body, &v); err != nil {
		s.record(ctx, domain.KindFetch, key, domain.OutcomeFailure)
		return nil, fmt.Errorf("GET %s: %w: %v", rawURL, domain.ErrDecode, err)
	}

	s.record(ctx, domain.KindFetch, key, domain.OutcomeOK)
	if evicted, ok := s.Cache.Put(key, v, s.Clock.Now()); ok {
		s.record(ctx, domain.KindCache, evicted, domain.OutcomeEvicted)
	}
	s.Log.Debug().Str("url", rawURL).Dur("took", time.Since(start)).Msg("upstream fetch ok")
	return v, nil
}

func (s *FetchService) failed(ctx context.Context, key domain.Key, nf *domain.NetworkFailure, took time.Duration) {
	s.record(ctx, domain.KindFetch, key, domain.OutcomeFailure)
	s.Log.Warn().
		Str("url", nf.URL).
		Int("status", nf.Status).
		Bool("timeout", nf.Timeout).
		Dur("took", took).
		Err(nf.Err).
		Msg("upstream fetch failed")
}

func isTimeout(callCtx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (s *FetchService) record(ctx context.Context, kind domain.Kind, key domain.Key, out domain.Outcome) {
	if s.Stats == nil {
		return
	}
	_ = s.Stats.Record(ctx, domain.StatsEvent{
		Kind:    kind,
		Name:    string(key),
		Outcome: out,
		At:      s.Clock.Now(),
	})
}
