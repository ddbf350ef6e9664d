package application

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"deal-gateway/gateway/domain"
)

// GuestQuota limita buscas de visitantes por dia civil (relógio local).
//
// Estados por dia: Fresh(0) -> Consuming(1..Ceiling-1) -> Exhausted(>=Ceiling).
// A volta para Fresh só acontece na virada do dia, detectada na próxima leitura.
// Falha do armazenamento nunca bloqueia o usuário: leitura libera, escrita é descartada.
//
// Os métodos *For separam a contagem por cliente (subject) no mesmo Store; subject
// vazio usa as chaves globais, o caso de um único perfil de navegador.
type GuestQuota struct {
	Store    domain.KVStore
	Ceiling  int
	Clock    domain.Clock
	Location *time.Location
	Stats    domain.StatsStore
	Log      zerolog.Logger
	// SubjectTTL expira as chaves por cliente quando o Store é um domain.ExpiringKVStore.
	SubjectTTL time.Duration

	// serializa ler-e-gravar dentro do processo; entre processos continua last-write-wins
	mu sync.Mutex
	// evita inundar o log quando o storage está fora por muito tempo
	warn rate.Sometimes
}

func NewGuestQuota(store domain.KVStore, ceiling int) *GuestQuota {
	return &GuestQuota{
		Store:      store,
		Ceiling:    ceiling,
		Log:        zerolog.Nop(),
		SubjectTTL: 48 * time.Hour,
		warn:       rate.Sometimes{First: 1, Interval: time.Minute},
	}
}

type quotaKeys struct{ date, count string }

func keysFor(subject string) quotaKeys {
	if subject == "" {
		return quotaKeys{date: domain.QuotaDateKey, count: domain.QuotaCountKey}
	}
	prefix := "guest:" + subject + ":"
	return quotaKeys{date: prefix + domain.QuotaDateKey, count: prefix + domain.QuotaCountKey}
}

func (q *GuestQuota) today() string {
	now := q.Clock.Now()
	if q.Location != nil {
		now = now.In(q.Location)
	}
	return now.Format(time.DateOnly)
}

// load lê (data, contagem) e já aplica a virada de dia: data diferente de hoje vale 0.
func (q *GuestQuota) load(ctx context.Context, keys quotaKeys) (domain.QuotaState, error) {
	today := q.today()
	if q.Store == nil {
		return domain.QuotaState{Date: today}, domain.ErrStorageUnavailable
	}

	date, err := q.Store.Get(ctx, keys.date)
	if err != nil {
		return domain.QuotaState{Date: today}, err
	}
	if date != today {
		return domain.QuotaState{Date: today}, nil
	}

	raw, err := q.Store.Get(ctx, keys.count)
	if err != nil {
		return domain.QuotaState{Date: today}, err
	}
	n, convErr := strconv.Atoi(raw)
	if convErr != nil || n < 0 {
		n = 0
	}
	return domain.QuotaState{Date: today, Count: n}, nil
}

// CheckAllowed diz se o chamador ainda pode buscar hoje. Autenticado sempre pode.
func (q *GuestQuota) CheckAllowed(ctx context.Context, authenticated bool) bool {
	return q.CheckAllowedFor(ctx, "", authenticated)
}

func (q *GuestQuota) CheckAllowedFor(ctx context.Context, subject string, authenticated bool) (allowed bool) {
	if authenticated {
		return true
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	defer func() {
		// um KVStore que entra em pânico também não pode travar o usuário
		if r := recover(); r != nil {
			q.storageFailed(ctx, "check", nil)
			allowed = true
		}
	}()

	st, err := q.load(ctx, keysFor(subject))
	if err != nil {
		q.storageFailed(ctx, "check", err)
		return true
	}

	allowed = st.Count < q.Ceiling
	out := domain.OutcomeAllowed
	if !allowed {
		out = domain.OutcomeDenied
	}
	q.record(ctx, out)
	return allowed
}

// Increment consome uma busca e retorna a nova contagem do dia.
// Retorna domain.QuotaUntracked para autenticados ou quando o storage falha.
func (q *GuestQuota) Increment(ctx context.Context, authenticated bool) int {
	return q.IncrementFor(ctx, "", authenticated)
}

func (q *GuestQuota) IncrementFor(ctx context.Context, subject string, authenticated bool) (count int) {
	if authenticated {
		return domain.QuotaUntracked
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			q.storageFailed(ctx, "increment", nil)
			count = domain.QuotaUntracked
		}
	}()

	keys := keysFor(subject)
	st, err := q.load(ctx, keys)
	if err != nil {
		q.storageFailed(ctx, "increment", err)
		return domain.QuotaUntracked
	}

	next := st.Count + 1
	if err := q.set(ctx, subject, keys.date, st.Date); err != nil {
		q.storageFailed(ctx, "increment", err)
		return domain.QuotaUntracked
	}
	if err := q.set(ctx, subject, keys.count, strconv.Itoa(next)); err != nil {
		q.storageFailed(ctx, "increment", err)
		return domain.QuotaUntracked
	}
	return next
}

func (q *GuestQuota) set(ctx context.Context, subject, key, value string) error {
	if exp, ok := q.Store.(domain.ExpiringKVStore); ok && subject != "" && q.SubjectTTL > 0 {
		return exp.SetWithTTL(ctx, key, value, q.SubjectTTL)
	}
	return q.Store.Set(ctx, key, value)
}

// Status lê a cota sem consumir.
func (q *GuestQuota) Status(ctx context.Context, authenticated bool) domain.QuotaStatus {
	return q.StatusFor(ctx, "", authenticated)
}

func (q *GuestQuota) StatusFor(ctx context.Context, subject string, authenticated bool) domain.QuotaStatus {
	if authenticated {
		return domain.QuotaStatus{Unlimited: true, Allowed: true, Remaining: -1}
	}
	q.mu.Lock()
	st, err := q.safeLoad(ctx, keysFor(subject))
	q.mu.Unlock()
	if err != nil {
		// storage fora: cota desativada, equivalente a ilimitado
		return domain.QuotaStatus{Unlimited: true, Allowed: true, Remaining: -1}
	}
	return domain.QuotaStatus{
		Allowed:   st.Count < q.Ceiling,
		Used:      st.Count,
		Remaining: q.Remaining(st.Count),
	}
}

func (q *GuestQuota) safeLoad(ctx context.Context, keys quotaKeys) (st domain.QuotaState, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.ErrStorageUnavailable
		}
	}()
	return q.load(ctx, keys)
}

// Remaining converte uma contagem em buscas restantes (nunca negativo).
// Para domain.QuotaUntracked retorna -1 (ilimitado/desconhecido).
func (q *GuestQuota) Remaining(count int) int {
	if count == domain.QuotaUntracked {
		return -1
	}
	if r := q.Ceiling - count; r > 0 {
		return r
	}
	return 0
}

// LowRemaining indica quando avisar o visitante: restam 1 ou 2 buscas.
func (q *GuestQuota) LowRemaining(count int) bool {
	if count == domain.QuotaUntracked {
		return false
	}
	r := q.Ceiling - count
	return r >= 1 && r <= 2
}

func (q *GuestQuota) storageFailed(ctx context.Context, op string, err error) {
	q.record(ctx, domain.OutcomeStorage)
	q.warn.Do(func() {
		q.Log.Warn().Err(err).Str("op", op).Msg("guest quota storage unavailable, enforcement disabled")
	})
}

func (q *GuestQuota) record(ctx context.Context, out domain.Outcome) {
	if q.Stats == nil {
		return
	}
	_ = q.Stats.Record(ctx, domain.StatsEvent{
		Kind:    domain.KindQuota,
		Name:    string(domain.ActionSearch),
		Outcome: out,
		At:      q.Clock.Now(),
	})
}
