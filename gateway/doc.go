// Package gateway é o ponto único por onde passam as chamadas ao upstream de ofertas.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos (cache, limiter, cota, transporte, stats)
//   - application: casos de uso (FetchService, RateService, GuestQuota) sem net/http
//   - infra: implementações concretas (FIFO+TTL, janela deslizante, Redis, SQLite, HTTP)
//   - gateway (este pacote): wiring das camadas numa instância explícita
//
// Fluxo típico de uma busca:
//
//  1. Allow(ctx, "search") decide o rate limit por ação (janela deslizante)
//  2. CheckAllowed(ctx, autenticado) consulta a cota diária de visitante
//  3. FetchJSON(ctx, url, opts) devolve do cache, anexa numa chamada pendente,
//     ou faz o GET com timeout
//  4. Increment(ctx, autenticado) consome a cota e devolve a nova contagem
//
// Num servidor com vários visitantes use as variantes AllowFor, CheckAllowedFor e
// IncrementFor, que separam janela e cota pela chave do cliente.
//
// Não há estado global: cada New cria caches e limiters isolados.
package gateway
