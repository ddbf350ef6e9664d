// Package ratelimit fornece adapters HTTP (net/http) sobre o gateway de ofertas.
//
// Middlewares disponíveis:
//
//   - Middleware: janela deslizante por cliente e ação (429 + Retry-After)
//   - QuotaMiddleware: cota diária por visitante para ações pagas (402 + X-Guest-Remaining)
//   - ConcurrencyMiddleware: limite de requisições simultâneas (503)
//
// O cliente é identificado por DefaultKeyFunc (header configurado, X-Forwarded-For
// ou RemoteAddr).
//
// Fluxo no gateway:
//
//  1. Resolve a ação da rota (primeiro segmento depois de /api/)
//  2. Pede a decisão ao gateway (pacote gateway, sem net/http)
//  3. Se bloqueado, responde 429, 402 ou 503
//  4. Se permitido, chama o próximo handler (ex: proxy para a API de ofertas)
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o comportamento,
// como RATE_SEARCH, GUEST_DAILY_CEILING, CONCURRENCY_MAX e CONCURRENCY_TIMEOUT.
package ratelimit
