// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - FIFOCache: cache de respostas com TTL e despejo por ordem de inserção
//   - SlidingWindow: rate limit por ação com log de timestamps
//   - HTTPTransport / PacedTransport: GET via go-retryablehttp, ritmo via x/time/rate
//   - MemoryKV / RedisKV / SQLiteKV: armazenamento da cota de visitantes
//   - stats em memória, Redis e Prometheus
package infra
