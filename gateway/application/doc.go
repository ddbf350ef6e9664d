// Package application contém os casos de uso do gateway: busca JSON com cache e
// deduplicação, decisão de rate limit por ação, cota diária de visitantes e
// aquisição de vagas para chamadas ao upstream.
//
// Ele depende apenas do pacote domain (e de libs sem I/O) e não conhece net/http.
// Ex.: FetchService.Fetch(ctx, url, opts) retorna o JSON decodificado ou *domain.NetworkFailure.
package application
