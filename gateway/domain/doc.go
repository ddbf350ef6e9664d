// Package domain define contratos e tipos de domínio do gateway de requisições:
// cache de respostas, deduplicação, rate limit por ação e cota diária de visitantes.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar regras de negócio
// de detalhes de infraestrutura (Redis, SQLite, cliente HTTP).
package domain
