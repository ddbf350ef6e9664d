package domain

// Camada de domínio do rate limit por ação.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

// Action é o nome de uma ação do cliente (ex: "search", "generateLink", "wishlist").
type Action string

const (
	ActionSearch       Action = "search"
	ActionGenerateLink Action = "generateLink"
	ActionWishlist     Action = "wishlist"
	ActionDeal         Action = "deal"
)

// ActionLimiter decide se uma ação pode executar agora, dado um teto por janela.
//
// Observação: a implementação de referência é uma janela deslizante (log de timestamps),
// não um token bucket: "N ações em qualquer janela de 60s", sem suavização.
type ActionLimiter interface {
	Check(action Action, ceiling int) bool
}

// RetryAdvisor é implementado por limiters que sabem quando a próxima vaga abre.
type RetryAdvisor interface {
	RetryAfter(action Action, ceiling int) time.Duration
}

type Decision struct {
	Allowed bool
	Limit   int
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
