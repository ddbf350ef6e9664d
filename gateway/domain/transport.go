package domain

import "context"

// Response é o mínimo que o gateway precisa de uma resposta HTTP.
type Response struct {
	Status int
	Body   []byte
}

// Transport executa um GET e devolve status + corpo, ou erro de transporte.
// Status não-2xx NÃO é erro para o transporte; quem classifica é a aplicação.
type Transport interface {
	Get(ctx context.Context, url string, opts Options) (Response, error)
}

// TransportFunc adapta uma função para Transport.
type TransportFunc func(ctx context.Context, url string, opts Options) (Response, error)

func (f TransportFunc) Get(ctx context.Context, url string, opts Options) (Response, error) {
	return f(ctx, url, opts)
}
