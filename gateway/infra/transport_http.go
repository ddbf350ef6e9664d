package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"deal-gateway/gateway/domain"
)

// DefaultMaxBodyBytes é o maior corpo aceito do upstream.
const DefaultMaxBodyBytes = 8 << 20

// ErrBodyTooLarge indica resposta acima do limite; o corpo é descartado, nunca truncado.
var ErrBodyTooLarge = errors.New("upstream body too large")

// HTTPTransport faz GET com Accept: application/json usando go-retryablehttp.
//
// Por padrão RetryMax=0: o gateway não faz retries por conta própria, quem decide
// é o chamador. O status é repassado intacto (PassthroughErrorHandler) para que a
// aplicação classifique não-2xx.
type HTTPTransport struct {
	client  *retryablehttp.Client
	maxBody int64
}

type HTTPOption func(*HTTPTransport)

// WithMaxRetries habilita retries em erro de conexão e 5xx.
func WithMaxRetries(n int) HTTPOption {
	return func(t *HTTPTransport) { t.client.RetryMax = n }
}

func WithHTTPTransport(rt http.RoundTripper) HTTPOption {
	return func(t *HTTPTransport) { t.client.HTTPClient.Transport = rt }
}

func WithHTTPLogger(l zerolog.Logger) HTTPOption {
	return func(t *HTTPTransport) {
		t.client.Logger = retryablehttp.LeveledLogger(leveledZerolog{l: l})
	}
}

// WithMaxBodyBytes troca o limite do corpo (n <= 0 mantém DefaultMaxBodyBytes).
func WithMaxBodyBytes(n int64) HTTPOption {
	return func(t *HTTPTransport) {
		if n > 0 {
			t.maxBody = n
		}
	}
}

func NewHTTPTransport(opts ...HTTPOption) *HTTPTransport {
	c := retryablehttp.NewClient()
	c.HTTPClient.Transport = cleanhttp.DefaultPooledTransport()
	c.RetryMax = 0
	c.RetryWaitMin = 200 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.Logger = retryablehttp.LeveledLogger(leveledZerolog{l: zerolog.Nop()})
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.CheckRetry = statusPreservingPolicy

	t := &HTTPTransport{client: c, maxBody: DefaultMaxBodyBytes}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Get implementa domain.Transport.
func (t *HTTPTransport) Get(ctx context.Context, rawURL string, opts domain.Options) (domain.Response, error) {
	target, err := withQuery(rawURL, opts["query"])
	if err != nil {
		return domain.Response{}, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return domain.Response{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return domain.Response{}, err
	}
	defer resp.Body.Close()

	// lê um byte além do limite para distinguir "exatamente no limite" de "maior"
	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBody+1))
	if err != nil {
		return domain.Response{}, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > t.maxBody {
		return domain.Response{}, fmt.Errorf("%w: more than %d bytes from %s", ErrBodyTooLarge, t.maxBody, req.URL.Redacted())
	}
	return domain.Response{Status: resp.StatusCode, Body: body}, nil
}

// statusPreservingPolicy decide retries como a política padrão, mas não devolve erro
// para status 5xx: assim o PassthroughErrorHandler entrega a resposta com o status.
func statusPreservingPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	retry, _ := retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	return retry, nil
}

// withQuery mescla options["query"] na query string da URL.
func withQuery(rawURL string, q any) (string, error) {
	if q == nil {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	vals := u.Query()
	switch m := q.(type) {
	case url.Values:
		for k, vs := range m {
			for _, v := range vs {
				vals.Add(k, v)
			}
		}
	case map[string][]string:
		for k, vs := range m {
			for _, v := range vs {
				vals.Add(k, v)
			}
		}
	case map[string]string:
		for k, v := range m {
			vals.Add(k, v)
		}
	case map[string]any:
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch v := m[k].(type) {
			case []string:
				for _, s := range v {
					vals.Add(k, s)
				}
			case []any:
				for _, s := range v {
					vals.Add(k, fmt.Sprint(s))
				}
			case nil:
			default:
				vals.Add(k, fmt.Sprint(v))
			}
		}
	default:
		return "", fmt.Errorf("unsupported query option type %T", q)
	}
	u.RawQuery = vals.Encode()
	return u.String(), nil
}

// leveledZerolog adapta zerolog para retryablehttp.LeveledLogger.
// ERROR vira WARN, porque o chamador é quem reporta a falha final.
type leveledZerolog struct {
	l zerolog.Logger
}

func (z leveledZerolog) Error(msg string, kv ...any) { z.l.Warn().Fields(kv).Msg(msg) }
func (z leveledZerolog) Warn(msg string, kv ...any)  { z.l.Warn().Fields(kv).Msg(msg) }
func (z leveledZerolog) Info(msg string, kv ...any)  { z.l.Info().Fields(kv).Msg(msg) }
func (z leveledZerolog) Debug(msg string, kv ...any) { z.l.Debug().Fields(kv).Msg(msg) }
