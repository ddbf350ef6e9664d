package application

import (
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/PuerkitoBio/purell"

	"deal-gateway/gateway/domain"
)

// só a origem passa pelo purell: o escape dele decodifica o path (%2F vira /) e
// ordena valores repetidos da query, e as duas coisas mudam o recurso pedido.
const originFlags = purell.FlagLowercaseScheme | purell.FlagLowercaseHost | purell.FlagRemoveDefaultPort

// CanonicalKey combina URL e opções numa chave determinística.
//
// Da URL normaliza-se só o que não muda o recurso: esquema e host minúsculos, porta
// padrão removida, fragmento descartado e pares da query ordenados pela chave (valores
// repetidos mantêm a ordem original). O path segue escapado como veio. As opções são
// serializadas com chaves ordenadas em todos os níveis, então {a:1,b:2} e {b:2,a:1}
// geram a mesma chave. O par vai num array JSON, o que impede colisão entre um pedaço
// da URL e um pedaço das opções. Opções nil e vazias são equivalentes.
func CanonicalKey(rawURL string, opts domain.Options) (domain.Key, error) {
	u, err := canonicalURL(rawURL)
	if err != nil {
		return "", fmt.Errorf("canonical key: url %q: %w", rawURL, err)
	}
	if opts == nil {
		opts = domain.Options{}
	}
	// encoding/json ordena chaves de map em qualquer profundidade.
	b, err := json.Marshal([]any{u, opts})
	if err != nil {
		return "", fmt.Errorf("canonical key: options: %w", err)
	}
	return domain.Key(b), nil
}

func canonicalURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Opaque != "" {
		u.Fragment, u.RawFragment = "", ""
		return u.String(), nil
	}

	var b strings.Builder
	if u.Scheme != "" || u.Host != "" {
		origin, err := purell.NormalizeURLString((&url.URL{Scheme: u.Scheme, User: u.User, Host: u.Host}).String(), originFlags)
		if err != nil {
			return "", err
		}
		b.WriteString(origin)
	}
	b.WriteString(u.EscapedPath())
	if q := sortQueryByKey(u.RawQuery); q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}
	return b.String(), nil
}

// sortQueryByKey ordena os pares crus pela chave, sem decodificar nada.
// A ordenação é estável: a=2&a=1 continua diferente de a=1&a=2.
func sortQueryByKey(raw string) string {
	if raw == "" {
		return ""
	}
	pairs := slices.DeleteFunc(strings.Split(raw, "&"), func(p string) bool { return p == "" })
	slices.SortStableFunc(pairs, func(a, b string) int {
		return strings.Compare(queryKey(a), queryKey(b))
	})
	return strings.Join(pairs, "&")
}

func queryKey(pair string) string {
	k, _, _ := strings.Cut(pair, "=")
	return k
}
