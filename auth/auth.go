// Package auth reconhece usuários logados pelo token do provedor de identidade.
// Quem não tem token válido é tratado como visitante (sujeito à cota diária).
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoSecret = errors.New("auth: secret not configured")

type Claims struct {
	UserID string
}

type jwtClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Verifier valida tokens HS256 assinados com o segredo compartilhado.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// Sign emite um token para userID (usado por ferramentas e testes).
func (v *Verifier) Sign(userID string, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrNoSecret
	}
	now := v.now()
	claims := jwtClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func (v *Verifier) Parse(tokenStr string) (*Claims, error) {
	if len(v.secret) == 0 {
		return nil, ErrNoSecret
	}
	token, err := jwt.ParseWithClaims(tokenStr, &jwtClaims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(v.now))
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if c.UserID == "" {
		c.UserID = c.Subject
	}
	return &Claims{UserID: c.UserID}, nil
}

// Authenticated informa se a requisição traz um bearer token válido.
// Nil-safe: um Verifier nil trata todo mundo como visitante.
func (v *Verifier) Authenticated(r *http.Request) bool {
	if v == nil {
		return false
	}
	if c := ClaimsFromContext(r.Context()); c != nil {
		return true
	}
	_, err := v.fromRequest(r)
	return err == nil
}

func (v *Verifier) fromRequest(r *http.Request) (*Claims, error) {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return nil, errors.New("missing token")
	}
	scheme, token, ok := strings.Cut(authz, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return nil, errors.New("invalid auth header")
	}
	return v.Parse(strings.TrimSpace(token))
}

type ctxKey string

const claimsKey ctxKey = "claims"

func ClaimsFromContext(ctx context.Context) *Claims {
	val, ok := ctx.Value(claimsKey).(*Claims)
	if !ok {
		return nil
	}
	return val
}

// Identify anexa as claims ao contexto quando o token é válido. Nunca rejeita:
// token ausente ou inválido só significa visitante.
func (v *Verifier) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v != nil {
			if claims, err := v.fromRequest(r); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), claimsKey, claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}
