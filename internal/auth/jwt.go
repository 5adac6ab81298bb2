package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// ErrAuthDisabled is returned when a token is requested without a secret.
var ErrAuthDisabled = errors.New("authentication is disabled: no JWT secret configured")

// Claims defines the JWT claims structure.
type Claims struct {
	jwt.RegisteredClaims
}

// ClaimsKey is the context key for API claims.
type contextKey string

const ClaimsKey = contextKey("claims")

// Authenticator issues and checks HS256 API tokens.
type Authenticator struct {
	key []byte
}

// New creates an Authenticator. An empty secret disables authentication.
func New(secret string) *Authenticator {
	return &Authenticator{key: []byte(secret)}
}

// Enabled reports whether requests must carry a token.
func (a *Authenticator) Enabled() bool {
	return len(a.key) > 0
}

// GenerateJWT creates a new token for subject that expires after ttl.
func (a *Authenticator) GenerateJWT(subject string, ttl time.Duration) (string, error) {
	if !a.Enabled() {
		return "", ErrAuthDisabled
	}
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.key)
}

// ValidateJWT parses and validates a JWT string.
func (a *Authenticator) ValidateJWT(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return a.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// Middleware protects routes with a bearer token or a "token" cookie. It is a
// pass-through when authentication is disabled.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !a.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tokenStr string

			// 1. Try to get the token from the Authorization header
			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				tokenStr = strings.TrimPrefix(authHeader, "Bearer ")
				if tokenStr == authHeader {
					tokenStr = ""
				}
			}

			// 2. If not in header, fall back to the cookie
			if tokenStr == "" {
				if cookie, err := r.Cookie("token"); err == nil {
					tokenStr = cookie.Value
				}
			}

			if tokenStr == "" {
				http.Error(w, "Missing auth token", http.StatusUnauthorized)
				return
			}

			claims, err := a.ValidateJWT(tokenStr)
			if err != nil {
				http.Error(w, "Invalid auth token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			log.Debug().Str("subject", claims.Subject).Msg("Authenticated request")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
