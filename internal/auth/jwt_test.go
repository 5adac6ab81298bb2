package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := r.Context().Value(ClaimsKey).(*Claims)
		if claims != nil {
			w.Header().Set("X-Subject", claims.Subject)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestGenerateAndValidate(t *testing.T) {
	a := New("secret")
	token, err := a.GenerateJWT("cli", time.Hour)
	require.NoError(t, err)

	claims, err := a.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "cli", claims.Subject)

	_, err = New("other").ValidateJWT(token)
	assert.Error(t, err)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	a := New("secret")
	token, err := a.GenerateJWT("cli", -time.Minute)
	require.NoError(t, err)

	_, err = a.ValidateJWT(token)
	assert.Error(t, err)
}

func TestGenerateWithoutSecret(t *testing.T) {
	_, err := New("").GenerateJWT("cli", time.Hour)
	assert.ErrorIs(t, err, ErrAuthDisabled)
}

func TestMiddleware(t *testing.T) {
	a := New("secret")
	token, err := a.GenerateJWT("ui", time.Hour)
	require.NoError(t, err)
	h := a.Middleware()(okHandler())

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ui", rec.Header().Get("X-Subject"))
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: token})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("garbage", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestMiddlewareDisabled(t *testing.T) {
	rec := httptest.NewRecorder()
	New("").Middleware()(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
