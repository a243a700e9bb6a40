//go:build integration
// +build integration

package test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	authkit "github.com/fynlo/authkit"
	"github.com/fynlo/authkit/store"
)

func newRedisStore(t *testing.T) *store.RedisStore {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return store.NewRedisStore(rdb, "akc")
}

func mintToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	}).SignedString([]byte("integration-secret"))
	if err != nil {
		t.Fatalf("signing fixture token: %v", err)
	}
	return tok
}

// newBackend serves a healthy account: login succeeds outright and /users/me
// answers with a fixed profile.
func newBackend(t *testing.T) *httptest.Server {
	t.Helper()

	tok := mintToken(t, time.Now().Add(time.Hour))
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/mobile-login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"token":   tok,
			"user": map[string]any{
				"id":    "u1",
				"email": "a@b.com",
				"role": map[string]any{
					"name":        "manager",
					"permissions": []string{"expenses.read"},
				},
			},
		})
	})
	mux.HandleFunc("GET /users/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "u1", "email": "a@b.com"})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, baseURL string, secure store.Store) *authkit.Client {
	t.Helper()

	c, err := authkit.New().
		WithBaseURL(baseURL).
		WithCredentialStore(secure).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
