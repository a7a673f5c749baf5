package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/newthinker/stratdesk/internal/apiclient"
	"github.com/newthinker/stratdesk/internal/core"
	"github.com/newthinker/stratdesk/internal/storage/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: sub}
	if !exp.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return tok
}

// backend accepts alice/secret and answers /strategies only with the issued token.
func backend(t *testing.T, token string, logins *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token":
			logins.Add(1)
			_ = r.ParseForm()
			if r.PostForm.Get("username") != "alice" || r.PostForm.Get("password") != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Incorrect username or password"})
				return
			}
			_ = json.NewEncoder(w).Encode(core.Token{AccessToken: token, TokenType: "bearer"})
		case "/strategies":
			if r.Header.Get("Authorization") != "Bearer "+token {
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Not authenticated"})
				return
			}
			_, _ = w.Write([]byte("[]"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newStore(t *testing.T) *local.Store {
	t.Helper()
	store, err := local.New(filepath.Join(t.TempDir(), "storage.json"), nil)
	require.NoError(t, err)
	return store
}

func TestSession_LoginPersistsAndInstallsToken(t *testing.T) {
	token := signedToken(t, "alice", time.Now().Add(time.Hour))
	var logins atomic.Int32
	srv := backend(t, token, &logins)
	client := apiclient.New(apiclient.Config{BaseURL: srv.URL}, nil)
	store := newStore(t)

	s := NewSession(client, store, nil, nil)
	assert.False(t, s.IsAuthenticated())

	require.NoError(t, s.Login(context.Background(), "alice", "secret"))

	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, token, s.Token())
	assert.Equal(t, token, client.Token())
	assert.NoError(t, s.Err())

	var stored string
	ok, err := store.Get(TokenKey, &stored)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, token, stored)

	_, err = client.ListStrategies(context.Background())
	assert.NoError(t, err)
}

func TestSession_LoginRejected(t *testing.T) {
	var logins atomic.Int32
	srv := backend(t, "tok", &logins)
	client := apiclient.New(apiclient.Config{BaseURL: srv.URL}, nil)
	store := newStore(t)
	s := NewSession(client, store, nil, nil)

	err := s.Login(context.Background(), "alice", "wrong")

	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Incorrect username or password", apiErr.Message)
	assert.Equal(t, err, s.Err())
	assert.False(t, s.IsAuthenticated())

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestSession_LoginValidatesBeforeCalling(t *testing.T) {
	var logins atomic.Int32
	srv := backend(t, "tok", &logins)
	client := apiclient.New(apiclient.Config{BaseURL: srv.URL}, nil)
	s := NewSession(client, newStore(t), nil, nil)

	err := s.Login(context.Background(), "", "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrValidation))
	assert.Contains(t, err.Error(), "Password is required")
	assert.Contains(t, err.Error(), "Username is required")
	assert.Equal(t, int32(0), logins.Load())
}

func TestSession_RestoresStoredToken(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Set(TokenKey, "opaque-token"))
	client := apiclient.New(apiclient.Config{BaseURL: "http://localhost"}, nil)

	s := NewSession(client, store, nil, nil)

	assert.Equal(t, "opaque-token", s.Token())
	assert.Equal(t, "opaque-token", client.Token())
	assert.True(t, s.IsAuthenticated(), "opaque tokens count as authenticated")
}

func TestSession_Logout(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Set(TokenKey, "opaque-token"))
	client := apiclient.New(apiclient.Config{BaseURL: "http://localhost"}, nil)
	s := NewSession(client, store, nil, nil)

	require.NoError(t, s.Logout())

	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, client.Token())
	var stored string
	ok, err := store.Get(TokenKey, &stored)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSession_ExpiredToken(t *testing.T) {
	store := newStore(t)
	token := signedToken(t, "alice", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Set(TokenKey, token))
	s := NewSession(apiclient.New(apiclient.Config{BaseURL: "http://localhost"}, nil), store, nil, nil)

	s.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC) }
	assert.False(t, s.IsAuthenticated())
	claims, err := s.Claims()
	assert.True(t, errors.Is(err, core.ErrTokenExpired))
	assert.Equal(t, "alice", claims.Subject)

	s.now = func() time.Time { return time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC) }
	assert.True(t, s.IsAuthenticated())
}

func TestSession_Claims(t *testing.T) {
	store := newStore(t)
	client := apiclient.New(apiclient.Config{BaseURL: "http://localhost"}, nil)
	s := NewSession(client, store, nil, nil)

	_, err := s.Claims()
	assert.True(t, errors.Is(err, core.ErrNotAuthenticated))

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, store.Set(TokenKey, signedToken(t, "bob", exp)))
	s.Sync()

	claims, err := s.Claims()
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Subject)
	assert.True(t, exp.Equal(claims.ExpiresAt))

	require.NoError(t, store.Set(TokenKey, "opaque"))
	s.Sync()
	_, err = s.Claims()
	assert.Error(t, err)
}

func TestSession_SyncPicksUpOtherWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	mine, err := local.New(path, nil)
	require.NoError(t, err)
	theirs, err := local.New(path, nil)
	require.NoError(t, err)

	client := apiclient.New(apiclient.Config{BaseURL: "http://localhost"}, nil)
	s := NewSession(client, mine, nil, nil)
	require.False(t, s.IsAuthenticated())

	require.NoError(t, theirs.Set(TokenKey, "from-elsewhere"))
	s.Sync()
	assert.Equal(t, "from-elsewhere", client.Token())

	require.NoError(t, theirs.Remove(TokenKey))
	s.Sync()
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, client.Token())
}
