package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/stratdesk/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL + "/"}, nil), server
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestLogin_PostsFormAndAdoptsToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/token", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "alice", r.PostForm.Get("username"))
		assert.Equal(t, "s3cret", r.PostForm.Get("password"))

		writeJSON(w, http.StatusOK, map[string]string{
			"access_token": "tok-123",
			"token_type":   "bearer",
		})
	})

	token, err := client.Login(context.Background(), core.Credentials{Username: "alice", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token.AccessToken)
	assert.Equal(t, "bearer", token.TokenType)
	assert.Equal(t, "tok-123", client.Token())
}

func TestLogin_RejectedCredentials(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect username or password"})
	})

	_, err := client.Login(context.Background(), core.Credentials{Username: "alice", Password: "nope"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Incorrect username or password", apiErr.Message)
	assert.True(t, apiErr.IsUnauthorized())
	assert.Empty(t, client.Token(), "failed login must not install a token")
}

func TestLogin_MissingAccessToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"token_type": "bearer"})
	})

	_, err := client.Login(context.Background(), core.Credentials{Username: "a", Password: "b"})
	assert.Error(t, err)
}

func TestRequests_PropagateBearerToken(t *testing.T) {
	var gotAuth, gotRequestID string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		writeJSON(w, http.StatusOK, []core.Strategy{})
	})

	client.SetToken("abc")
	_, err := client.ListStrategies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", gotAuth)
	assert.Len(t, gotRequestID, 36)

	client.SetToken("")
	_, err = client.ListStrategies(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestListStrategies(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/strategies", r.URL.Path)
		writeJSON(w, http.StatusOK, []core.Strategy{
			{ID: 1, Name: "sma", Code: "x", Version: 1, CreatedAt: created},
			{ID: 2, Name: "rsi", Code: "y", Version: 3, CreatedAt: created},
		})
	})

	strategies, err := client.ListStrategies(context.Background())
	require.NoError(t, err)
	require.Len(t, strategies, 2)
	assert.Equal(t, "rsi", strategies[1].Name)
	assert.Equal(t, 3, strategies[1].Version)
	assert.True(t, strategies[0].CreatedAt.Equal(created))
}

func TestListStrategies_NullBodyIsEmptyList(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("null"))
	})

	strategies, err := client.ListStrategies(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, strategies)
	assert.Empty(t, strategies)
}

func TestGetStrategy(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/strategies/7", r.URL.Path)
		writeJSON(w, http.StatusOK, core.Strategy{ID: 7, Name: "breakout"})
	})

	s, err := client.GetStrategy(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, s.ID)
	assert.Equal(t, "breakout", s.Name)
}

func TestGetStrategy_NotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Strategy not found"})
	})

	_, err := client.GetStrategy(context.Background(), 99)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsNotFound())
	assert.Equal(t, "Strategy not found", apiErr.Message)
}

func TestCreateStrategy(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/strategies", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in core.StrategyInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "momentum", in.Name)
		assert.Equal(t, "def signal(): return 1", in.Code)

		writeJSON(w, http.StatusCreated, core.Strategy{ID: 10, Name: in.Name, Code: in.Code, Version: 1})
	})

	s, err := client.CreateStrategy(context.Background(), core.StrategyInput{
		Name: "momentum",
		Code: "def signal(): return 1",
	})
	require.NoError(t, err)
	assert.Equal(t, 10, s.ID)
	assert.Equal(t, 1, s.Version)
}

func TestUpdateStrategy(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/strategies/10", r.URL.Path)
		var in core.StrategyInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		writeJSON(w, http.StatusOK, core.Strategy{ID: 10, Name: in.Name, Version: 2})
	})

	s, err := client.UpdateStrategy(context.Background(), 10, core.StrategyInput{Name: "momentum v2", Code: "x"})
	require.NoError(t, err)
	assert.Equal(t, "momentum v2", s.Name)
	assert.Equal(t, 2, s.Version)
}

func TestDeleteStrategy_NoContent(t *testing.T) {
	called := false
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/strategies/10", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.DeleteStrategy(context.Background(), 10))
	assert.True(t, called)
}

func TestUploadData_Multipart(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload-data", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)

		assert.Equal(t, "prices.csv", header.Filename)
		assert.Equal(t, "date,close\n2024-01-01,100\n", string(data))

		writeJSON(w, http.StatusOK, core.Dataset{
			Filename: header.Filename,
			Columns:  []string{"date", "close"},
			Rows:     1,
		})
	})

	ds, err := client.UploadData(context.Background(), "/tmp/data/prices.csv",
		strings.NewReader("date,close\n2024-01-01,100\n"))
	require.NoError(t, err)
	assert.Equal(t, "prices.csv", ds.Filename)
	assert.Equal(t, []string{"date", "close"}, ds.Columns)
	assert.Equal(t, 1, ds.Rows)
}

func TestUploadData_ServerRejects(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Only CSV files are supported"})
	})

	_, err := client.UploadData(context.Background(), "prices.xlsx", strings.NewReader("binary"))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Only CSV files are supported", apiErr.Message)
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestUploadData_ReaderError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		writeJSON(w, http.StatusOK, core.Dataset{Filename: "prices.csv"})
	})
	diskErr := errors.New("input/output error")

	ds, err := client.UploadData(context.Background(), "prices.csv",
		io.MultiReader(strings.NewReader("date,close\n"), failingReader{err: diskErr}))

	require.Error(t, err)
	assert.Nil(t, ds)
	assert.ErrorIs(t, err, diskErr)
	assert.Contains(t, err.Error(), "reading prices.csv")
	var netErr *NetworkError
	assert.False(t, errors.As(err, &netErr), "local read failures are not network errors: %v", err)
}

func TestRunBacktest(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/run-backtest", r.URL.Path)

		var req core.BacktestRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 4, req.StrategyID)
		assert.Equal(t, "prices.csv", req.Filename)

		writeJSON(w, http.StatusOK, map[string]any{
			"profit_loss":  1250.5,
			"total_return": 12.5,
			"total_trades": 18,
		})
	})

	result, err := client.RunBacktest(context.Background(), core.BacktestRequest{StrategyID: 4, Filename: "prices.csv"})
	require.NoError(t, err)
	assert.Equal(t, 4, result.StrategyID)
	assert.Equal(t, 1250.5, result.ProfitLoss)
	assert.Equal(t, 18, result.TotalTrades)
	assert.True(t, result.IsProfitable())
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantCode    string
	}{
		{
			name:        "detail string",
			status:      http.StatusBadRequest,
			body:        `{"detail": "Name already taken"}`,
			wantMessage: "Name already taken",
		},
		{
			name:        "detail validation list",
			status:      http.StatusUnprocessableEntity,
			body:        `{"detail": [{"loc": ["body", "name"], "msg": "field required"}, {"loc": ["body", "code"], "msg": "field required"}]}`,
			wantMessage: "name: field required; code: field required",
		},
		{
			name:        "message and code",
			status:      http.StatusConflict,
			body:        `{"message": "version conflict", "code": "VERSION_CONFLICT"}`,
			wantMessage: "version conflict",
			wantCode:    "VERSION_CONFLICT",
		},
		{
			name:        "error envelope",
			status:      http.StatusForbidden,
			body:        `{"error": {"code": "FORBIDDEN", "message": "not your strategy"}}`,
			wantMessage: "not your strategy",
			wantCode:    "FORBIDDEN",
		},
		{
			name:        "empty body falls back to status text",
			status:      http.StatusInternalServerError,
			body:        ``,
			wantMessage: "Internal Server Error",
		},
		{
			name:        "non-json body falls back to status text",
			status:      http.StatusBadGateway,
			body:        `<html>bad gateway</html>`,
			wantMessage: "Bad Gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.ListStrategies(context.Background())

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "expected APIError, got %T", err)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	assert.Equal(t, "api error 404: missing", (&APIError{StatusCode: 404, Message: "missing"}).Error())
	assert.Equal(t, "api error 409 (DUP): taken", (&APIError{StatusCode: 409, Message: "taken", Code: "DUP"}).Error())
}

func TestNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := New(Config{BaseURL: url}, nil)
	_, err := client.ListStrategies(context.Background())
	require.Error(t, err)

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr), "expected NetworkError, got %T", err)
	assert.True(t, strings.HasPrefix(err.Error(), "network error: "))

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestContextCanceled(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []core.Strategy{})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ListStrategies(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	var netErr *NetworkError
	assert.True(t, errors.As(err, &netErr))
}

func TestDecodeError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "not-a-number"}`))
	})

	_, err := client.GetStrategy(context.Background(), 1)
	require.Error(t, err)

	var apiErr *APIError
	var netErr *NetworkError
	assert.False(t, errors.As(err, &apiErr))
	assert.False(t, errors.As(err, &netErr))
	assert.Contains(t, err.Error(), "decoding GET /strategies/1 response")
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New(Config{BaseURL: "http://localhost:8000/"}, nil)
	assert.Equal(t, "http://localhost:8000", c.BaseURL())
}
