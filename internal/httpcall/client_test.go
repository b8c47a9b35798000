package httpcall

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CallPostsJSON(t *testing.T) {
	var gotBody map[string]any
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotHeader = r.Header.Get("X-Api-Key")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"items":[1,2]}`))
	}))
	defer srv.Close()

	out, err := New().Call(context.Background(), "post", srv.URL,
		map[string]string{"X-Api-Key": "secret"},
		map[string]any{"question": "hi"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true, "items": []any{1.0, 2.0}}, out)
	assert.Equal(t, map[string]any{"question": "hi"}, gotBody)
	assert.Equal(t, "secret", gotHeader)
}

func TestClient_CallGetUsesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "hi there", r.URL.Query().Get("question"))
		_, _ = w.Write([]byte("plain text"))
	}))
	defer srv.Close()

	out, err := New().Call(context.Background(), http.MethodGet, srv.URL, nil, map[string]any{"question": "hi there"})
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)
}

func TestClient_CallStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New().Call(context.Background(), http.MethodPost, srv.URL, nil, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Equal(t, "nope", se.Body)
}

func TestClient_CallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	_, err := New(WithTimeout(20*time.Millisecond)).Call(context.Background(), http.MethodPost, srv.URL, nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_CallUnreachable(t *testing.T) {
	_, err := New(WithTimeout(time.Second)).Call(context.Background(), http.MethodPost, "http://127.0.0.1:1/none", nil, nil)
	assert.Error(t, err)
}

func TestClient_RateLimitWaitRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(WithRateLimit(1))
	_, err := c.Call(context.Background(), http.MethodPost, srv.URL, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Call(ctx, http.MethodPost, srv.URL, nil, nil)
	assert.Error(t, err)
}
