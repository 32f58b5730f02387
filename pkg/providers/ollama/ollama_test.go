package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Eldoprano/offline-browser-translate/pkg/translation"
)

func newTestProvider(endpoint string) *Provider {
	cfg := DefaultConfig()
	cfg.APIEndpoint = endpoint
	cfg.Model = "test-model"
	cfg.RetryConfig.MaxRetries = 0
	return New(cfg)
}

func TestTranslateBatch(t *testing.T) {
	var gotReq GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		resp := GenerateResponse{
			Model:    gotReq.Model,
			Response: `[{"id":0,"text":"Hola"},{"id":1,"text":"Mundo"}]`,
			Done:     true,
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	res, err := p.Translate(context.Background(), []translation.Item{
		{ID: 0, Text: "Hello"},
		{ID: 1, Text: "World"},
	}, "es", "en")
	require.NoError(t, err)

	require.Len(t, res.Translations, 2)
	assert.Equal(t, "Hola", res.Translations[0].Text)

	// 请求携带模型名、系统指令与编号条目
	assert.Equal(t, "test-model", gotReq.Model)
	assert.NotEmpty(t, gotReq.System)
	assert.Contains(t, gotReq.Prompt, `"id":1`)
	assert.False(t, gotReq.Stream)
}

func TestTranslateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(APIError{ErrorMsg: "model not found"})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	_, err := p.Translate(context.Background(), []translation.Item{{ID: 0, Text: "Hi"}}, "es", "en")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestTranslateRetriesServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(GenerateResponse{Response: `[{"id":0,"text":"Hola"}]`, Done: true})
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.APIEndpoint = srv.URL
	cfg.RetryConfig.MaxRetries = 2
	cfg.RetryConfig.InitialDelay = 0
	p := New(cfg)

	res, err := p.Translate(context.Background(), []translation.Item{{ID: 0, Text: "Hi"}}, "es", "en")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	require.Len(t, res.Translations, 1)
}

func TestTranslateUnparseableResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(GenerateResponse{Response: "Sorry, I can't do that.", Done: true})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	_, err := p.Translate(context.Background(), []translation.Item{{ID: 0, Text: "Hi"}}, "es", "en")
	assert.Error(t, err)
}
