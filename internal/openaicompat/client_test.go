package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGenerateRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		if calls.Add(1) == 1 {
			http.Error(w, `{"error":{"message":"busy"}}`, http.StatusServiceUnavailable)
			return
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"1","choices":[{"message":{"role":"assistant","content":" Use channels. "}}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{Name: "groq", APIKey: "k", BaseURL: srv.URL + "/", RetryDelay: time.Millisecond}, zap.NewNop())
	require.NoError(t, err)

	resp, err := c.Generate(context.Background(), &models.GenerationRequest{
		System:  "sys",
		History: []models.ChatTurn{{Role: models.RoleUser, Content: "hi"}, {Role: models.RoleAssistant, Content: "hey"}},
		Prompt:  "how do goroutines talk?",
	})
	require.NoError(t, err)
	assert.Equal(t, "Use channels.", resp.Content)
	assert.Equal(t, "groq", resp.Provider)
	assert.Equal(t, "llama-3.3-70b-versatile", resp.Model)
	assert.EqualValues(t, 2, calls.Load())

	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[3].Role)
	assert.Equal(t, "how do goroutines talk?", got.Messages[3].Content)
}

func TestGenerateGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewClient(Config{Name: "openrouter", APIKey: "k", BaseURL: srv.URL, MaxRetries: 3, RetryDelay: time.Millisecond}, zap.NewNop())
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), &models.GenerationRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.EqualValues(t, 3, calls.Load())
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{Name: "groq"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewClient(Config{Name: "custom", APIKey: "k"}, zap.NewNop())
	assert.Error(t, err, "unknown providers need a base url")

	c, err := NewClient(Config{Name: "openai", APIKey: "k"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", c.GetModelInfo()["model"])
}
