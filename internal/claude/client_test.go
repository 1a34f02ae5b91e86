package claude

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGenerateSendsSystemAndHistory(t *testing.T) {
	var body struct {
		Model    string `json:"model"`
		System   []struct{ Text string } `json:"system"`
		Messages []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
			"content": [{"type": "text", "text": " Goroutines are cheap threads. "}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 6}
		}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "test-key", ModelName: "claude-test", BaseURL: srv.URL, MaxRetries: 1}, zap.NewNop())
	require.NoError(t, err)

	resp, err := c.Generate(context.Background(), &models.GenerationRequest{
		System: "be brief",
		History: []models.ChatTurn{
			{Role: models.RoleUser, Content: "hi"},
			{Role: models.RoleAssistant, Content: "hello"},
		},
		Prompt: "what is a goroutine?",
	})
	require.NoError(t, err)
	assert.Equal(t, "Goroutines are cheap threads.", resp.Content)
	assert.Equal(t, "anthropic", resp.Provider)

	assert.Equal(t, "claude-test", body.Model)
	require.Len(t, body.System, 1)
	assert.Equal(t, "be brief", body.System[0].Text)
	require.Len(t, body.Messages, 3)
	assert.Equal(t, "user", body.Messages[0].Role)
	assert.Equal(t, "assistant", body.Messages[1].Role)
	assert.Equal(t, "user", body.Messages[2].Role)
}
