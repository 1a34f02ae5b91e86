package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{}, zap.NewNop())
	assert.Error(t, err)
}

func TestHistoryUsesGeminiRoles(t *testing.T) {
	req := &models.GenerationRequest{History: []models.ChatTurn{
		{Role: models.RoleUser, Content: "what is go"},
		{Role: models.RoleAssistant, Content: "a language"},
	}}
	got := history(req)
	require.Len(t, got, 2)
	assert.Equal(t, "user", got[0].Role)
	assert.Equal(t, "model", got[1].Role)
	assert.Equal(t, genai.Text("a language"), got[1].Parts[0])
}

func TestResponseText(t *testing.T) {
	assert.Empty(t, responseText(nil))
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text("Hello "), genai.Text("there ")}},
	}}}
	assert.Equal(t, "Hello there", responseText(resp))
}
