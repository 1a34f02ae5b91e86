package models

import "strings"

// ChatTurn is one prior message handed to an external text generator.
type ChatTurn struct {
	Role    string // RoleUser or RoleAssistant
	Content string
}

// GenerationRequest is a provider-neutral chat completion request.
type GenerationRequest struct {
	System  string
	History []ChatTurn
	Prompt  string
}

// GenerationResponse is the text produced by an external generator.
type GenerationResponse struct {
	Content  string
	Provider string
	Model    string
}

// AlternatingHistory returns History reshaped for APIs that require strictly
// alternating turns starting with the user: leading assistant turns are dropped,
// empty turns skipped and consecutive turns of the same role joined.
func (r *GenerationRequest) AlternatingHistory() []ChatTurn {
	out := make([]ChatTurn, 0, len(r.History))
	for _, t := range r.History {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		role := RoleUser
		if t.Role == RoleAssistant {
			role = RoleAssistant
		}
		if len(out) == 0 && role == RoleAssistant {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content += "\n\n" + content
			continue
		}
		out = append(out, ChatTurn{Role: role, Content: content})
	}
	// the prompt is sent as the final user turn, so history must end on the assistant
	if n := len(out); n > 0 && out[n-1].Role == RoleUser {
		out = out[:n-1]
	}
	return out
}
