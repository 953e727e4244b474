package ai

import "context"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	// RoleModel is the endpoint's name for every non-user turn.
	RoleModel = "model"
)

// Message is a conversation turn as the application stores it.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn is a history entry in the endpoint vocabulary: RoleUser or RoleModel.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Provider is a single chat-completion endpoint. One call, no retries.
type Provider interface {
	Chat(ctx context.Context, history []Turn, message string) (string, error)
}

// ToHistory maps stored turns onto the endpoint vocabulary, preserving order.
func ToHistory(messages []Message) []Turn {
	out := make([]Turn, 0, len(messages))
	for _, m := range messages {
		role := RoleModel
		if m.Role == RoleUser {
			role = RoleUser
		}
		out = append(out, Turn{Role: role, Text: m.Content})
	}
	return out
}
