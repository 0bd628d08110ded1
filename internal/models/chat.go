package models

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a message written by the user.
	RoleUser Role = "user"
	// RoleAssistant represents a message produced by the assistant.
	RoleAssistant Role = "assistant"
)

// ChatMessage is a single entry in a conversation. Messages are immutable once
// appended to a history; the history is replayed to the backend as context on
// the next turn.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of a chat turn sent to the backend. ChatHistory
// holds the messages of previous turns only; the current user input travels in
// Message.
type ChatRequest struct {
	Message            string        `json:"message"`
	ChatHistory        []ChatMessage `json:"chat_history"`
	SelectedCompliance []string      `json:"selected_compliance"`
	SelectedInternal   []string      `json:"selected_internal"`
}
