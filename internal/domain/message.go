package domain

import "time"

// Message is an immutable entry in a session's conversation log.
type Message struct {
	MessageID   string      `json:"message_id"`
	SessionID   string      `json:"session_id"`
	SenderID    string      `json:"sender_id,omitempty"`
	SenderRole  SenderRole  `json:"sender_role"`
	Content     string      `json:"content"`
	MessageType MessageType `json:"message_type"`
	CreatedAt   time.Time   `json:"created_at"`
}
