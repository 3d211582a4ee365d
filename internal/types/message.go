package types

import "time"

type MessageRole string

const (
	RoleUser   MessageRole = "user"
	RoleAgent  MessageRole = "agent"
	RoleSystem MessageRole = "system"
)

// Message is one entry of a dialogue transcript. ID and Timestamp are fixed
// once the message exists.
type Message struct {
	ID             string         `json:"id"`
	Role           MessageRole    `json:"role"`
	AgentID        string         `json:"agentId,omitempty"`
	Content        string         `json:"content"`
	Timestamp      time.Time      `json:"timestamp"`
	Stage          StageTag       `json:"stage,omitempty"`
	SequenceNumber int            `json:"sequenceNumber,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

func CloneMessages(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	out := make([]Message, len(messages))
	copy(out, messages)
	return out
}
