package retrieval

import "vaultsearch/internal/ai"

// Conversation is the caller-owned message history of one generative search
// session. It is never persisted; Answer appends the user turn and the
// produced assistant turn on success.
type Conversation struct {
	Messages []ai.Message
}

// Append adds one turn to the history.
func (c *Conversation) Append(role ai.Role, content string) {
	c.Messages = append(c.Messages, ai.Message{Role: role, Content: content})
}

// Len returns the number of turns in the history.
func (c *Conversation) Len() int {
	return len(c.Messages)
}
