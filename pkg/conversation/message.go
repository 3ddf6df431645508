package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Metadata keys set on reasoning transcripts.
const (
	MetadataKeyPhase   = "phase"
	MetadataKeyStep    = "step"
	MetadataKeyVariant = "variant"
)

// Message is a single turn of a conversation.
type Message struct {
	ID   string    `json:"id" yaml:"id"`
	Time time.Time `json:"time" yaml:"time"`

	Role Role   `json:"role" yaml:"role"`
	Text string `json:"text" yaml:"text"`

	Metadata map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

type MessageOption func(*Message)

func WithMetadata(metadata map[string]interface{}) MessageOption {
	return func(message *Message) {
		message.Metadata = metadata
	}
}

func WithTime(time time.Time) MessageOption {
	return func(message *Message) {
		message.Time = time
	}
}

func WithID(id string) MessageOption {
	return func(message *Message) {
		message.ID = id
	}
}

func NewChatMessage(role Role, text string, options ...MessageOption) *Message {
	ret := &Message{
		ID:   uuid.NewString(),
		Time: time.Now(),
		Role: role,
		Text: text,
	}

	for _, option := range options {
		option(ret)
	}

	return ret
}

func (m *Message) String() string {
	return m.Text
}

// View renders the message the way it is shown in terminal transcripts.
func (m *Message) View() string {
	text := m.Text
	// keep fenced blocks on their own line so the output stays valid markdown
	if strings.HasPrefix(text, "```") {
		text = "\n" + text
	}
	return fmt.Sprintf("[%s]: %s", m.Role, strings.TrimRight(text, "\n"))
}

// Clone returns a copy of the message with its own metadata map.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	ret := *m
	if m.Metadata != nil {
		ret.Metadata = make(map[string]interface{}, len(m.Metadata))
		for k, v := range m.Metadata {
			ret.Metadata[k] = v
		}
	}
	return &ret
}

// Conversation is an ordered list of messages, oldest first.
type Conversation []*Message

func NewConversation(messages ...*Message) Conversation {
	return append(Conversation{}, messages...)
}

// Clone copies the conversation and every message in it.
func (messages Conversation) Clone() Conversation {
	ret := make(Conversation, 0, len(messages))
	for _, m := range messages {
		ret = append(ret, m.Clone())
	}
	return ret
}

// LastMessage returns the most recent message, or nil for an empty conversation.
func (messages Conversation) LastMessage() *Message {
	if len(messages) == 0 {
		return nil
	}
	return messages[len(messages)-1]
}

// ByRole returns the messages with the given role, in order.
func (messages Conversation) ByRole(role Role) Conversation {
	var ret Conversation
	for _, m := range messages {
		if m.Role == role {
			ret = append(ret, m)
		}
	}
	return ret
}

// GetSinglePrompt concatenates all the messages together, prefixed by their role.
func (messages Conversation) GetSinglePrompt() string {
	if len(messages) == 0 {
		return ""
	}

	if len(messages) == 1 {
		return messages[0].Text
	}

	prompt := ""
	for _, message := range messages {
		prompt += fmt.Sprintf("[%s]: %s\n", message.Role, message.Text)
	}

	return prompt
}
