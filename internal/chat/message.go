// Package chat defines the canonical conversation model shared by all
// provider clients. Messages in this form are provider-independent; each
// provider adapter converts to and from its own wire schema on every request.
package chat

import (
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ToolCall is a single function invocation requested by the model.
// Arguments are always a structured map in canonical form; providers that
// carry arguments as JSON strings on the wire serialize at their own edge.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ExecutionRecord captures one executed (or denied) tool call. Records are
// created by the tool loop and never mutated afterward.
type ExecutionRecord struct {
	Server     string         `json:"server"`
	ToolName   string         `json:"tool_name"`
	Input      map[string]any `json:"input,omitempty"`
	Output     string         `json:"output"`
	Duration   time.Duration  `json:"duration"`
	IsError    bool           `json:"is_error"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// Message is one canonical conversation turn. Content may be empty only when
// ToolCalls or Records is non-empty.
type Message struct {
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Provider  string            `json:"provider,omitempty"`
	ToolCalls []ToolCall        `json:"tool_calls,omitempty"`
	Records   []ExecutionRecord `json:"records,omitempty"`
}

// NewUserMessage builds a timestamped user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: time.Now()}
}

// NewSystemMessage builds a timestamped system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content, Timestamp: time.Now()}
}

// IsEmpty reports whether the message carries no content, tool calls, or
// execution records. Empty messages contribute nothing on the wire.
func (m Message) IsEmpty() bool {
	return m.Content == "" && len(m.ToolCalls) == 0 && len(m.Records) == 0
}

// HasToolArtifacts reports whether the message is part of a tool exchange:
// either an assistant message carrying tool calls or a tool-result message.
func (m Message) HasToolArtifacts() bool {
	return len(m.ToolCalls) > 0 || m.Role == RoleTool
}
