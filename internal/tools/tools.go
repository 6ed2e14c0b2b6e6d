// Package tools defines the tool-runtime collaborator contract consumed by
// the provider clients, plus the approval gate invoked before any tool runs.
// The real runtime (MCP servers, process spawning) lives outside this module;
// builtin.go provides a small in-process runtime for the CLI and tests.
package tools

import (
	"context"
	"fmt"
)

// Definition declaratively exposes a callable function to the model.
// InputSchema is a JSON-Schema-like object; provider adapters reshape it to
// each backend's dialect.
type Definition struct {
	Server      string         `json:"server,omitempty"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// Runtime executes tools on behalf of the model. Call may fail; the tool
// loop converts failures into tool-result payloads and never aborts on them.
type Runtime interface {
	All() []Definition
	Call(ctx context.Context, name string, args map[string]any) (string, error)
}

// ApprovalFunc is the host-supplied gate asked before each tool execution.
// A nil gate means default-approve.
type ApprovalFunc func(name string, args map[string]any) bool

// ErrUnknownTool is returned by runtimes when the requested tool is not registered.
type ErrUnknownTool struct {
	Name string
}

func (e *ErrUnknownTool) Error() string {
	return fmt.Sprintf("tool %q not found", e.Name)
}
