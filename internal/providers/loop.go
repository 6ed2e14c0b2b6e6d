package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Davincible/chatkit-go/internal/chat"
	"github.com/Davincible/chatkit-go/internal/tools"
)

// maxTurns bounds the tool-calling loop. The turn after the bound is never
// issued; it surfaces ErrTurnLimit instead.
const maxTurns = 10

const deniedToolMessage = "User denied tool execution."

// SendOptions carries the optional collaborators for one SendPrompt call.
type SendOptions struct {
	// Runtime executes model-requested tool calls. When nil, no tool
	// declarations are attached to requests.
	Runtime tools.Runtime

	// Approve gates each tool execution. Nil means default-approve.
	Approve tools.ApprovalFunc

	// OnChunk receives live text deltas for the first turn only; tool
	// exchange turns are not shown incrementally.
	OnChunk ChunkFunc
}

// Result is the outcome of a completed SendPrompt call. ToolMessages holds
// the new canonical messages produced by the tool loop (assistant messages
// recording requested calls and tool messages recording results) for the
// caller to append to its history. It is nil when no tools ran.
type Result struct {
	Response     string
	ToolMessages []chat.Message
}

// Client is the canonical contract every provider implements.
type Client interface {
	Name() string
	SendPrompt(ctx context.Context, prompt string, history []chat.Message, opts SendOptions) (*Result, error)
}

// turnFunc issues one request/response exchange against the provider:
// encode history, perform the retried HTTP call, and accumulate the stream.
// The prompt is non-empty only on the first turn.
type turnFunc func(ctx context.Context, history []chat.Message, prompt string, onChunk ChunkFunc) (*streamResult, error)

// toolLoop drives the bounded multi-turn tool-calling loop shared by all
// three provider clients. It is a composed capability, not a base type: the
// clients own their transport and protocol state, the loop owns turn
// sequencing, approval, and tool execution.
type toolLoop struct {
	provider string
	logger   *slog.Logger
}

func (l *toolLoop) run(ctx context.Context, prompt string, history []chat.Message, opts SendOptions, doTurn turnFunc) (*Result, error) {
	if ctx.Err() != nil {
		return nil, normalizeError(l.provider, "send", ctx.Err())
	}

	working := make([]chat.Message, len(history))
	copy(working, history)

	var toolMessages []chat.Message
	pendingPrompt := prompt

	for turn := 0; turn < maxTurns; turn++ {
		if ctx.Err() != nil {
			return nil, normalizeError(l.provider, "send", ctx.Err())
		}

		var onChunk ChunkFunc
		if turn == 0 {
			onChunk = opts.OnChunk
		}

		result, err := doTurn(ctx, working, pendingPrompt, onChunk)
		if err != nil {
			return nil, normalizeError(l.provider, "send", err)
		}

		calls := result.toolCalls(l.logger)
		if len(calls) == 0 {
			return &Result{Response: result.Text, ToolMessages: toolMessages}, nil
		}

		// The pending prompt becomes regular history once the first
		// exchange produced tool calls.
		if pendingPrompt != "" {
			working = append(working, chat.NewUserMessage(pendingPrompt))
			pendingPrompt = ""
		}

		records := l.executeCalls(ctx, calls, opts)

		assistantMsg := chat.Message{
			Role:      chat.RoleAssistant,
			Content:   result.Text,
			Timestamp: time.Now(),
			Provider:  l.provider,
			ToolCalls: calls,
		}
		toolMsg := chat.Message{
			Role:      chat.RoleTool,
			Timestamp: time.Now(),
			Provider:  l.provider,
			Records:   records,
		}

		working = append(working, assistantMsg, toolMsg)
		toolMessages = append(toolMessages, assistantMsg, toolMsg)

		l.logger.Debug("tool exchange complete",
			"provider", l.provider,
			"turn", turn,
			"tool_calls", len(calls),
		)
	}

	return nil, fmt.Errorf("%w: no final answer after %d turns", ErrTurnLimit, maxTurns)
}

// executeCalls runs the turn's tool calls sequentially, in response order.
// Later results may depend on earlier ones being visible to the model in a
// stable order, so calls are never executed concurrently. Failures and
// denials become tool-result payloads; they never abort the loop.
func (l *toolLoop) executeCalls(ctx context.Context, calls []chat.ToolCall, opts SendOptions) []chat.ExecutionRecord {
	servers := serverIndex(opts.Runtime)

	records := make([]chat.ExecutionRecord, 0, len(calls))
	for _, call := range calls {
		record := chat.ExecutionRecord{
			Server:     servers[call.Name],
			ToolName:   call.Name,
			Input:      call.Arguments,
			ToolCallID: call.ID,
		}

		switch {
		case opts.Approve != nil && !opts.Approve(call.Name, call.Arguments):
			record.Output = errorPayload(deniedToolMessage)
			record.IsError = true
			l.logger.Info("tool execution denied", "provider", l.provider, "tool", call.Name)
		case opts.Runtime == nil:
			record.Output = errorPayload("no tool runtime available")
			record.IsError = true
		default:
			start := time.Now()
			output, err := opts.Runtime.Call(ctx, call.Name, call.Arguments)
			record.Duration = time.Since(start)
			if err != nil {
				record.Output = errorPayload(err.Error())
				record.IsError = true
			} else {
				record.Output = output
			}
			l.logger.Info("tool executed",
				"provider", l.provider,
				"tool", call.Name,
				"duration_ms", record.Duration.Milliseconds(),
				"error", record.IsError,
			)
		}

		records = append(records, record)
	}
	return records
}

func serverIndex(runtime tools.Runtime) map[string]string {
	servers := map[string]string{}
	if runtime == nil {
		return servers
	}
	for _, def := range runtime.All() {
		servers[def.Name] = def.Server
	}
	return servers
}

func errorPayload(msg string) string {
	data, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error":"tool execution failed"}`
	}
	return string(data)
}
