package providers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Davincible/chatkit-go/internal/chat"
)

// ChunkFunc receives each text delta synchronously, in stream order, at most
// once per delta. Deltas are never retried or replayed.
type ChunkFunc func(text string)

// pendingCall is a tool call as reconstructed from the wire, before its
// arguments are normalized into the canonical structured form. SSE deltas
// buffer argument text in argsJSON; the other protocols deliver args whole.
type pendingCall struct {
	ID       string
	Name     string
	args     map[string]any
	argsJSON string
}

// streamResult is the normalized outcome of one consumed response stream.
type streamResult struct {
	Text         string
	Calls        []pendingCall
	FinishReason string
}

// toolCalls finalizes pending calls into the canonical form, parsing buffered
// argument JSON at this wire boundary and synthesizing missing IDs.
func (r *streamResult) toolCalls(logger *slog.Logger) []chat.ToolCall {
	if len(r.Calls) == 0 {
		return nil
	}
	calls := make([]chat.ToolCall, 0, len(r.Calls))
	for _, pc := range r.Calls {
		call := chat.ToolCall{ID: pc.ID, Name: pc.Name, Arguments: pc.args}
		if call.Arguments == nil && pc.argsJSON != "" {
			var parsed map[string]any
			if err := json.Unmarshal([]byte(pc.argsJSON), &parsed); err != nil {
				logger.Warn("tool call arguments are not valid JSON, ignoring",
					"tool", pc.Name,
					"error", err,
				)
			} else {
				call.Arguments = parsed
			}
		}
		if call.ID == "" {
			call.ID = "call_" + uuid.NewString()
		}
		calls = append(calls, call)
	}
	return calls
}

// newStreamScanner builds a line scanner sized for large SSE/NDJSON payloads.
func newStreamScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return scanner
}

// finishScan maps the scanner's terminal state to the error taxonomy:
// cancellation beats any read error, and read errors during an active
// context are transport failures.
func finishScan(ctx context.Context, scanner *bufio.Scanner) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: stream read aborted", ErrCancelled)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return nil
}

// ssePayload extracts the JSON payload from an SSE data line, reporting
// whether the line carried one.
func ssePayload(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "data: ") {
		return "", false
	}
	return strings.TrimPrefix(line, "data: "), true
}
