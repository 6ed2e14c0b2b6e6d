package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// NDJSON chunk shape for the local inference server.
type ndjsonChunk struct {
	Message struct {
		Content   string           `json:"content"`
		ToolCalls []ollamaToolCall `json:"tool_calls"`
	} `json:"message"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason"`
}

// accumulateNDJSON consumes a newline-delimited JSON response body. Each line
// is a complete object; a chunk carrying a fully-formed tool-call list
// replaces any previously seen list rather than merging deltas.
func accumulateNDJSON(ctx context.Context, body io.Reader, onChunk ChunkFunc) (*streamResult, error) {
	result := &streamResult{}

	scanner := newStreamScanner(body)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: stream read aborted", ErrCancelled)
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk ndjsonChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return nil, fmt.Errorf("decoding response line: %w", err)
		}

		if chunk.Message.Content != "" {
			result.Text += chunk.Message.Content
			if onChunk != nil {
				onChunk(chunk.Message.Content)
			}
		}

		if len(chunk.Message.ToolCalls) > 0 {
			calls := make([]pendingCall, 0, len(chunk.Message.ToolCalls))
			for _, tc := range chunk.Message.ToolCalls {
				calls = append(calls, pendingCall{
					Name: tc.Function.Name,
					args: tc.Function.Arguments,
				})
			}
			result.Calls = calls
		}

		if chunk.Done {
			result.FinishReason = chunk.DoneReason
			if result.FinishReason == "" {
				result.FinishReason = "stop"
			}
		}
	}
	if err := finishScan(ctx, scanner); err != nil {
		return nil, err
	}
	return result, nil
}
