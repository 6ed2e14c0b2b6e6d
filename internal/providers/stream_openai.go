package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
)

// SSE chunk shape for the OpenAI-style gateway.
type sseChunk struct {
	Choices []sseChoice `json:"choices"`
}

type sseChoice struct {
	Delta        sseDelta `json:"delta"`
	FinishReason *string  `json:"finish_reason"`
}

type sseDelta struct {
	Content   string         `json:"content"`
	ToolCalls []sseToolDelta `json:"tool_calls"`
}

type sseToolDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// accumulateSSE consumes a text/event-stream response body and incrementally
// builds the normalized result. Malformed JSON in a single frame is logged
// and skipped; it never aborts the stream. A literal [DONE] payload is a
// no-op terminator.
func accumulateSSE(ctx context.Context, body io.Reader, logger *slog.Logger, onChunk ChunkFunc) (*streamResult, error) {
	result := &streamResult{}
	partials := make(map[int]*pendingCall)

	scanner := newStreamScanner(body)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: stream read aborted", ErrCancelled)
		}

		payload, ok := ssePayload(scanner.Text())
		if !ok {
			continue
		}
		if payload == "[DONE]" {
			break
		}

		var chunk sseChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			logger.Debug("skipping malformed SSE frame",
				"payload", truncateBody(payload, 100),
				"error", err,
			)
			continue
		}

		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				result.Text += choice.Delta.Content
				if onChunk != nil {
					onChunk(choice.Delta.Content)
				}
			}

			for _, delta := range choice.Delta.ToolCalls {
				partial, seen := partials[delta.Index]
				if !seen {
					// Name and ID are fixed at first sight of an index.
					partial = &pendingCall{
						ID:   delta.ID,
						Name: delta.Function.Name,
					}
					if partial.ID == "" {
						partial.ID = fmt.Sprintf("call_%d", delta.Index)
					}
					partials[delta.Index] = partial
				}
				partial.argsJSON += delta.Function.Arguments
			}

			if choice.FinishReason != nil && *choice.FinishReason != "" {
				result.FinishReason = *choice.FinishReason
			}
		}
	}
	if err := finishScan(ctx, scanner); err != nil {
		return nil, err
	}

	indices := make([]int, 0, len(partials))
	for idx := range partials {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	for _, idx := range indices {
		result.Calls = append(result.Calls, *partials[idx])
	}
	return result, nil
}
