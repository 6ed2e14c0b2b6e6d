package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
)

// Chunked-JSON shape of the internal RPC stream. Each SSE frame wraps a
// partial GenerateContent response.
type geminiChunk struct {
	Response struct {
		Candidates []struct {
			Content      geminiContent `json:"content"`
			FinishReason string        `json:"finishReason"`
		} `json:"candidates"`
	} `json:"response"`
}

// accumulateGemini consumes the internal RPC's SSE-framed chunk stream.
// Text parts append to the buffer; functionCall parts are appended whole to
// the tool-call list, never delta-merged.
func accumulateGemini(ctx context.Context, body io.Reader, logger *slog.Logger, onChunk ChunkFunc) (*streamResult, error) {
	result := &streamResult{}

	scanner := newStreamScanner(body)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: stream read aborted", ErrCancelled)
		}

		payload, ok := ssePayload(scanner.Text())
		if !ok {
			continue
		}

		var chunk geminiChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			logger.Debug("skipping malformed stream chunk",
				"payload", truncateBody(payload, 100),
				"error", err,
			)
			continue
		}
		if len(chunk.Response.Candidates) == 0 {
			continue
		}

		candidate := chunk.Response.Candidates[0]
		for _, part := range candidate.Content.Parts {
			switch {
			case part.Text != "":
				result.Text += part.Text
				if onChunk != nil {
					onChunk(part.Text)
				}
			case part.FunctionCall != nil:
				result.Calls = append(result.Calls, pendingCall{
					Name: part.FunctionCall.Name,
					args: part.FunctionCall.Args,
				})
			}
		}
		if candidate.FinishReason != "" {
			result.FinishReason = candidate.FinishReason
		}
	}
	if err := finishScan(ctx, scanner); err != nil {
		return nil, err
	}
	return result, nil
}
