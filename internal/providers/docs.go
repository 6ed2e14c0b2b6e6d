/*
Package providers implements the provider clients and the shared tool-calling
loop that drives them.

Each of the three backends speaks a different wire protocol: the OpenAI-style
gateway streams SSE JSON deltas, Ollama streams newline-delimited JSON, and
the Gemini CloudCode endpoint streams its internal chunked-JSON RPC. The
package normalizes all three into one incremental model (streamResult): text
arrives as deltas forwarded to the caller's ChunkFunc, tool calls are
accumulated per protocol and finalized once the stream ends.

# Client Contract

All providers implement the Client interface:

	type Client interface {
		Name() string
		SendPrompt(ctx context.Context, prompt string, history []chat.Message, opts SendOptions) (*Result, error)
	}

SendPrompt owns the full exchange: it converts the canonical history into the
provider's schema, issues the streamed request with retries, and when the
model requests tools it runs the bounded multi-turn loop (execute approved
calls, feed results back, repeat) until the model answers in plain text or
the turn limit trips.

# History Conversion

Canonical history is provider-neutral chat.Message values. Conversion to the
wire schema is lossy per provider but always preserves the linkage between a
tool call and its result: the gateway uses tool_call_id threading, Gemini
pairs functionCall and functionResponse parts, and Ollama carries structured
arguments inline.

# Errors

Failures are classified once, at the client boundary, into the sentinel
errors in errors.go (ErrAuthentication, ErrRateLimited, ErrNetwork, ...)
wrapped in a *ProviderError carrying the provider, operation, and HTTP
status. Context cancellation always wins over whatever secondary error the
unwinding produced.
*/
package providers
