package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/chatkit-go/internal/chat"
	"github.com/Davincible/chatkit-go/internal/tools"
)

func writeNDJSON(t *testing.T, w http.ResponseWriter, lines ...string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/x-ndjson")
	for _, line := range lines {
		_, err := w.Write([]byte(line + "\n"))
		require.NoError(t, err)
	}
}

func TestOllamaClientStreamsText(t *testing.T) {
	var gotReq ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		gotReq = decodeRequest[ollamaChatRequest](t, r)

		writeNDJSON(t, w,
			`{"message":{"content":"Hi "},"done":false}`,
			`{"message":{"content":"there"},"done":true,"done_reason":"stop"}`,
		)
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL, Model: "llama-test"}, http.DefaultClient, testLogger())

	result, err := client.SendPrompt(context.Background(), "hello", nil, SendOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", result.Response)

	assert.Equal(t, "llama-test", gotReq.Model)
	assert.True(t, gotReq.Stream)
	assert.Empty(t, gotReq.Tools)
}

func TestOllamaClientToolRoundTrip(t *testing.T) {
	var requests []ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, decodeRequest[ollamaChatRequest](t, r))
		if len(requests) == 1 {
			writeNDJSON(t, w,
				`{"message":{"tool_calls":[{"function":{"name":"get_time","arguments":{"tz":"UTC"}}}]},"done":true,"done_reason":"tool_calls"}`,
			)
			return
		}
		writeNDJSON(t, w, `{"message":{"content":"Noon."},"done":true}`)
	}))
	defer server.Close()

	runtime := &stubRuntime{
		defs: []tools.Definition{{Name: "get_time"}},
		fn:   func(string, map[string]any) (string, error) { return "12:00", nil },
	}

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL, Model: "m"}, http.DefaultClient, testLogger())
	result, err := client.SendPrompt(context.Background(), "time?", nil, SendOptions{Runtime: runtime})

	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, "Noon.", result.Response)
	assert.Equal(t, []string{"get_time"}, runtime.called)

	// Arguments stay structured on this wire, in both directions.
	second := requests[1]
	require.Len(t, second.Messages, 3)
	assert.Equal(t, "assistant", second.Messages[1].Role)
	require.Len(t, second.Messages[1].ToolCalls, 1)
	assert.Equal(t, map[string]any{"tz": "UTC"}, second.Messages[1].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "tool", second.Messages[2].Role)
	assert.Equal(t, "12:00", second.Messages[2].Content)
}

func TestOllamaClientRetriesOnceWithoutTools(t *testing.T) {
	// Some local models reject requests that carry tool declarations.
	// The client retries exactly once: no tools, no tool artifacts.
	var requests []ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, decodeRequest[ollamaChatRequest](t, r))
		if len(requests[len(requests)-1].Tools) > 0 {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"this model does not support tools"}`))
			return
		}
		writeNDJSON(t, w, `{"message":{"content":"plain answer"},"done":true}`)
	}))
	defer server.Close()

	history := []chat.Message{
		chat.NewUserMessage("earlier question"),
		{Role: chat.RoleAssistant, ToolCalls: []chat.ToolCall{{Name: "old_tool"}}},
		{Role: chat.RoleTool, Records: []chat.ExecutionRecord{{ToolName: "old_tool", Output: "old result"}}},
		{Role: chat.RoleAssistant, Content: "earlier answer"},
	}

	runtime := &stubRuntime{defs: []tools.Definition{{Name: "get_time"}}}
	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL, Model: "m"}, http.DefaultClient, testLogger())

	result, err := client.SendPrompt(context.Background(), "new question", history, SendOptions{Runtime: runtime})
	require.NoError(t, err)
	assert.Equal(t, "plain answer", result.Response)

	require.Len(t, requests, 2)
	assert.NotEmpty(t, requests[0].Tools)
	assert.Empty(t, requests[1].Tools)

	// The retried request must not replay orphaned tool artifacts.
	for _, msg := range requests[1].Messages {
		assert.NotEqual(t, "tool", msg.Role)
		assert.Empty(t, msg.ToolCalls)
	}
	require.Len(t, requests[1].Messages, 3)
	assert.Equal(t, "earlier question", requests[1].Messages[0].Content)
	assert.Equal(t, "earlier answer", requests[1].Messages[1].Content)
	assert.Equal(t, "new question", requests[1].Messages[2].Content)
}

func TestOllamaClientBadRequestWithoutToolsFails(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL, Model: "m"}, http.DefaultClient, testLogger())

	_, err := client.SendPrompt(context.Background(), "hi", nil, SendOptions{})
	require.Error(t, err)
	assert.Equal(t, 1, hits)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusBadRequest, provErr.Status)
}

func TestOllamaClientDefaultBaseURL(t *testing.T) {
	client := NewOllamaClient(OllamaConfig{Model: "m"}, http.DefaultClient, testLogger())
	assert.Equal(t, defaultOllamaBaseURL, client.cfg.BaseURL)
}
