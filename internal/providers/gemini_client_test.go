package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/chatkit-go/internal/auth"
	"github.com/Davincible/chatkit-go/internal/chat"
	"github.com/Davincible/chatkit-go/internal/tools"
)

func newGeminiTestServer(t *testing.T, handshakes *atomic.Int32, onGenerate func(w http.ResponseWriter, req geminiGenerateRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1internal:loadCodeAssist":
			handshakes.Add(1)
			assert.Equal(t, "Bearer oauth-token", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"cloudaicompanionProject":"proj-123"}`))
		case "/v1internal:streamGenerateContent":
			assert.Equal(t, "sse", r.URL.Query().Get("alt"))
			onGenerate(w, decodeRequest[geminiGenerateRequest](t, r))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestGeminiClientHandshakeOncePerClient(t *testing.T) {
	var handshakes atomic.Int32
	var lastReq geminiGenerateRequest
	server := newGeminiTestServer(t, &handshakes, func(w http.ResponseWriter, req geminiGenerateRequest) {
		lastReq = req
		writeSSE(t, w, `{"response":{"candidates":[{"content":{"parts":[{"text":"hi"}]},"finishReason":"STOP"}]}}`)
	})
	defer server.Close()

	client := NewGeminiClient(GeminiConfig{Endpoint: server.URL, Model: "gemini-test"}, auth.Static("oauth-token"), http.DefaultClient, testLogger())

	result, err := client.SendPrompt(context.Background(), "hello", nil, SendOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hi", result.Response)
	assert.Equal(t, "proj-123", lastReq.Project)
	assert.Equal(t, "gemini-test", lastReq.Model)
	assert.NotEmpty(t, lastReq.UserPromptID)

	// The resolved project is reused; no second handshake.
	_, err = client.SendPrompt(context.Background(), "again", nil, SendOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), handshakes.Load())

	// Until a reset forces re-resolution.
	client.ResetProject()
	_, err = client.SendPrompt(context.Background(), "once more", nil, SendOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), handshakes.Load())
}

func TestGeminiClientConfiguredProjectSkipsHandshake(t *testing.T) {
	var handshakes atomic.Int32
	var lastReq geminiGenerateRequest
	server := newGeminiTestServer(t, &handshakes, func(w http.ResponseWriter, req geminiGenerateRequest) {
		lastReq = req
		writeSSE(t, w, `{"response":{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}}`)
	})
	defer server.Close()

	client := NewGeminiClient(GeminiConfig{
		Endpoint:  server.URL,
		Model:     "gemini-test",
		ProjectID: "my-own-project",
	}, auth.Static("oauth-token"), http.DefaultClient, testLogger())

	_, err := client.SendPrompt(context.Background(), "hello", nil, SendOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(0), handshakes.Load())
	assert.Equal(t, "my-own-project", lastReq.Project)
}

func TestGeminiClientToolRoundTrip(t *testing.T) {
	var handshakes atomic.Int32
	var requests []geminiGenerateRequest
	server := newGeminiTestServer(t, &handshakes, func(w http.ResponseWriter, req geminiGenerateRequest) {
		requests = append(requests, req)
		if len(requests) == 1 {
			writeSSE(t, w, `{"response":{"candidates":[{"content":{"parts":[{"functionCall":{"name":"get_weather","args":{"city":"Oslo"}}}]}}]}}`)
			return
		}
		writeSSE(t, w, `{"response":{"candidates":[{"content":{"parts":[{"text":"12C in Oslo."}]},"finishReason":"STOP"}]}}`)
	})
	defer server.Close()

	runtime := &stubRuntime{
		defs: []tools.Definition{{Name: "get_weather", InputSchema: map[string]any{"type": "object"}}},
		fn:   func(string, map[string]any) (string, error) { return "12C", nil },
	}

	client := NewGeminiClient(GeminiConfig{Endpoint: server.URL, Model: "m"}, auth.Static("oauth-token"), http.DefaultClient, testLogger())
	result, err := client.SendPrompt(context.Background(), "weather in Oslo?", nil, SendOptions{Runtime: runtime})

	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, "12C in Oslo.", result.Response)
	assert.Equal(t, []string{"get_weather"}, runtime.called)

	// Declarations carry the uppercase schema dialect.
	require.Len(t, requests[0].Request.Tools, 1)
	decls := requests[0].Request.Tools[0].FunctionDeclarations
	require.Len(t, decls, 1)
	assert.Equal(t, "get_weather", decls[0].Name)
	assert.Equal(t, "OBJECT", decls[0].Parameters["type"])

	// The second request pairs the functionCall with a functionResponse.
	contents := requests[1].Request.Contents
	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	require.NotNil(t, contents[1].Parts[0].FunctionCall)
	assert.Equal(t, "user", contents[2].Role)
	require.NotNil(t, contents[2].Parts[0].FunctionResponse)
	assert.Equal(t, map[string]any{"output": "12C"}, contents[2].Parts[0].FunctionResponse.Response)
}

func TestGeminiClientHandshakeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("onboarding required"))
	}))
	defer server.Close()

	client := NewGeminiClient(GeminiConfig{Endpoint: server.URL, Model: "m"}, auth.Static("oauth-token"), http.DefaultClient, testLogger())

	_, err := client.SendPrompt(context.Background(), "hello", nil, SendOptions{})
	require.Error(t, err)
	// Handshake failures are configuration problems, never mapped to the
	// transport taxonomy.
	assert.NotErrorIs(t, err, ErrNetwork)
	assert.Contains(t, err.Error(), "project handshake")
}

func TestGeminiClientNotSignedIn(t *testing.T) {
	client := NewGeminiClient(GeminiConfig{Model: "m"}, auth.Static(""), http.DefaultClient, testLogger())

	_, err := client.SendPrompt(context.Background(), "hello", nil, SendOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestGeminiClientHistoryCuration(t *testing.T) {
	var handshakes atomic.Int32
	var lastReq geminiGenerateRequest
	server := newGeminiTestServer(t, &handshakes, func(w http.ResponseWriter, req geminiGenerateRequest) {
		lastReq = req
		writeSSE(t, w, `{"response":{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}}`)
	})
	defer server.Close()

	history := []chat.Message{
		chat.NewSystemMessage("be helpful"),
		chat.NewUserMessage("q1"),
		{Role: chat.RoleAssistant, Content: "a1"},
		// An empty assistant turn invalidates its whole run.
		{Role: chat.RoleAssistant},
	}

	client := NewGeminiClient(GeminiConfig{Endpoint: server.URL, Model: "m", ProjectID: "p"}, auth.Static("oauth-token"), http.DefaultClient, testLogger())
	_, err := client.SendPrompt(context.Background(), "q2", history, SendOptions{})
	require.NoError(t, err)

	contents := lastReq.Request.Contents
	require.Len(t, contents, 2)
	assert.Equal(t, "q1", contents[0].Parts[0].Text)
	assert.Equal(t, "q2", contents[1].Parts[0].Text)
}
