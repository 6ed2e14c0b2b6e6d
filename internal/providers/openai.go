package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Davincible/chatkit-go/internal/auth"
	"github.com/Davincible/chatkit-go/internal/chat"
	"github.com/Davincible/chatkit-go/internal/retry"
	"github.com/Davincible/chatkit-go/internal/transport"
)

// OpenAIConfig configures the OpenAI-compatible gateway client.
type OpenAIConfig struct {
	// Endpoint is the gateway base URL, e.g. "https://gateway.example.com/v1".
	Endpoint string

	// Model is the model identifier sent with every request.
	Model string

	// IntegrationID identifies this client to the gateway; sent as the
	// X-Integration-ID header alongside bearer auth.
	IntegrationID string
}

// OpenAIClient talks the OpenAI-compatible chat completions protocol over
// Server-Sent Events.
type OpenAIClient struct {
	cfg        OpenAIConfig
	tokens     auth.TokenSource
	httpClient *http.Client
	retryPol   retry.Policy
	logger     *slog.Logger
	loop       toolLoop
}

// NewOpenAIClient constructs the client. A nil httpClient falls back to a
// freshly tuned transport.
func NewOpenAIClient(cfg OpenAIConfig, tokens auth.TokenSource, httpClient *http.Client, logger *slog.Logger) *OpenAIClient {
	if httpClient == nil {
		httpClient = transport.NewHTTPClient(logger)
	}
	return &OpenAIClient{
		cfg:        cfg,
		tokens:     tokens,
		httpClient: httpClient,
		retryPol:   retry.DefaultPolicy(),
		logger:     logger,
		loop:       toolLoop{provider: "openai", logger: logger},
	}
}

// Name implements Client.
func (c *OpenAIClient) Name() string { return "openai" }

type openAIChatRequest struct {
	Messages   []openAIMessage  `json:"messages"`
	Model      string           `json:"model"`
	Stream     bool             `json:"stream"`
	Tools      []openAIToolDecl `json:"tools,omitempty"`
	ToolChoice string           `json:"tool_choice,omitempty"`
}

// SendPrompt implements Client.
func (c *OpenAIClient) SendPrompt(ctx context.Context, prompt string, history []chat.Message, opts SendOptions) (*Result, error) {
	if ctx.Err() != nil {
		return nil, normalizeError("openai", "send", ctx.Err())
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, &ProviderError{
			Provider: "openai", Op: "send",
			Message: "no API credential configured",
			Err:     fmt.Errorf("%w: %v", ErrAuthentication, err),
		}
	}

	var decls []openAIToolDecl
	if opts.Runtime != nil {
		decls = openAIToolDecls(opts.Runtime.All())
	}

	return c.loop.run(ctx, prompt, history, opts, func(ctx context.Context, working []chat.Message, pending string, onChunk ChunkFunc) (*streamResult, error) {
		payload := openAIChatRequest{
			Messages: toOpenAIMessages(working, pending),
			Model:    c.cfg.Model,
			Stream:   true,
			Tools:    decls,
		}
		if len(decls) > 0 {
			payload.ToolChoice = "auto"
		}

		headers := bearerHeader(token)
		headers.Set("Accept", "text/event-stream")
		if c.cfg.IntegrationID != "" {
			headers.Set("X-Integration-ID", c.cfg.IntegrationID)
		}

		resp, err := retry.Do(ctx, c.retryPol, func(ctx context.Context) (*http.Response, error) {
			resp, err := postJSON(ctx, c.httpClient, c.cfg.Endpoint+"/chat/completions", headers, payload)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode != http.StatusOK {
				return nil, attemptError("openai", "chat", resp)
			}
			return resp, nil
		})
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		return accumulateSSE(ctx, resp.Body, c.logger, onChunk)
	})
}
