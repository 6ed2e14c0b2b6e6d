package providers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Davincible/chatkit-go/internal/chat"
	"github.com/Davincible/chatkit-go/internal/retry"
	"github.com/Davincible/chatkit-go/internal/tools"
	"github.com/Davincible/chatkit-go/internal/transport"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// OllamaConfig configures the local inference client.
type OllamaConfig struct {
	// BaseURL of the local server. Defaults to the standard local port.
	BaseURL string

	// Model is the model identifier sent with every request.
	Model string
}

// OllamaClient talks the local inference server's newline-delimited JSON
// chat protocol. No credential is required.
type OllamaClient struct {
	cfg        OllamaConfig
	httpClient *http.Client
	retryPol   retry.Policy
	logger     *slog.Logger
	loop       toolLoop
}

// NewOllamaClient constructs the client. A nil httpClient falls back to a
// freshly tuned transport.
func NewOllamaClient(cfg OllamaConfig, httpClient *http.Client, logger *slog.Logger) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOllamaBaseURL
	}
	if httpClient == nil {
		httpClient = transport.NewHTTPClient(logger)
	}
	return &OllamaClient{
		cfg:        cfg,
		httpClient: httpClient,
		retryPol:   retry.DefaultPolicy(),
		logger:     logger,
		loop:       toolLoop{provider: "ollama", logger: logger},
	}
}

// Name implements Client.
func (c *OllamaClient) Name() string { return "ollama" }

type ollamaChatRequest struct {
	Model    string           `json:"model"`
	Messages []ollamaMessage  `json:"messages"`
	Stream   bool             `json:"stream"`
	Tools    []openAIToolDecl `json:"tools,omitempty"`
}

// SendPrompt implements Client.
func (c *OllamaClient) SendPrompt(ctx context.Context, prompt string, history []chat.Message, opts SendOptions) (*Result, error) {
	if ctx.Err() != nil {
		return nil, normalizeError("ollama", "send", ctx.Err())
	}

	var defs []tools.Definition
	if opts.Runtime != nil {
		defs = opts.Runtime.All()
	}

	return c.loop.run(ctx, prompt, history, opts, func(ctx context.Context, working []chat.Message, pending string, onChunk ChunkFunc) (*streamResult, error) {
		decls := ollamaToolDecls(defs)

		result, err := c.exchange(ctx, toOllamaMessages(working, pending), decls, onChunk)
		if err != nil && len(decls) > 0 && isBadRequest(err) {
			// The model rejected tool declarations. Retry exactly once
			// without tools, and without tool artifacts in history: a
			// model that never saw the declarations must not see
			// orphaned tool calls or results either.
			c.logger.Warn("model rejected tool declarations, retrying without tools",
				"model", c.cfg.Model,
			)
			return c.exchange(ctx, toOllamaMessages(stripToolArtifacts(working), pending), nil, onChunk)
		}
		return result, err
	})
}

func (c *OllamaClient) exchange(ctx context.Context, messages []ollamaMessage, decls []openAIToolDecl, onChunk ChunkFunc) (*streamResult, error) {
	payload := ollamaChatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		Stream:   true,
		Tools:    decls,
	}

	resp, err := retry.Do(ctx, c.retryPol, func(ctx context.Context) (*http.Response, error) {
		resp, err := postJSON(ctx, c.httpClient, c.cfg.BaseURL+"/api/chat", nil, payload)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, attemptError("ollama", "chat", resp)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return accumulateNDJSON(ctx, resp.Body, onChunk)
}

func isBadRequest(err error) bool {
	var provErr *ProviderError
	return errors.As(err, &provErr) && provErr.Status == http.StatusBadRequest
}
