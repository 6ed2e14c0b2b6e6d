package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/Davincible/chatkit-go/internal/auth"
	"github.com/Davincible/chatkit-go/internal/chat"
	"github.com/Davincible/chatkit-go/internal/retry"
	"github.com/Davincible/chatkit-go/internal/transport"
)

const defaultGeminiEndpoint = "https://cloudcode-pa.googleapis.com"

// GeminiConfig configures the internal-RPC provider client.
type GeminiConfig struct {
	// Endpoint is the RPC base URL. Defaults to the cloud endpoint.
	Endpoint string

	// Model is the model identifier sent with every request.
	Model string

	// ProjectID, when set, skips the loadCodeAssist handshake.
	ProjectID string

	// Temperature for generationConfig; zero means provider default.
	Temperature float64
}

// GeminiClient talks the internal chunked-JSON streaming RPC.
type GeminiClient struct {
	cfg        GeminiConfig
	tokens     auth.TokenSource
	httpClient *http.Client
	retryPol   retry.Policy
	logger     *slog.Logger
	loop       toolLoop

	// projectID is resolved once per client lifetime (or until reset).
	mu        sync.Mutex
	projectID string
}

// NewGeminiClient constructs the client. A nil httpClient falls back to a
// freshly tuned transport.
func NewGeminiClient(cfg GeminiConfig, tokens auth.TokenSource, httpClient *http.Client, logger *slog.Logger) *GeminiClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultGeminiEndpoint
	}
	if httpClient == nil {
		httpClient = transport.NewHTTPClient(logger)
	}
	return &GeminiClient{
		cfg:        cfg,
		tokens:     tokens,
		httpClient: httpClient,
		retryPol:   retry.DefaultPolicy(),
		logger:     logger,
		loop:       toolLoop{provider: "gemini", logger: logger},
	}
}

// Name implements Client.
func (c *GeminiClient) Name() string { return "gemini" }

// ResetProject clears the resolved project so the next request performs the
// handshake again, e.g. after switching accounts.
func (c *GeminiClient) ResetProject() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projectID = ""
}

// Request body for the internal streaming RPC.
type geminiGenerateRequest struct {
	Model        string             `json:"model"`
	Project      string             `json:"project"`
	UserPromptID string             `json:"user_prompt_id"`
	Request      geminiInnerRequest `json:"request"`
}

type geminiInnerRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
	Tools            []geminiTool           `json:"tools,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature float64 `json:"temperature,omitempty"`
}

// SendPrompt implements Client.
func (c *GeminiClient) SendPrompt(ctx context.Context, prompt string, history []chat.Message, opts SendOptions) (*Result, error) {
	if ctx.Err() != nil {
		return nil, normalizeError("gemini", "send", ctx.Err())
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, &ProviderError{
			Provider: "gemini", Op: "send",
			Message: "not signed in, please authenticate first",
			Err:     fmt.Errorf("%w: %v", ErrAuthentication, err),
		}
	}

	project, err := c.ensureProject(ctx, token)
	if err != nil {
		return nil, normalizeError("gemini", "handshake", err)
	}

	var decls []geminiTool
	if opts.Runtime != nil {
		decls = geminiToolDecls(opts.Runtime.All())
	}

	return c.loop.run(ctx, prompt, history, opts, func(ctx context.Context, working []chat.Message, pending string, onChunk ChunkFunc) (*streamResult, error) {
		payload := geminiGenerateRequest{
			Model:        c.cfg.Model,
			Project:      project,
			UserPromptID: uuid.NewString(),
			Request: geminiInnerRequest{
				Contents:         toGeminiContents(working, pending),
				GenerationConfig: geminiGenerationConfig{Temperature: c.cfg.Temperature},
				Tools:            decls,
			},
		}

		resp, err := retry.Do(ctx, c.retryPol, func(ctx context.Context) (*http.Response, error) {
			resp, err := postJSON(ctx, c.httpClient, c.cfg.Endpoint+"/v1internal:streamGenerateContent?alt=sse", bearerHeader(token), payload)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode != http.StatusOK {
				return nil, attemptError("gemini", "generate", resp)
			}
			return resp, nil
		})
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		return accumulateGemini(ctx, resp.Body, c.logger, onChunk)
	})
}

type loadCodeAssistRequest struct {
	Metadata map[string]string `json:"metadata"`
}

type loadCodeAssistResponse struct {
	CloudAICompanionProject string `json:"cloudaicompanionProject"`
}

// ensureProject resolves the project identifier once per client lifetime.
// Failures here are configuration errors, not transport errors: they are
// never mapped to the network taxonomy (cancellation still wins, handled by
// the caller).
func (c *GeminiClient) ensureProject(ctx context.Context, token string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.projectID != "" {
		return c.projectID, nil
	}
	if c.cfg.ProjectID != "" {
		c.projectID = c.cfg.ProjectID
		return c.projectID, nil
	}

	headers := bearerHeader(token)
	headers.Set("Accept-Encoding", "gzip, br")

	resp, err := postJSON(ctx, c.httpClient, c.cfg.Endpoint+"/v1internal:loadCodeAssist", headers, loadCodeAssistRequest{
		Metadata: map[string]string{"pluginType": "GEMINI"},
	})
	if err != nil {
		return "", fmt.Errorf("project handshake: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("project handshake: status %d: %s", resp.StatusCode, truncateBody(readHandshakeBody(resp), 200))
	}

	reader, err := transport.DecompressReader(resp)
	if err != nil {
		return "", fmt.Errorf("project handshake: %w", err)
	}
	var parsed loadCodeAssistResponse
	if err := json.NewDecoder(reader).Decode(&parsed); err != nil {
		return "", fmt.Errorf("project handshake: decoding response: %w", err)
	}
	if parsed.CloudAICompanionProject == "" {
		return "", fmt.Errorf("project handshake: account has no cloud project configured")
	}

	c.projectID = parsed.CloudAICompanionProject
	c.logger.Debug("resolved project", "project", c.projectID)
	return c.projectID, nil
}

func readHandshakeBody(resp *http.Response) string {
	reader, err := transport.DecompressReader(resp)
	if err != nil {
		return ""
	}
	data, _ := io.ReadAll(io.LimitReader(reader, 4*1024))
	return string(data)
}
