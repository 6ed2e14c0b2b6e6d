package providers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Davincible/chatkit-go/internal/auth"
)

// ProviderName identifies one of the three supported backends. The set is
// closed by design: no fourth provider is added dynamically at runtime.
type ProviderName string

const (
	ProviderGemini ProviderName = "gemini"
	ProviderOpenAI ProviderName = "openai"
	ProviderOllama ProviderName = "ollama"
)

// Names lists the supported provider names in display order.
func Names() []ProviderName {
	return []ProviderName{ProviderGemini, ProviderOpenAI, ProviderOllama}
}

// ParseName validates a user-supplied provider name.
func ParseName(s string) (ProviderName, error) {
	switch ProviderName(s) {
	case ProviderGemini, ProviderOpenAI, ProviderOllama:
		return ProviderName(s), nil
	default:
		return "", fmt.Errorf("%w: %q (expected one of gemini, openai, ollama)", ErrUnknownProvider, s)
	}
}

// Settings bundles the per-provider configuration and credentials needed to
// construct any of the three clients.
type Settings struct {
	Gemini       GeminiConfig
	GeminiTokens auth.TokenSource

	OpenAI       OpenAIConfig
	OpenAITokens auth.TokenSource

	Ollama OllamaConfig
}

// New builds the client for the named provider. This is the composition
// seam between the host and the orchestration core.
func New(name ProviderName, settings Settings, httpClient *http.Client, logger *slog.Logger) (Client, error) {
	switch name {
	case ProviderGemini:
		return NewGeminiClient(settings.Gemini, settings.GeminiTokens, httpClient, logger), nil
	case ProviderOpenAI:
		return NewOpenAIClient(settings.OpenAI, settings.OpenAITokens, httpClient, logger), nil
	case ProviderOllama:
		return NewOllamaClient(settings.Ollama, httpClient, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}
