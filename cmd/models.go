package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/chatkit-go/internal/chat"
	"github.com/Davincible/chatkit-go/internal/providers"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Show configured providers and models",
	RunE:  runModels,
}

var tokensCmd = &cobra.Command{
	Use:   "tokens [text]",
	Short: "Estimate the token count of text (reads stdin when no args)",
	RunE:  runTokens,
}

func init() {
	modelsCmd.AddCommand(tokensCmd)
}

func runModels(cmd *cobra.Command, _ []string) error {
	cfg := cfgMgr.Get()

	models := map[providers.ProviderName]string{
		providers.ProviderGemini: cfg.Gemini.Model,
		providers.ProviderOpenAI: cfg.OpenAI.Model,
		providers.ProviderOllama: cfg.Ollama.Model,
	}

	color.Blue("Configured providers:")
	for _, name := range providers.Names() {
		marker := " "
		if string(name) == cfg.Provider {
			marker = "*"
		}
		fmt.Printf("  %s %-8s %s\n", marker, name, models[name])
	}
	return nil
}

func runTokens(cmd *cobra.Command, args []string) error {
	var text string
	if len(args) > 0 {
		text = strings.Join(args, " ")
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	}

	fmt.Printf("%d\n", chat.EstimateTokens(text))
	return nil
}
