package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/chatkit-go/internal/auth"
	"github.com/Davincible/chatkit-go/internal/chat"
	"github.com/Davincible/chatkit-go/internal/config"
	"github.com/Davincible/chatkit-go/internal/providers"
	"github.com/Davincible/chatkit-go/internal/tools"
	"github.com/Davincible/chatkit-go/internal/transport"
)

var chatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Chat with the configured provider",
	Long: `Start an interactive chat session, or send a single prompt when one is
given on the command line. Tool calls requested by the model are executed
locally after approval.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringP("provider", "p", "", "provider to use (gemini, openai, ollama)")
	chatCmd.Flags().StringP("model", "m", "", "model override for this session")
	chatCmd.Flags().BoolP("yes", "y", false, "approve all tool executions without asking")
	chatCmd.Flags().Bool("no-tools", false, "disable tool calling for this session")
}

func runChat(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	setupLogging(verbose)

	providerFlag, _ := cmd.Flags().GetString("provider")
	modelFlag, _ := cmd.Flags().GetString("model")
	approveAll, _ := cmd.Flags().GetBool("yes")
	noTools, _ := cmd.Flags().GetBool("no-tools")

	cfg := cfgMgr.Get()

	name := cfg.Provider
	if providerFlag != "" {
		name = providerFlag
	}
	providerName, err := providers.ParseName(name)
	if err != nil {
		return err
	}

	client, err := providers.New(providerName, buildSettings(cfg, modelFlag), transport.NewHTTPClient(logger), logger)
	if err != nil {
		return err
	}

	opts := providers.SendOptions{
		OnChunk: func(text string) {
			fmt.Print(text)
		},
	}
	if !noTools {
		opts.Runtime = tools.NewBuiltin()
		opts.Approve = approvalPrompt(approveAll)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(args) > 0 {
		return sendOne(ctx, client, strings.Join(args, " "), nil, opts)
	}
	return chatREPL(ctx, client, opts)
}

// buildSettings maps the persisted configuration onto provider settings,
// applying a per-session model override when given.
func buildSettings(cfg *config.Config, model string) providers.Settings {
	settings := providers.Settings{
		Gemini: providers.GeminiConfig{
			Endpoint:  cfg.Gemini.Endpoint,
			Model:     cfg.Gemini.Model,
			ProjectID: cfg.Gemini.ProjectID,
		},
		GeminiTokens: geminiTokens(),
		OpenAI: providers.OpenAIConfig{
			Endpoint:      cfg.OpenAI.Endpoint,
			Model:         cfg.OpenAI.Model,
			IntegrationID: cfg.OpenAI.IntegrationID,
		},
		OpenAITokens: openAITokens(cfg),
		Ollama: providers.OllamaConfig{
			BaseURL: cfg.Ollama.BaseURL,
			Model:   cfg.Ollama.Model,
		},
	}

	if model != "" {
		settings.Gemini.Model = model
		settings.OpenAI.Model = model
		settings.Ollama.Model = model
	}
	return settings
}

func geminiTokens() auth.TokenSource {
	return auth.FromEnv("CHATKIT_GEMINI_TOKEN", "GOOGLE_OAUTH_ACCESS_TOKEN")
}

func openAITokens(cfg *config.Config) auth.TokenSource {
	if key := config.ResolveAPIKey(cfg.OpenAI.APIKey); key != "" {
		return auth.Static(key)
	}
	return auth.FromEnv("CHATKIT_OPENAI_KEY", "OPENAI_API_KEY")
}

func chatREPL(ctx context.Context, client providers.Client, opts providers.SendOptions) error {
	color.Blue("chatkit %s (provider: %s). Type 'exit' to quit.", Version, client.Name())

	var history []chat.Message
	reader := bufio.NewReader(os.Stdin)

	for {
		if ctx.Err() != nil {
			return nil
		}

		color.Set(color.FgGreen)
		fmt.Print("> ")
		color.Unset()

		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return nil
		}
		prompt := strings.TrimSpace(line)
		switch prompt {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		if err := sendOne(ctx, client, prompt, &history, opts); err != nil {
			if errors.Is(err, providers.ErrCancelled) {
				return nil
			}
			color.Red("error: %v", err)
		}
	}
}

// sendOne issues one prompt and, when history is non-nil, folds the
// exchange back into it so the next prompt sees the full conversation.
func sendOne(ctx context.Context, client providers.Client, prompt string, history *[]chat.Message, opts providers.SendOptions) error {
	var past []chat.Message
	if history != nil {
		past = *history
	}

	result, err := client.SendPrompt(ctx, prompt, past, opts)
	if err != nil {
		return err
	}
	fmt.Println()

	if history != nil {
		userMsg := chat.NewUserMessage(prompt)
		*history = append(*history, userMsg)
		*history = append(*history, result.ToolMessages...)
		*history = append(*history, chat.Message{
			Role:      chat.RoleAssistant,
			Content:   result.Response,
			Timestamp: time.Now(),
			Provider:  client.Name(),
		})
	}
	return nil
}

// approvalPrompt returns the gate applied before each tool execution.
func approvalPrompt(approveAll bool) tools.ApprovalFunc {
	if approveAll {
		return func(string, map[string]any) bool { return true }
	}

	reader := bufio.NewReader(os.Stdin)
	return func(name string, args map[string]any) bool {
		color.Yellow("Tool call requested: %s(%v)", name, args)
		fmt.Print("Allow? [y/N]: ")

		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}
