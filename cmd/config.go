package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/chatkit-go/internal/config"
	"github.com/Davincible/chatkit-go/internal/providers"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage the chatkit configuration.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration interactively",
	Long:  `Initialize configuration by prompting for provider details.`,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration.`,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Validate the current configuration for errors.`,
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	color.Blue("Chatkit Configuration Setup")
	color.Yellow("Follow the prompts to configure your default provider.")

	reader := bufio.NewReader(os.Stdin)

	fmt.Printf("\nDefault provider %v [%s]: ", providers.Names(), config.DefaultProvider)
	provider := readLine(reader)
	if provider == "" {
		provider = config.DefaultProvider
	}
	if _, err := providers.ParseName(provider); err != nil {
		return err
	}

	cfg := cfgMgr.Get()
	cfg.Provider = provider

	switch providers.ProviderName(provider) {
	case providers.ProviderGemini:
		fmt.Printf("Model [%s]: ", cfg.Gemini.Model)
		if model := readLine(reader); model != "" {
			cfg.Gemini.Model = model
		}
		fmt.Print("Project ID (blank to auto-discover): ")
		cfg.Gemini.ProjectID = readLine(reader)

	case providers.ProviderOpenAI:
		fmt.Print("Gateway endpoint: ")
		cfg.OpenAI.Endpoint = readLine(reader)
		fmt.Printf("Model [%s]: ", cfg.OpenAI.Model)
		if model := readLine(reader); model != "" {
			cfg.OpenAI.Model = model
		}
		fmt.Print("API key (or env:VAR_NAME reference): ")
		cfg.OpenAI.APIKey = readLine(reader)
		fmt.Print("Integration ID (optional): ")
		cfg.OpenAI.IntegrationID = readLine(reader)

	case providers.ProviderOllama:
		fmt.Printf("Base URL [%s]: ", cfg.Ollama.BaseURL)
		if baseURL := readLine(reader); baseURL != "" {
			cfg.Ollama.BaseURL = baseURL
		}
		fmt.Printf("Model [%s]: ", cfg.Ollama.Model)
		if model := readLine(reader); model != "" {
			cfg.Ollama.Model = model
		}
	}

	if err := cfgMgr.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	color.Green("Configuration saved successfully to: %s", cfgMgr.GetPath())
	color.Cyan("You can now chat with: chatkit chat")

	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		color.Yellow("No configuration found. Run 'chatkit config init' to create one.")
		return nil
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	color.Blue("Current Configuration:")
	fmt.Printf("  %-15s: %s\n", "Provider", cfg.Provider)
	fmt.Printf("  %-15s: %s\n", "Config Path", cfgMgr.GetPath())

	fmt.Println("\nGemini:")
	fmt.Printf("  %-15s: %s\n", "Model", cfg.Gemini.Model)
	if cfg.Gemini.Endpoint != "" {
		fmt.Printf("  %-15s: %s\n", "Endpoint", cfg.Gemini.Endpoint)
	}
	fmt.Printf("  %-15s: %s\n", "Project ID", orUnset(cfg.Gemini.ProjectID, "(auto-discovered)"))

	fmt.Println("\nOpenAI:")
	fmt.Printf("  %-15s: %s\n", "Model", cfg.OpenAI.Model)
	fmt.Printf("  %-15s: %s\n", "Endpoint", orUnset(cfg.OpenAI.Endpoint, "(not set)"))
	fmt.Printf("  %-15s: %s\n", "API Key", maskString(cfg.OpenAI.APIKey))
	fmt.Printf("  %-15s: %s\n", "Integration ID", orUnset(cfg.OpenAI.IntegrationID, "(not set)"))

	fmt.Println("\nOllama:")
	fmt.Printf("  %-15s: %s\n", "Model", cfg.Ollama.Model)
	fmt.Printf("  %-15s: %s\n", "Base URL", cfg.Ollama.BaseURL)

	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		return fmt.Errorf("no configuration found")
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	var problems []string

	if _, err := providers.ParseName(cfg.Provider); err != nil {
		problems = append(problems, err.Error())
	}

	switch providers.ProviderName(cfg.Provider) {
	case providers.ProviderOpenAI:
		if cfg.OpenAI.Endpoint == "" {
			problems = append(problems, "openai: gateway endpoint is required")
		}
		if config.ResolveAPIKey(cfg.OpenAI.APIKey) == "" && os.Getenv("OPENAI_API_KEY") == "" && os.Getenv("CHATKIT_OPENAI_KEY") == "" {
			problems = append(problems, "openai: no API key configured or found in environment")
		}
	case providers.ProviderOllama:
		if !strings.HasPrefix(cfg.Ollama.BaseURL, "http") {
			problems = append(problems, "ollama: base URL must be an http(s) URL")
		}
	}

	if len(problems) > 0 {
		color.Red("Configuration validation failed:")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return fmt.Errorf("configuration validation failed")
	}

	color.Green("Configuration is valid!")
	return nil
}

func readLine(reader *bufio.Reader) string {
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func orUnset(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func maskString(s string) string {
	if s == "" {
		return "(not set)"
	}
	if strings.HasPrefix(s, "env:") {
		return s
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
