package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/psychoticproxy/heidi/pkg/config"
)

func executeCLI() error {
	root := &cobra.Command{
		Use:   "heidi",
		Short: "Discord persona bot with persistent memory and a quota-aware reply queue",
		Long: strings.TrimSpace(`heidi is a Discord chatbot with long-term SQLite memory,
scheduled summarization, persona reflection, and a durable outbound queue
that defers replies when the daily model quota runs out.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newGatewayCommand())
	root.AddCommand(newChatCommand())
	root.AddCommand(newOnboardCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newVersionCommand())

	return root.Execute()
}

func newGatewayCommand() *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:     "gateway",
		Short:   "Run the Discord bot, queue worker, schedulers and liveness server",
		Example: "  heidi gateway --debug",
		RunE: func(cmd *cobra.Command, args []string) error {
			return gatewayCmd(debug)
		},
	}
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newChatCommand() *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:     "chat",
		Short:   "Chat with heidi locally without Discord",
		Example: "  heidi chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			return chatCmd(debug)
		},
	}
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newOnboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "onboard",
		Short:   "Write the default ~/.heidi config",
		Example: "  heidi onboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return onboard()
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show configuration and database readiness",
		Example: "  heidi status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return statusCmd()
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show build/version metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion()
			return nil
		},
	}
}

func onboard() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists at %s\n", configPath)
		fmt.Print("Overwrite? (y/n): ")
		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "y" && response != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	if err := config.SaveConfig(configPath, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("%s is ready!\n", appName)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Add your OpenRouter API key to", configPath)
	fmt.Println("     Get one at: https://openrouter.ai/keys")
	fmt.Println("  2. (Gateway mode) Add your Discord bot token to discord.token")
	fmt.Println("  3. Chat locally: heidi chat")
	fmt.Println("  4. Run gateway: heidi gateway")
	fmt.Println("  5. Check readiness: heidi status")
	return nil
}

func statusCmd() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	configPath := getConfigPath()
	fmt.Printf("%s status\n\n", appName)

	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Config:", configPath, "ok")
	} else {
		fmt.Println("Config:", configPath, "missing (defaults in effect)")
	}

	if strings.TrimSpace(cfg.Provider.APIKey) != "" {
		fmt.Println("OpenRouter key: set")
	} else {
		fmt.Println("OpenRouter key: missing")
	}
	if strings.TrimSpace(cfg.Discord.Token) != "" {
		fmt.Println("Discord token: set")
	} else {
		fmt.Println("Discord token: missing")
	}

	for _, db := range []struct{ name, path string }{
		{"Memory DB", cfg.MemoryDBPath()},
		{"Queue DB", cfg.QueueDBPath()},
	} {
		if info, err := os.Stat(db.path); err == nil {
			fmt.Printf("%s: %s (%d bytes)\n", db.name, db.path, info.Size())
		} else {
			fmt.Printf("%s: %s (not created yet)\n", db.name, db.path)
		}
	}

	fmt.Printf("Daily quota: %d calls\n", cfg.Quota.DailyLimit)
	return nil
}
