package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/psychoticproxy/heidi/pkg/channels"
	"github.com/psychoticproxy/heidi/pkg/logger"
)

func chatCmd(debug bool) error {
	if debug {
		logger.SetLevel(logger.DEBUG)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(false); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	rt, err := buildRuntime(cfg, "cli")
	if err != nil {
		return err
	}

	cli := channels.NewCLIChannel(rt.bus, os.Stdout)
	rt.manager.Register(cli)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rt.start(ctx); err != nil {
		rt.shutdown(context.Background())
		return err
	}
	defer rt.shutdown(context.Background())

	fmt.Printf("%s interactive mode (Ctrl+C to exit)\n\n", appName)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".heidi_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return nil
		}

		cli.Submit("local", input)
	}
}
