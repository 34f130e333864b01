package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	_ "github.com/samcharles93/llmrun/internal/backend/reference"
	"github.com/samcharles93/llmrun/internal/logger"
)

func main() {
	userCfg := LoadConfig()
	commands := []*cli.Command{
		chatCmd(userCfg),
		runCmd(userCfg),
		benchCmd(userCfg),
		scoreCmd(userCfg),
		configCmd(userCfg),
		versionCmd(),
	}
	for _, c := range commands {
		c.Before = setupLogging(userCfg)
	}

	app := &cli.Command{
		Name:  "llmrun",
		Usage: "Autoregressive decoding over a compiled model",
		Flags: loggingFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: commands,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogging builds the logger once the subcommand's flags are parsed and
// carries it in the context.
func setupLogging(user Config) cli.BeforeFunc {
	return func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
		applyLoggingConfig(cmd, user)
		level := logger.ParseLevel(logLevel)
		if debug {
			level = slog.LevelDebug
		}
		return logger.WithContext(ctx, logger.ForFormat(os.Stderr, logFormat, level)), nil
	}
}
