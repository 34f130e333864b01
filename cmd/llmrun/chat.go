package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func chatCmd(user Config) *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive conversation (/reset clears history, /exit quits)",
		Flags: commonModelFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			applyModelConfig(c, user)
			s, err := openSession(ctx, user)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = s.Close() }()

			if err := s.Chat(ctx, newLineReader(os.Stdin, os.Stdout), os.Stdout); err != nil {
				return cli.Exit(fmt.Sprintf("error: chat: %v", err), 1)
			}
			return nil
		},
	}
}
