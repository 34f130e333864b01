package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/llmrun/internal/prompt"
)

func runCmd(user Config) *cli.Command {
	var (
		promptText string
		system     string
		endWith    string
		stats      bool
	)

	flags := append(commonModelFlags(),
		&cli.StringFlag{
			Name:        "prompt",
			Aliases:     []string{"p"},
			Usage:       "user message",
			Required:    true,
			Destination: &promptText,
		},
		&cli.StringFlag{
			Name:        "system",
			Usage:       "system message; renders the conversation through chat_template",
			Destination: &system,
		},
		&cli.StringFlag{
			Name:        "end-with",
			Usage:       "text written when generation stops on a stop id",
			Value:       "\n",
			Destination: &endWith,
		},
		&cli.BoolFlag{
			Name:        "stats",
			Usage:       "print the speed report after the reply",
			Destination: &stats,
		},
	)

	return &cli.Command{
		Name:  "run",
		Usage: "Answer a single prompt",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			applyModelConfig(c, user)
			s, err := openSession(ctx, user)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = s.Close() }()

			if system != "" {
				items := []prompt.Item{
					{Role: prompt.RoleSystem, Content: system},
					{Role: prompt.RoleUser, Content: promptText},
				}
				_, err = s.ResponseHistory(ctx, items, os.Stdout, endWith)
			} else {
				_, err = s.Response(ctx, promptText, os.Stdout, endWith)
			}
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: generate: %v", err), 1)
			}
			if stats {
				if err := s.Stats().WriteReport(os.Stdout); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
