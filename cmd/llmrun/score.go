package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func scoreCmd(user Config) *cli.Command {
	var inputPath, targetPath string

	flags := append(commonModelFlags(),
		&cli.StringFlag{
			Name:        "input",
			Usage:       "file of little-endian int32 prompt ids",
			Required:    true,
			Destination: &inputPath,
		},
		&cli.StringFlag{
			Name:        "target",
			Usage:       "file of little-endian int32 target ids (first id is scored)",
			Required:    true,
			Destination: &targetPath,
		},
	)

	return &cli.Command{
		Name:  "score",
		Usage: "Cross-entropy loss of the first target id after a prompt",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			applyModelConfig(c, user)
			s, err := openSession(ctx, user)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = s.Close() }()

			loss, err := s.ResponseFiles(ctx, inputPath, targetPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: score: %v", err), 1)
			}
			fmt.Printf("loss: %f\n", loss)
			return nil
		},
	}
}
