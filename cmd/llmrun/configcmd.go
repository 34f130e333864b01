package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func configCmd(user Config) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Print the effective model configuration",
		Flags: commonModelFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			applyModelConfig(c, user)
			cfg, err := loadModelConfig(user)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: load config: %v", err), 1)
			}
			out, err := cfg.Dump()
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
}
