package main

import "github.com/urfave/cli/v3"

var (
	modelDir    string
	backendName string
	configPatch string
	logLevel    string
	logFormat   string
	debug       bool
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model-dir",
			Aliases:     []string{"m"},
			Usage:       "model directory or configuration file",
			Value:       ".",
			Destination: &modelDir,
		},
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "execution backend (overrides the configuration)",
			Destination: &backendName,
		},
		&cli.StringFlag{
			Name:        "set",
			Usage:       "JSON merge patch applied to the loaded configuration",
			Destination: &configPatch,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (console, json, text)",
			Value:       "console",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}
