package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/llmrun/internal/inference"
	"github.com/samcharles93/llmrun/internal/logger"
	"github.com/samcharles93/llmrun/internal/metrics"
	"github.com/samcharles93/llmrun/internal/session"
	"github.com/samcharles93/llmrun/internal/speech"
)

func benchCmd(user Config) *cli.Command {
	var (
		speechModel string
		audioPath   string
		transcriber string
		metricsOut  string
		runs        int64
	)

	flags := append(commonModelFlags(),
		&cli.StringFlag{
			Name:        "speech-model",
			Usage:       "speech recognition model identifier",
			Destination: &speechModel,
		},
		&cli.StringFlag{
			Name:        "audio",
			Usage:       "audio file to transcribe into the prompt",
			Required:    true,
			Destination: &audioPath,
		},
		&cli.StringFlag{
			Name:        "transcriber",
			Usage:       "speech-to-text implementation",
			Value:       speech.SidecarName,
			Destination: &transcriber,
		},
		&cli.StringFlag{
			Name:        "metrics-out",
			Usage:       "write Prometheus text metrics to this file",
			Destination: &metricsOut,
		},
		&cli.Int64Flag{
			Name:        "runs",
			Usage:       "number of responses to accumulate",
			Value:       1,
			Destination: &runs,
		},
	)

	return &cli.Command{
		Name:  "bench",
		Usage: "Transcribe audio, answer it and report token throughput",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)
			applyModelConfig(c, user)

			stt, err := speech.Lookup(transcriber)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			text, err := stt.Transcribe(ctx, speechModel, audioPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: transcribe %q: %v", audioPath, err), 1)
			}
			log.Info("transcribed", "transcriber", stt.Name(), "chars", len(text))

			collector := metrics.New()
			s, err := openSession(ctx, user, session.WithMetrics(collector))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = s.Close() }()

			turns := make([]inference.Stats, 0, max(runs, 1))
			for i := range max(runs, 1) {
				log.Debug("bench run", "run", i+1)
				if _, err := s.Response(ctx, text, os.Stdout, ""); err != nil {
					return cli.Exit(fmt.Sprintf("error: generate: %v", err), 1)
				}
				turns = append(turns, s.Stats())
			}
			if err := inference.Sum(turns...).WriteBenchReport(os.Stdout); err != nil {
				return err
			}

			if metricsOut != "" {
				if err := collector.WriteToTextfile(metricsOut); err != nil {
					return cli.Exit(fmt.Sprintf("error: write metrics: %v", err), 1)
				}
				log.Info("metrics written", "path", metricsOut)
			}
			return nil
		},
	}
}
