package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/karte-health/karte/pkg/model"
	"github.com/karte-health/karte/pkg/service"
	"github.com/karte-health/karte/pkg/usecase/trend"
	"github.com/karte-health/karte/pkg/utils/logging"
)

func trendCommand() *cli.Command {
	var (
		cfg    config
		window string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "window",
			Aliases:     []string{"w"},
			Usage:       "Analysis window: 7d or 30d",
			Value:       string(model.WindowWeek),
			Destination: &window,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "trend",
		Usage: "Show per-day symptom criticality for the recent window",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = logging.With(ctx, logging.New(cfg.logLevel, os.Stderr))

			kind := model.WindowKind(window)
			if kind != model.WindowWeek && kind != model.WindowMonth {
				return cli.Exit(fmt.Sprintf("invalid window %q: must be 7d or 30d", window), 2)
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			scorer, err := cfg.newScorer(ctx)
			if err != nil {
				return err
			}

			analyzer := trend.NewAnalyzer(trend.AnalyzerInput{
				Repo:   repo,
				Scorer: scorer,
			})

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			sp.Suffix = " Scoring your symptoms..."
			sp.Start()
			entry, err := analyzer.Criticality(ctx, cfg.userID, kind)
			sp.Stop()

			if err != nil {
				if errors.Is(err, model.ErrUpstreamParse) {
					// Show the raw model output so the answer is not lost
					if goErr := goerr.Unwrap(err); goErr != nil {
						if raw, ok := goErr.Values()["raw"].(string); ok {
							fmt.Fprintf(c.Root().Writer, "%s\n", raw)
						}
					}
				}
				return err
			}

			if len(entry.Report) == 0 {
				fmt.Fprintf(c.Root().Writer, "no symptoms recorded in the last %s\n", kind)
				return nil
			}

			printCriticality(c, entry.Report)
			return nil
		},
	}
}

func printCriticality(c *cli.Command, report []model.DailyCriticality) {
	for _, day := range report {
		fmt.Fprintf(c.Root().Writer, "%s  (total %d)\n", day.Day, day.TotalScore)
		for _, s := range day.Symptoms {
			fmt.Fprintf(c.Root().Writer, "  %-30s %2d/10\n", s.Name, s.Score)
		}
	}
}

func reportCommand() *cli.Command {
	var cfg config

	flags := append(globalFlags(&cfg), llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "report",
		Usage: "Generate a monthly health report",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = logging.With(ctx, logging.New(cfg.logLevel, os.Stderr))

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			scorer, err := cfg.newScorer(ctx)
			if err != nil {
				return err
			}
			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			analyzer := trend.NewAnalyzer(trend.AnalyzerInput{
				Repo:   repo,
				Scorer: scorer,
				Report: service.NewReport(gemini),
			})

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			sp.Suffix = " Writing your monthly report..."
			sp.Start()
			report, err := analyzer.MonthlyReport(ctx, cfg.userID)
			sp.Stop()

			if err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "%s\n", report)
			return nil
		},
	}
}
