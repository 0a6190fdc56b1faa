package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/karte-health/karte/pkg/model"
	"github.com/karte-health/karte/pkg/usecase/history"
	"github.com/karte-health/karte/pkg/utils/logging"
)

func historyCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "history",
		Usage: "List past consultation sessions",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = logging.With(ctx, logging.New(cfg.logLevel, os.Stderr))

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}

			groups, err := history.Load(ctx, repo, cfg.userID)
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				fmt.Fprintln(c.Root().Writer, "no sessions recorded")
				return nil
			}

			for _, id := range history.SortForDisplay(groups, "") {
				g := groups[id]
				fmt.Fprintf(c.Root().Writer, "%s\t%s\n", id, g.Title)
				for _, e := range g.Entries {
					if e.Summary == "" {
						continue
					}
					fmt.Fprintf(c.Root().Writer, "  %s  %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Summary)
				}
			}
			return nil
		},
	}
}

func renameCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "rename",
		Usage:     "Rename a session",
		ArgsUsage: "<session-id> <title>",
		Flags:     globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = logging.With(ctx, logging.New(cfg.logLevel, os.Stderr))

			if c.Args().Len() < 2 {
				return cli.Exit("usage: karte rename <session-id> <title>", 2)
			}
			id := model.SessionID(c.Args().Get(0))
			title := c.Args().Get(1)

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			if err := history.Rename(ctx, repo, cfg.userID, id, title); err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "renamed %s to %q\n", id, title)
			return nil
		},
	}
}

func deleteCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a session and all its turns",
		ArgsUsage: "<session-id>",
		Flags:     globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = logging.With(ctx, logging.New(cfg.logLevel, os.Stderr))

			if c.Args().Len() < 1 {
				return cli.Exit("usage: karte delete <session-id>", 2)
			}
			id := model.SessionID(c.Args().Get(0))

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			if err := history.Delete(ctx, repo, cfg.userID, id); err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "deleted %s\n", id)
			return nil
		},
	}
}
