package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/karte-health/karte/pkg/model"
	"github.com/karte-health/karte/pkg/service"
	"github.com/karte-health/karte/pkg/usecase/chat"
	"github.com/karte-health/karte/pkg/usecase/history"
	"github.com/karte-health/karte/pkg/utils/logging"
)

func chatCommand() *cli.Command {
	var (
		cfg       config
		sessionID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session",
			Aliases:     []string{"s"},
			Usage:       "Session ID to resume (default: start a new session)",
			Destination: &sessionID,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive symptom consultation",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = logging.With(ctx, logging.New(cfg.logLevel, os.Stderr))

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			groq, err := cfg.newGroq()
			if err != nil {
				return err
			}
			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}
			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}
			profile, err := cfg.newProfile()
			if err != nil {
				return err
			}

			store := chat.NewStore(repo, cfg.userID)
			view := history.NewView()
			if turns, err := repo.ListTurnsByUser(ctx, cfg.userID); err == nil {
				view.Reload(turns)
			} else {
				logging.From(ctx).Warn("failed to preload history", "error", err)
			}

			if sessionID != "" {
				turns, err := store.Open(ctx, model.SessionID(sessionID))
				if err != nil {
					return goerr.Wrap(err, "failed to open session")
				}
				for _, t := range turns {
					printTurn(c, t)
				}
			} else {
				view.StartSession(store.StartSession())
			}

			pipeline := chat.NewPipeline(chat.PipelineInput{
				Store:   store,
				Repo:    repo,
				View:    view,
				Diag:    service.NewDiagnosis(groq),
				Image:   service.NewImageDiagnosis(gemini),
				Summary: service.NewSummary(gemini),
				Storage: storage,
				Profile: profile,
			})

			return runChatLoop(ctx, c, store, view, pipeline)
		},
	}
}

func runChatLoop(ctx context.Context, c *cli.Command, store *chat.Store, view *history.View, pipeline *chat.Pipeline) error {
	rl, err := readline.New("> ")
	if err != nil {
		return goerr.Wrap(err, "failed to initialize readline")
	}
	defer rl.Close()

	fmt.Fprintf(c.Root().Writer, "Session %s started. Type 'exit' to quit, '/image <path>' to attach an image.\n", store.SessionID())

	var pendingImage *model.ImageInput

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				break
			}
			return goerr.Wrap(err, "failed to read input")
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "exit":
			fmt.Fprintf(c.Root().Writer, "\nSession %s closed\n", store.SessionID())
			return nil

		case line == "/sessions":
			for _, id := range view.Ordered(store.SessionID()) {
				g := view.Group(id)
				marker := " "
				if id == store.SessionID() {
					marker = "*"
				}
				fmt.Fprintf(c.Root().Writer, "%s %s\t%s\n", marker, id, g.Title)
			}
			continue

		case strings.HasPrefix(line, "/open "):
			id := model.SessionID(strings.TrimSpace(strings.TrimPrefix(line, "/open ")))
			turns, err := store.Open(ctx, id)
			if err != nil {
				fmt.Fprintf(c.Root().Writer, "cannot open session: %s\n", err)
				continue
			}
			for _, t := range turns {
				printTurn(c, t)
			}
			continue

		case strings.HasPrefix(line, "/image "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/image "))
			img, err := loadImage(path)
			if err != nil {
				fmt.Fprintf(c.Root().Writer, "cannot read image: %s\n", err)
				continue
			}
			pendingImage = img
			fmt.Fprintf(c.Root().Writer, "image attached (%s, %d bytes); it is sent with your next message\n", img.MIMEType, len(img.Data))
			continue

		case line == "" && pendingImage == nil:
			continue
		}

		input := &model.TurnInput{Text: line, Image: pendingImage}

		sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		sp.Suffix = " Analyzing your symptoms..."
		sp.Start()
		result, err := pipeline.Submit(ctx, input)
		sp.Stop()

		if err != nil {
			fmt.Fprintf(c.Root().Writer, "error: %s\n", err)
			continue
		}

		printResult(c, result)
		if result.ClearImage {
			pendingImage = nil
		}
	}

	return nil
}

func printResult(c *cli.Command, result *chat.SubmitResult) {
	if result.TextErr != nil {
		fmt.Fprintf(c.Root().Writer, "text analysis failed (your message is kept, send again to retry): %s\n", result.TextErr)
	}
	if result.ImageErr != nil {
		fmt.Fprintf(c.Root().Writer, "image analysis failed (image is kept, it is retried with your next message): %s\n", result.ImageErr)
	}
	if result.Status == chat.StatusFailed {
		return
	}

	fmt.Fprintf(c.Root().Writer, "\n%s\n\n", result.Turn.AIText)
	if !result.Saved {
		fmt.Fprintf(c.Root().Writer, "note: the response was generated but could not be saved (%s); saving is retried with your next message\n", result.PersistErr)
	}
}

func printTurn(c *cli.Command, t *model.Turn) {
	if t.UserText != "" {
		fmt.Fprintf(c.Root().Writer, "> %s\n", t.UserText)
	} else if t.ImageRef != "" {
		fmt.Fprintf(c.Root().Writer, "> [image: %s]\n", t.ImageRef)
	}
	fmt.Fprintf(c.Root().Writer, "%s\n\n", t.AIText)
}

func loadImage(path string) (*model.ImageInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read file", goerr.V("path", path))
	}
	return &model.ImageInput{
		Data:     data,
		MIMEType: http.DetectContentType(data),
	}, nil
}
