package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/karte-health/karte/pkg/adapter"
	"github.com/karte-health/karte/pkg/model"
	"github.com/karte-health/karte/pkg/repository"
	"github.com/karte-health/karte/pkg/service"
)

// config holds configuration values
type config struct {
	// User
	userID      string
	profilePath string

	// Repository
	project  string
	database string
	local    bool

	// Adapters
	groqAPIKey     string
	geminiProject  string
	geminiLocation string
	bucket         string

	// Logging
	logLevel string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "User ID owning the consultation history",
			Sources:     cli.EnvVars("KARTE_USER_ID"),
			Destination: &cfg.userID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "profile",
			Usage:       "Path to YAML profile with known conditions",
			Sources:     cli.EnvVars("KARTE_PROFILE"),
			Destination: &cfg.profilePath,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.BoolFlag{
			Name:        "local",
			Usage:       "Use an in-memory history store (contents are lost on exit)",
			Sources:     cli.EnvVars("KARTE_LOCAL"),
			Destination: &cfg.local,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("KARTE_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
	}
}

// llmFlags returns flags for AI backend configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "groq-api-key",
			Usage:       "Groq API key for the diagnosis backend",
			Sources:     cli.EnvVars("GROQ_API_KEY"),
			Destination: &cfg.groqAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for uploaded images (optional)",
			Sources:     cli.EnvVars("KARTE_IMAGE_BUCKET"),
			Destination: &cfg.bucket,
		},
	}
}

// newRepository creates the history store. Local mode uses an in-memory
// store, otherwise Firestore.
func (cfg *config) newRepository(ctx context.Context) (repository.HistoryStore, error) {
	if cfg.local {
		return repository.NewMemory(), nil
	}

	if cfg.project == "" {
		return nil, goerr.New("project is required (or use --local)")
	}
	if cfg.database == "" {
		return nil, goerr.New("database is required")
	}

	repo, err := repository.NewFirestore(ctx, cfg.project, cfg.database)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create repository")
	}
	return repo, nil
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation)
}

// newGroq creates a new Groq chat completion adapter
func (cfg *config) newGroq() (adapter.LLM, error) {
	if cfg.groqAPIKey == "" {
		return nil, goerr.New("groq-api-key is required")
	}
	return adapter.NewGroq(cfg.groqAPIKey), nil
}

// newStorage creates the image storage adapter; nil when no bucket is set
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.bucket == "" {
		return nil, nil
	}
	storage, err := adapter.NewStorage(ctx, cfg.bucket)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage")
	}
	return storage, nil
}

// newProfile loads the user profile with known conditions
func (cfg *config) newProfile() (*model.Profile, error) {
	return model.LoadProfile(cfg.profilePath)
}

// newScorer creates the criticality scoring service
func (cfg *config) newScorer(ctx context.Context) (*service.Criticality, error) {
	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		return nil, err
	}
	return service.NewCriticality(gemini), nil
}
