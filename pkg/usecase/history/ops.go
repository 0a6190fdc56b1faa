package history

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/karte-health/karte/pkg/model"
	"github.com/karte-health/karte/pkg/repository"
)

// Rename updates a session's title across its persisted turns
func Rename(ctx context.Context, repo repository.HistoryStore, userID string, id model.SessionID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return goerr.New("title is empty", goerr.V("session_id", id))
	}
	return repo.RenameSession(ctx, userID, id, title)
}

// Delete removes a session and all its turns
func Delete(ctx context.Context, repo repository.HistoryStore, userID string, id model.SessionID) error {
	return repo.DeleteSession(ctx, userID, id)
}

// Load fetches all of a user's turns and groups them for display
func Load(ctx context.Context, repo repository.HistoryStore, userID string) (map[model.SessionID]*Group, error) {
	turns, err := repo.ListTurnsByUser(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load history")
	}
	return GroupBySession(turns), nil
}
