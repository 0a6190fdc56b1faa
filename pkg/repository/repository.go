package repository

import (
	"context"
	"time"

	"github.com/karte-health/karte/pkg/model"
)

// HistoryStore defines the interface for consultation history persistence
type HistoryStore interface {
	// PutTurn appends a turn to the store
	PutTurn(ctx context.Context, turn *model.Turn) error

	// ListTurnsBySession retrieves all turns of a session, ordered by sequence
	ListTurnsBySession(ctx context.Context, userID string, id model.SessionID) ([]*model.Turn, error)

	// ListTurnsByUser retrieves all turns of a user across sessions
	ListTurnsByUser(ctx context.Context, userID string) ([]*model.Turn, error)

	// DeleteSession removes all turns of a session
	DeleteSession(ctx context.Context, userID string, id model.SessionID) error

	// RenameSession updates the title on all turns of a session
	RenameSession(ctx context.Context, userID string, id model.SessionID, title string) error

	// PutSymptomEvent records one free-text symptom submission
	PutSymptomEvent(ctx context.Context, event *model.SymptomEvent) error

	// ListSymptomEventsSince retrieves symptom events at or after since
	ListSymptomEventsSince(ctx context.Context, userID string, since time.Time) ([]*model.SymptomEvent, error)
}
