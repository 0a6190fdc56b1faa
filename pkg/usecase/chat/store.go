package chat

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/karte-health/karte/pkg/model"
	"github.com/karte-health/karte/pkg/repository"
)

// Store owns the in-memory state of the active conversation: the ordered
// turn list and the next sequence number. Persisted records are
// authoritative; Open replaces local state rather than merging.
type Store struct {
	repo   repository.HistoryStore
	userID string

	sessionID model.SessionID
	title     string
	turns     []*model.Turn
	nextSeq   int
	unsynced  []*model.Turn
}

func NewStore(repo repository.HistoryStore, userID string) *Store {
	return &Store{repo: repo, userID: userID}
}

// StartSession begins a fresh empty session and returns its ID
func (s *Store) StartSession() model.SessionID {
	s.sessionID = model.NewSessionID()
	s.title = ""
	s.turns = nil
	s.nextSeq = 0
	s.unsynced = nil
	return s.sessionID
}

// Open loads all turns of a session from the store, sorted by sequence, and
// makes it the active session. Local state is replaced, not merged.
func (s *Store) Open(ctx context.Context, id model.SessionID) ([]*model.Turn, error) {
	turns, err := s.repo.ListTurnsBySession(ctx, s.userID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load session", goerr.V("session_id", id))
	}

	s.sessionID = id
	s.turns = turns
	s.nextSeq = len(turns)
	s.unsynced = nil
	s.title = ""
	for _, t := range turns {
		if t.Title != "" {
			s.title = t.Title
			break
		}
	}

	return turns, nil
}

// Append assigns the next sequence number to the turn and persists it. On a
// persistence failure the turn stays in memory marked unsynced, so a later
// Resync can retry without losing it.
func (s *Store) Append(ctx context.Context, turn *model.Turn) (*model.Turn, error) {
	turn.UserID = s.userID
	turn.SessionID = s.sessionID
	turn.Seq = s.nextSeq
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	s.nextSeq++
	s.turns = append(s.turns, turn)

	if err := s.repo.PutTurn(ctx, turn); err != nil {
		s.unsynced = append(s.unsynced, turn)
		return turn, goerr.Wrap(err, "failed to persist turn",
			goerr.V("session_id", turn.SessionID), goerr.V("seq", turn.Seq))
	}

	return turn, nil
}

// Resync retries persisting turns that failed to save earlier, in order.
// It stops at the first turn that still cannot be saved.
func (s *Store) Resync(ctx context.Context) error {
	for len(s.unsynced) > 0 {
		turn := s.unsynced[0]
		if err := s.repo.PutTurn(ctx, turn); err != nil {
			return goerr.Wrap(err, "failed to resync turn", goerr.V("seq", turn.Seq))
		}
		s.unsynced = s.unsynced[1:]
	}
	return nil
}

// SessionID returns the active session ID
func (s *Store) SessionID() model.SessionID {
	return s.sessionID
}

// UserID returns the owning user of this store
func (s *Store) UserID() string {
	return s.userID
}

// Turns returns the in-memory turn list of the active session
func (s *Store) Turns() []*model.Turn {
	return s.turns
}

// Title returns the session title, empty until one is derived or loaded
func (s *Store) Title() string {
	return s.title
}

// SetTitleOnce records the first derived title for the session. Later calls
// are ignored; renames go through the repository instead.
func (s *Store) SetTitleOnce(title string) {
	if s.title == "" && title != "" {
		s.title = title
	}
}

// Unsynced reports whether any turn is waiting for a retry
func (s *Store) Unsynced() bool {
	return len(s.unsynced) > 0
}
