package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/karte-health/karte/pkg/model"
)

// Memory implements HistoryStore in process memory. It backs local runs and
// tests; contents are lost on exit.
type Memory struct {
	mu     sync.Mutex
	turns  []*model.Turn
	events []*model.SymptomEvent
}

func NewMemory() *Memory {
	return &Memory{}
}

func (r *Memory) PutTurn(ctx context.Context, turn *model.Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *turn
	r.turns = append(r.turns, &copied)
	return nil
}

func (r *Memory) ListTurnsBySession(ctx context.Context, userID string, id model.SessionID) ([]*model.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var turns []*model.Turn
	for _, t := range r.turns {
		if t.UserID == userID && t.SessionID == id {
			copied := *t
			turns = append(turns, &copied)
		}
	}
	sort.Slice(turns, func(i, j int) bool { return turns[i].Seq < turns[j].Seq })
	return turns, nil
}

func (r *Memory) ListTurnsByUser(ctx context.Context, userID string) ([]*model.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var turns []*model.Turn
	for _, t := range r.turns {
		if t.UserID == userID {
			copied := *t
			turns = append(turns, &copied)
		}
	}
	sort.Slice(turns, func(i, j int) bool { return turns[i].CreatedAt.Before(turns[j].CreatedAt) })
	return turns, nil
}

func (r *Memory) DeleteSession(ctx context.Context, userID string, id model.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.turns[:0]
	for _, t := range r.turns {
		if !(t.UserID == userID && t.SessionID == id) {
			kept = append(kept, t)
		}
	}
	r.turns = kept
	return nil
}

func (r *Memory) RenameSession(ctx context.Context, userID string, id model.SessionID, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	found := false
	for _, t := range r.turns {
		if t.UserID == userID && t.SessionID == id {
			t.Title = title
			found = true
		}
	}
	if !found {
		return goerr.Wrap(model.ErrSessionNotFound, "no turns for session", goerr.V("session_id", id))
	}
	return nil
}

func (r *Memory) PutSymptomEvent(ctx context.Context, event *model.SymptomEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *event
	r.events = append(r.events, &copied)
	return nil
}

func (r *Memory) ListSymptomEventsSince(ctx context.Context, userID string, since time.Time) ([]*model.SymptomEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var events []*model.SymptomEvent
	for _, e := range r.events {
		if e.UserID == userID && !e.OccurredAt.Before(since) {
			copied := *e
			events = append(events, &copied)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].OccurredAt.Before(events[j].OccurredAt) })
	return events, nil
}
