package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"

	"github.com/karte-health/karte/pkg/model"
)

const (
	collectionTurns  = "turns"
	collectionEvents = "symptom_events"
)

// Firestore implements HistoryStore on Cloud Firestore
type Firestore struct {
	client *firestore.Client
}

// NewFirestore creates a Firestore-backed history store
func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}

	return &Firestore{client: client}, nil
}

// Close releases the underlying client
func (r *Firestore) Close() error {
	return r.client.Close()
}

func persistenceErr(err error, msg string, values ...goerr.Option) error {
	values = append(values, goerr.V("cause", err.Error()))
	return goerr.Wrap(model.ErrPersistence, msg, values...)
}

func (r *Firestore) PutTurn(ctx context.Context, turn *model.Turn) error {
	_, _, err := r.client.Collection(collectionTurns).Add(ctx, turn)
	if err != nil {
		return persistenceErr(err, "failed to put turn",
			goerr.V("session_id", turn.SessionID), goerr.V("seq", turn.Seq))
	}
	return nil
}

func (r *Firestore) ListTurnsBySession(ctx context.Context, userID string, id model.SessionID) ([]*model.Turn, error) {
	iter := r.client.Collection(collectionTurns).
		Where("UserID", "==", userID).
		Where("SessionID", "==", string(id)).
		OrderBy("Seq", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	return collectTurns(iter)
}

func (r *Firestore) ListTurnsByUser(ctx context.Context, userID string) ([]*model.Turn, error) {
	iter := r.client.Collection(collectionTurns).
		Where("UserID", "==", userID).
		OrderBy("CreatedAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	return collectTurns(iter)
}

func collectTurns(iter *firestore.DocumentIterator) ([]*model.Turn, error) {
	var turns []*model.Turn
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, persistenceErr(err, "failed to iterate turns")
		}

		var turn model.Turn
		if err := doc.DataTo(&turn); err != nil {
			return nil, persistenceErr(err, "failed to decode turn", goerr.V("doc", doc.Ref.ID))
		}
		turns = append(turns, &turn)
	}
	return turns, nil
}

func (r *Firestore) DeleteSession(ctx context.Context, userID string, id model.SessionID) error {
	refs, err := r.sessionRefs(ctx, userID, id)
	if err != nil {
		return err
	}

	bw := r.client.BulkWriter(ctx)
	for _, ref := range refs {
		if _, err := bw.Delete(ref); err != nil {
			return persistenceErr(err, "failed to delete turn", goerr.V("doc", ref.ID))
		}
	}
	bw.End()
	return nil
}

func (r *Firestore) RenameSession(ctx context.Context, userID string, id model.SessionID, title string) error {
	refs, err := r.sessionRefs(ctx, userID, id)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return goerr.Wrap(model.ErrSessionNotFound, "no turns for session", goerr.V("session_id", id))
	}

	bw := r.client.BulkWriter(ctx)
	for _, ref := range refs {
		update := []firestore.Update{{Path: "Title", Value: title}}
		if _, err := bw.Update(ref, update); err != nil {
			return persistenceErr(err, "failed to rename turn", goerr.V("doc", ref.ID))
		}
	}
	bw.End()
	return nil
}

func (r *Firestore) sessionRefs(ctx context.Context, userID string, id model.SessionID) ([]*firestore.DocumentRef, error) {
	iter := r.client.Collection(collectionTurns).
		Where("UserID", "==", userID).
		Where("SessionID", "==", string(id)).
		Documents(ctx)
	defer iter.Stop()

	var refs []*firestore.DocumentRef
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, persistenceErr(err, "failed to query session", goerr.V("session_id", id))
		}
		refs = append(refs, doc.Ref)
	}
	return refs, nil
}

func (r *Firestore) PutSymptomEvent(ctx context.Context, event *model.SymptomEvent) error {
	_, _, err := r.client.Collection(collectionEvents).Add(ctx, event)
	if err != nil {
		return persistenceErr(err, "failed to put symptom event")
	}
	return nil
}

func (r *Firestore) ListSymptomEventsSince(ctx context.Context, userID string, since time.Time) ([]*model.SymptomEvent, error) {
	iter := r.client.Collection(collectionEvents).
		Where("UserID", "==", userID).
		Where("OccurredAt", ">=", since).
		OrderBy("OccurredAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var events []*model.SymptomEvent
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, persistenceErr(err, "failed to iterate symptom events")
		}

		var event model.SymptomEvent
		if err := doc.DataTo(&event); err != nil {
			return nil, persistenceErr(err, "failed to decode symptom event", goerr.V("doc", doc.Ref.ID))
		}
		events = append(events, &event)
	}
	return events, nil
}
