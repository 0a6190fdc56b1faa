package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/karte-health/karte/pkg/adapter"
	"github.com/karte-health/karte/pkg/model"
	"github.com/karte-health/karte/pkg/repository"
	"github.com/karte-health/karte/pkg/usecase/history"
	"github.com/karte-health/karte/pkg/utils/logging"
)

// defaultCallTimeout bounds every external AI call so a hung upstream is
// treated as a failure instead of blocking the submission forever
const defaultCallTimeout = 30 * time.Second

// Diagnoser produces a free-text diagnosis from a symptom description
type Diagnoser interface {
	Analyze(ctx context.Context, symptom string, conditions, priorSummaries []string) (string, error)
}

// ImageAnalyzer produces a free-text analysis of an uploaded image
type ImageAnalyzer interface {
	Analyze(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Summarizer derives a title/summary pair from a diagnosis
type Summarizer interface {
	Summarize(ctx context.Context, diagnosis string) (*model.TurnSummary, error)
}

// Status is the terminal outcome of one submission
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial_success"
	StatusFailed  Status = "failed"
)

// SubmitResult enumerates what happened to each requested modality. A failed
// modality never discards the other one's result.
type SubmitResult struct {
	Status    Status
	SessionID model.SessionID
	Turn      *model.Turn

	// Saved is false when the AI produced a result but it could not be
	// persisted; the turn still carries the generated content.
	Saved      bool
	PersistErr error

	TextErr  error
	ImageErr error

	// ClearText / ClearImage tell the caller which input buffers to drop;
	// a failed modality's input is kept so the user can retry it.
	ClearText  bool
	ClearImage bool
}

// Pipeline turns one user submission into a persisted turn. Text and image
// branches run concurrently and are joined before the merge-and-persist step.
type Pipeline struct {
	store   *Store
	repo    repository.HistoryStore
	view    *history.View
	diag    Diagnoser
	image   ImageAnalyzer
	summary Summarizer
	storage adapter.Storage
	profile *model.Profile
	timeout time.Duration
	now     func() time.Time

	mu       sync.Mutex
	inFlight map[model.SessionID]bool
}

// PipelineInput contains dependencies for creating a Pipeline
type PipelineInput struct {
	Store   *Store
	Repo    repository.HistoryStore
	View    *history.View
	Diag    Diagnoser
	Image   ImageAnalyzer
	Summary Summarizer
	Storage adapter.Storage // optional; nil skips image upload
	Profile *model.Profile
	Timeout time.Duration    // defaults to 30s
	Clock   func() time.Time // defaults to time.Now
}

func NewPipeline(input PipelineInput) *Pipeline {
	p := &Pipeline{
		store:    input.Store,
		repo:     input.Repo,
		view:     input.View,
		diag:     input.Diag,
		image:    input.Image,
		summary:  input.Summary,
		storage:  input.Storage,
		profile:  input.Profile,
		timeout:  input.Timeout,
		now:      input.Clock,
		inFlight: make(map[model.SessionID]bool),
	}
	if p.timeout <= 0 {
		p.timeout = defaultCallTimeout
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.profile == nil {
		p.profile = &model.Profile{}
	}
	return p
}

// Submitting reports whether a submission is in flight for the session
func (p *Pipeline) Submitting(id model.SessionID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight[id]
}

type textOutcome struct {
	diagnosis string
	summary   *model.TurnSummary
	err       error
}

type imageOutcome struct {
	ref      string
	analysis string
	err      error
}

// Submit runs the full submission pipeline. The target session ID is
// captured by value here; a result arriving after the user switched sessions
// is still attributed to the session the submission was made in.
func (p *Pipeline) Submit(ctx context.Context, input *model.TurnInput) (*SubmitResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	sessionID := p.store.SessionID()
	if sessionID == "" {
		sessionID = p.store.StartSession()
	}

	if err := p.acquire(sessionID); err != nil {
		return nil, err
	}
	defer p.release(sessionID)

	// Flush turns that failed to persist earlier so the stored sequence
	// stays gap free before the new turn lands. A still-broken backend is
	// not fatal here; the pending turns just wait for the next submission.
	if p.store.SessionID() == sessionID && p.store.Unsynced() {
		if err := p.store.Resync(ctx); err != nil {
			logging.From(ctx).Warn("failed to resync pending turns", "error", err)
		}
	}

	priorSummaries := p.priorSummaries()

	var (
		wg  sync.WaitGroup
		txt textOutcome
		img imageOutcome
	)

	if input.HasText() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			txt = p.runTextBranch(ctx, input.Text, priorSummaries)
		}()
	}
	if input.HasImage() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			img = p.runImageBranch(ctx, sessionID, input.Image)
		}()
	}
	wg.Wait()

	return p.merge(ctx, sessionID, input, &txt, &img), nil
}

func (p *Pipeline) acquire(id model.SessionID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight[id] {
		return goerr.Wrap(model.ErrSubmissionInFlight, "submit rejected", goerr.V("session_id", id))
	}
	p.inFlight[id] = true
	return nil
}

func (p *Pipeline) release(id model.SessionID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, id)
}

func (p *Pipeline) priorSummaries() []string {
	var summaries []string
	for _, t := range p.store.Turns() {
		if t.AISummary != "" {
			summaries = append(summaries, t.AISummary)
		}
	}
	return summaries
}

func (p *Pipeline) runTextBranch(ctx context.Context, symptom string, priorSummaries []string) textOutcome {
	dctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	diagnosis, err := p.diag.Analyze(dctx, symptom, p.profile.Conditions, priorSummaries)
	if err != nil {
		return textOutcome{err: goerr.Wrap(err, "diagnosis failed")}
	}

	sctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	summary, err := p.summary.Summarize(sctx, diagnosis)
	if err != nil {
		return textOutcome{err: goerr.Wrap(err, "summary failed")}
	}

	return textOutcome{diagnosis: diagnosis, summary: summary}
}

func (p *Pipeline) runImageBranch(ctx context.Context, sessionID model.SessionID, image *model.ImageInput) imageOutcome {
	var ref string
	if p.storage != nil {
		key := fmt.Sprintf("images/%s/%d", sessionID, p.now().UnixNano())
		if err := p.uploadImage(ctx, key, image.Data); err != nil {
			return imageOutcome{err: goerr.Wrap(err, "image upload failed")}
		}
		ref = key
	}

	ictx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	analysis, err := p.image.Analyze(ictx, image.Data, image.MIMEType)
	if err != nil {
		return imageOutcome{err: goerr.Wrap(err, "image diagnosis failed")}
	}

	return imageOutcome{ref: ref, analysis: analysis}
}

func (p *Pipeline) uploadImage(ctx context.Context, key string, data []byte) error {
	w, err := p.storage.Put(ctx, key)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// merge concatenates whatever branches succeeded into one turn and persists
// it. Runs strictly after both branches settled.
func (p *Pipeline) merge(ctx context.Context, sessionID model.SessionID, input *model.TurnInput, txt *textOutcome, img *imageOutcome) *SubmitResult {
	result := &SubmitResult{
		SessionID:  sessionID,
		TextErr:    txt.err,
		ImageErr:   img.err,
		ClearText:  input.HasText() && txt.err == nil,
		ClearImage: input.HasImage() && img.err == nil,
	}

	textOK := input.HasText() && txt.err == nil
	imageOK := input.HasImage() && img.err == nil

	switch {
	case !textOK && !imageOK:
		result.Status = StatusFailed
		return result
	case txt.err != nil || img.err != nil:
		result.Status = StatusPartial
	default:
		result.Status = StatusSuccess
	}

	var aiText, aiSummary, title string
	if textOK {
		aiText = txt.diagnosis
		aiSummary = txt.summary.Summary
		title = txt.summary.Title
	}
	if imageOK {
		if aiText != "" {
			aiText += "\n\n**Image Analysis:**\n" + img.analysis
			aiSummary += "\n\n" + img.analysis
		} else {
			aiText = img.analysis
			aiSummary = img.analysis
		}
	}

	now := p.now()
	turn := &model.Turn{
		UserID:    p.store.UserID(),
		SessionID: sessionID,
		AIText:    aiText,
		AISummary: aiSummary,
		CreatedAt: now,
	}
	if textOK {
		turn.UserText = input.Text
	}
	if imageOK {
		turn.ImageRef = img.ref
	}

	result.Turn = turn
	result.Saved = true

	if p.store.SessionID() == sessionID {
		if p.store.Title() == "" && title != "" {
			p.store.SetTitleOnce(title)
		}
		turn.Title = p.store.Title()
		if _, err := p.store.Append(ctx, turn); err != nil {
			result.Saved = false
			result.PersistErr = err
		}
	} else {
		// The user opened a different session while this one was in flight.
		// Persist against the captured session, reconciling the sequence
		// number with the stored count.
		turn.Title = title
		if err := p.appendDetached(ctx, turn); err != nil {
			result.Saved = false
			result.PersistErr = err
		}
	}

	if result.Saved && textOK {
		event := &model.SymptomEvent{
			UserID:     p.store.UserID(),
			OccurredAt: now,
			RawText:    input.Text,
		}
		if err := p.repo.PutSymptomEvent(ctx, event); err != nil {
			logging.From(ctx).Warn("failed to record symptom event", "error", err)
		}
	}

	if p.view != nil && result.Saved {
		p.view.Add(sessionID, turn.Title, history.SummaryEntry{
			Summary:   aiSummary,
			CreatedAt: now,
		})
	}

	return result
}

func (p *Pipeline) appendDetached(ctx context.Context, turn *model.Turn) error {
	prior, err := p.repo.ListTurnsBySession(ctx, turn.UserID, turn.SessionID)
	if err != nil {
		return goerr.Wrap(err, "failed to reconcile sequence", goerr.V("session_id", turn.SessionID))
	}
	turn.Seq = len(prior)
	if err := p.repo.PutTurn(ctx, turn); err != nil {
		return goerr.Wrap(err, "failed to persist detached turn", goerr.V("session_id", turn.SessionID))
	}
	return nil
}
