package chat_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/karte-health/karte/pkg/model"
	"github.com/karte-health/karte/pkg/repository"
	"github.com/karte-health/karte/pkg/usecase/chat"
)

type mockDiagnoser struct {
	analyzeFunc func(ctx context.Context, symptom string, conditions, priorSummaries []string) (string, error)
	mu          sync.Mutex
	calls       int
}

func (m *mockDiagnoser) Analyze(ctx context.Context, symptom string, conditions, priorSummaries []string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.analyzeFunc != nil {
		return m.analyzeFunc(ctx, symptom, conditions, priorSummaries)
	}
	return "diagnosis for " + symptom, nil
}

func (m *mockDiagnoser) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockImageAnalyzer struct {
	analyzeFunc func(ctx context.Context, data []byte, mimeType string) (string, error)
}

func (m *mockImageAnalyzer) Analyze(ctx context.Context, data []byte, mimeType string) (string, error) {
	if m.analyzeFunc != nil {
		return m.analyzeFunc(ctx, data, mimeType)
	}
	return "image analysis", nil
}

type mockSummarizer struct {
	summarizeFunc func(ctx context.Context, diagnosis string) (*model.TurnSummary, error)
}

func (m *mockSummarizer) Summarize(ctx context.Context, diagnosis string) (*model.TurnSummary, error) {
	if m.summarizeFunc != nil {
		return m.summarizeFunc(ctx, diagnosis)
	}
	return &model.TurnSummary{Title: "Test Title", Summary: "short summary"}, nil
}

func newTestPipeline(repo repository.HistoryStore) (*chat.Pipeline, *chat.Store) {
	store := chat.NewStore(repo, "user-1")
	store.StartSession()
	p := chat.NewPipeline(chat.PipelineInput{
		Store:   store,
		Repo:    repo,
		Diag:    &mockDiagnoser{},
		Image:   &mockImageAnalyzer{},
		Summary: &mockSummarizer{},
	})
	return p, store
}

func TestSubmitTextOnly(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	p, store := newTestPipeline(repo)

	result, err := p.Submit(ctx, &model.TurnInput{Text: "I have a headache"})
	gt.NoError(t, err)
	gt.Value(t, result.Status).Equal(chat.StatusSuccess)
	gt.True(t, result.Saved)
	gt.True(t, result.ClearText)
	gt.False(t, result.ClearImage)
	gt.S(t, result.Turn.AIText).Contains("diagnosis for I have a headache")
	gt.Value(t, result.Turn.Title).Equal("Test Title")

	saved, err := repo.ListTurnsBySession(ctx, "user-1", store.SessionID())
	gt.NoError(t, err)
	gt.Array(t, saved).Length(1)
	gt.Number(t, saved[0].Seq).Equal(0)

	// Submission also records a symptom event for trend analysis
	events, err := repo.ListSymptomEventsSince(ctx, "user-1", time.Time{})
	gt.NoError(t, err)
	gt.Array(t, events).Length(1)
	gt.Value(t, events[0].RawText).Equal("I have a headache")
}

func TestSubmitEmptyInput(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(repository.NewMemory())

	_, err := p.Submit(ctx, &model.TurnInput{Text: "   "})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrEmptySubmission))
}

func TestSubmitSequenceIsGapFree(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	p, store := newTestPipeline(repo)

	for i := 0; i < 5; i++ {
		result, err := p.Submit(ctx, &model.TurnInput{Text: "symptom"})
		gt.NoError(t, err)
		gt.True(t, result.Saved)
	}

	saved, err := repo.ListTurnsBySession(ctx, "user-1", store.SessionID())
	gt.NoError(t, err)
	gt.Array(t, saved).Length(5)
	for i, turn := range saved {
		gt.Number(t, turn.Seq).Equal(i)
	}
}

func TestSubmitPartialSuccessImageFailed(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	store := chat.NewStore(repo, "user-1")
	store.StartSession()

	p := chat.NewPipeline(chat.PipelineInput{
		Store: store,
		Repo:  repo,
		Diag:  &mockDiagnoser{},
		Image: &mockImageAnalyzer{
			analyzeFunc: func(ctx context.Context, data []byte, mimeType string) (string, error) {
				return "", errors.New("vision model unavailable")
			},
		},
		Summary: &mockSummarizer{},
	})

	result, err := p.Submit(ctx, &model.TurnInput{
		Text:  "rash on arm",
		Image: &model.ImageInput{Data: []byte{0x1}, MIMEType: "image/png"},
	})
	gt.NoError(t, err)
	gt.Value(t, result.Status).Equal(chat.StatusPartial)
	gt.True(t, result.Saved)
	gt.Error(t, result.ImageErr)
	gt.NoError(t, result.TextErr)

	// The text half survives; the failed image input is kept for retry
	gt.True(t, result.ClearText)
	gt.False(t, result.ClearImage)
	gt.S(t, result.Turn.AIText).Contains("diagnosis for rash on arm")
	gt.False(t, strings.Contains(result.Turn.AIText, "Image Analysis"))
}

func TestSubmitPartialSuccessTextFailed(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	store := chat.NewStore(repo, "user-1")
	store.StartSession()

	p := chat.NewPipeline(chat.PipelineInput{
		Store: store,
		Repo:  repo,
		Diag: &mockDiagnoser{
			analyzeFunc: func(ctx context.Context, symptom string, conditions, priorSummaries []string) (string, error) {
				return "", errors.New("text model unavailable")
			},
		},
		Image:   &mockImageAnalyzer{},
		Summary: &mockSummarizer{},
	})

	result, err := p.Submit(ctx, &model.TurnInput{
		Text:  "rash on arm",
		Image: &model.ImageInput{Data: []byte{0x1}, MIMEType: "image/png"},
	})
	gt.NoError(t, err)
	gt.Value(t, result.Status).Equal(chat.StatusPartial)
	gt.True(t, result.Saved)
	gt.Error(t, result.TextErr)
	gt.False(t, result.ClearText)
	gt.True(t, result.ClearImage)
	gt.Value(t, result.Turn.AIText).Equal("image analysis")

	// A failed text branch leaves no user text and no symptom event
	gt.Value(t, result.Turn.UserText).Equal("")
	events, err := repo.ListSymptomEventsSince(ctx, "user-1", time.Time{})
	gt.NoError(t, err)
	gt.Array(t, events).Length(0)
}

func TestSubmitBothBranchesFailed(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	store := chat.NewStore(repo, "user-1")
	store.StartSession()

	p := chat.NewPipeline(chat.PipelineInput{
		Store: store,
		Repo:  repo,
		Diag: &mockDiagnoser{
			analyzeFunc: func(ctx context.Context, symptom string, conditions, priorSummaries []string) (string, error) {
				return "", errors.New("down")
			},
		},
		Image: &mockImageAnalyzer{
			analyzeFunc: func(ctx context.Context, data []byte, mimeType string) (string, error) {
				return "", errors.New("down")
			},
		},
		Summary: &mockSummarizer{},
	})

	result, err := p.Submit(ctx, &model.TurnInput{
		Text:  "fever",
		Image: &model.ImageInput{Data: []byte{0x1}, MIMEType: "image/png"},
	})
	gt.NoError(t, err)
	gt.Value(t, result.Status).Equal(chat.StatusFailed)
	gt.False(t, result.ClearText)
	gt.False(t, result.ClearImage)

	// Nothing is persisted when no branch produced a result
	saved, err := repo.ListTurnsBySession(ctx, "user-1", store.SessionID())
	gt.NoError(t, err)
	gt.Array(t, saved).Length(0)
}

func TestSubmitGeneratedButNotSaved(t *testing.T) {
	ctx := context.Background()
	repo := &flakyStore{Memory: repository.NewMemory(), failPut: true}
	p, _ := newTestPipeline(repo)

	result, err := p.Submit(ctx, &model.TurnInput{Text: "fever"})
	gt.NoError(t, err)
	gt.Value(t, result.Status).Equal(chat.StatusSuccess)

	// The AI output is still surfaced even though persistence failed
	gt.False(t, result.Saved)
	gt.Error(t, result.PersistErr)
	gt.True(t, errors.Is(result.PersistErr, model.ErrPersistence))
	gt.S(t, result.Turn.AIText).Contains("diagnosis for fever")
}

func TestSubmitResyncsPendingTurns(t *testing.T) {
	ctx := context.Background()
	repo := &flakyStore{Memory: repository.NewMemory(), failPut: true}
	p, store := newTestPipeline(repo)

	first, err := p.Submit(ctx, &model.TurnInput{Text: "fever"})
	gt.NoError(t, err)
	gt.False(t, first.Saved)
	gt.True(t, store.Unsynced())

	// Once the backend recovers, the next submission flushes the pending
	// turn before its own, keeping the stored sequence gap free
	repo.failPut = false
	second, err := p.Submit(ctx, &model.TurnInput{Text: "still feverish"})
	gt.NoError(t, err)
	gt.True(t, second.Saved)
	gt.False(t, store.Unsynced())

	saved, err := repo.ListTurnsBySession(ctx, "user-1", store.SessionID())
	gt.NoError(t, err)
	gt.Array(t, saved).Length(2)
	gt.Number(t, saved[0].Seq).Equal(0)
	gt.Value(t, saved[0].UserText).Equal("fever")
	gt.Number(t, saved[1].Seq).Equal(1)
	gt.Value(t, saved[1].UserText).Equal("still feverish")
}

func TestSubmitRejectedWhileInFlight(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	store := chat.NewStore(repo, "user-1")
	store.StartSession()

	started := make(chan struct{})
	finish := make(chan struct{})
	var startOnce sync.Once

	p := chat.NewPipeline(chat.PipelineInput{
		Store: store,
		Repo:  repo,
		Diag: &mockDiagnoser{
			analyzeFunc: func(ctx context.Context, symptom string, conditions, priorSummaries []string) (string, error) {
				// Only the first call blocks; later submissions run freely
				startOnce.Do(func() {
					close(started)
					<-finish
				})
				return "slow diagnosis", nil
			},
		},
		Image:   &mockImageAnalyzer{},
		Summary: &mockSummarizer{},
	})

	done := make(chan error, 1)
	go func() {
		_, err := p.Submit(ctx, &model.TurnInput{Text: "first"})
		done <- err
	}()

	<-started
	_, err := p.Submit(ctx, &model.TurnInput{Text: "second"})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrSubmissionInFlight))

	close(finish)
	gt.NoError(t, <-done)

	// Once the first submission is done, the session accepts input again
	result, err := p.Submit(ctx, &model.TurnInput{Text: "third"})
	gt.NoError(t, err)
	gt.True(t, result.Saved)
}

func TestSubmitAttributedToCapturedSession(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	store := chat.NewStore(repo, "user-1")
	original := store.StartSession()

	inFlight := make(chan struct{})
	finish := make(chan struct{})

	p := chat.NewPipeline(chat.PipelineInput{
		Store: store,
		Repo:  repo,
		Diag: &mockDiagnoser{
			analyzeFunc: func(ctx context.Context, symptom string, conditions, priorSummaries []string) (string, error) {
				close(inFlight)
				<-finish
				return "late diagnosis", nil
			},
		},
		Image:   &mockImageAnalyzer{},
		Summary: &mockSummarizer{},
	})

	done := make(chan *chat.SubmitResult, 1)
	go func() {
		result, err := p.Submit(ctx, &model.TurnInput{Text: "slow symptom"})
		gt.NoError(t, err)
		done <- result
	}()

	// Switch to a new session while the submission is still running
	<-inFlight
	store.StartSession()
	close(finish)
	result := <-done

	gt.Value(t, result.SessionID).Equal(original)
	gt.True(t, result.Saved)

	// The turn landed in the session the user submitted from
	saved, err := repo.ListTurnsBySession(ctx, "user-1", original)
	gt.NoError(t, err)
	gt.Array(t, saved).Length(1)
	gt.Value(t, saved[0].SessionID).Equal(original)
	gt.S(t, saved[0].AIText).Contains("late diagnosis")

	current, err := repo.ListTurnsBySession(ctx, "user-1", store.SessionID())
	gt.NoError(t, err)
	gt.Array(t, current).Length(0)
}

func TestSubmitMergesTextAndImage(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	p, _ := newTestPipeline(repo)

	result, err := p.Submit(ctx, &model.TurnInput{
		Text:  "itchy skin",
		Image: &model.ImageInput{Data: []byte{0x1, 0x2}, MIMEType: "image/jpeg"},
	})
	gt.NoError(t, err)
	gt.Value(t, result.Status).Equal(chat.StatusSuccess)
	gt.S(t, result.Turn.AIText).Contains("diagnosis for itchy skin")
	gt.S(t, result.Turn.AIText).Contains("**Image Analysis:**")
	gt.S(t, result.Turn.AIText).Contains("image analysis")
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *memStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	return &memObject{store: s, key: key}, nil
}

type memObject struct {
	store *memStorage
	key   string
	buf   bytes.Buffer
}

func (o *memObject) Write(p []byte) (int, error) { return o.buf.Write(p) }

func (o *memObject) Close() error {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	if o.store.objects == nil {
		o.store.objects = make(map[string][]byte)
	}
	o.store.objects[o.key] = o.buf.Bytes()
	return nil
}

func TestSubmitUploadsImage(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	store := chat.NewStore(repo, "user-1")
	sessionID := store.StartSession()
	objects := &memStorage{}

	p := chat.NewPipeline(chat.PipelineInput{
		Store:   store,
		Repo:    repo,
		Diag:    &mockDiagnoser{},
		Image:   &mockImageAnalyzer{},
		Summary: &mockSummarizer{},
		Storage: objects,
	})

	data := []byte{0xff, 0xd8, 0xff}
	result, err := p.Submit(ctx, &model.TurnInput{
		Image: &model.ImageInput{Data: data, MIMEType: "image/jpeg"},
	})
	gt.NoError(t, err)
	gt.Value(t, result.Status).Equal(chat.StatusSuccess)

	// The turn references the uploaded object, scoped under its session
	prefix := "images/" + string(sessionID) + "/"
	gt.S(t, result.Turn.ImageRef).Contains(prefix)
	gt.Equal(t, objects.objects[result.Turn.ImageRef], data)
}

func TestSubmitPassesPriorSummaries(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	store := chat.NewStore(repo, "user-1")
	store.StartSession()

	var got [][]string
	p := chat.NewPipeline(chat.PipelineInput{
		Store: store,
		Repo:  repo,
		Diag: &mockDiagnoser{
			analyzeFunc: func(ctx context.Context, symptom string, conditions, priorSummaries []string) (string, error) {
				got = append(got, priorSummaries)
				return "d", nil
			},
		},
		Image:   &mockImageAnalyzer{},
		Summary: &mockSummarizer{},
	})

	_, err := p.Submit(ctx, &model.TurnInput{Text: "first"})
	gt.NoError(t, err)
	_, err = p.Submit(ctx, &model.TurnInput{Text: "second"})
	gt.NoError(t, err)

	gt.Array(t, got).Length(2)
	gt.Array(t, got[0]).Length(0)
	gt.Array(t, got[1]).Length(1)
	gt.Value(t, got[1][0]).Equal("short summary")
}
