package trend

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/karte-health/karte/pkg/model"
	"github.com/karte-health/karte/pkg/repository"
	"github.com/karte-health/karte/pkg/utils/logging"
)

// emptyMonthReport is returned without an AI call when the 30-day window
// holds no events
const emptyMonthReport = "No symptoms recorded in the last 30 days."

// Scorer assigns criticality scores to day buckets
type Scorer interface {
	Score(ctx context.Context, buckets []model.DailyBucket) ([]model.DailyCriticality, error)
}

// Reporter generates a narrative report from scored data
type Reporter interface {
	Monthly(ctx context.Context, criticality []model.DailyCriticality) (string, error)
}

// Analyzer is the read-through layer in front of the window aggregator and
// the scoring service. A fresh cache hit short-circuits both the store query
// and the AI call; otherwise the full dataset is recomputed and stored as
// one replace-or-nothing entry.
type Analyzer struct {
	repo   repository.HistoryStore
	scorer Scorer
	report Reporter
	cache  *Cache
	now    func() time.Time
}

// AnalyzerInput contains dependencies for creating an Analyzer
type AnalyzerInput struct {
	Repo   repository.HistoryStore
	Scorer Scorer
	Report Reporter
	Cache  *Cache
	Clock  func() time.Time // defaults to time.Now
}

func NewAnalyzer(input AnalyzerInput) *Analyzer {
	a := &Analyzer{
		repo:   input.Repo,
		scorer: input.Scorer,
		report: input.Report,
		cache:  input.Cache,
		now:    input.Clock,
	}
	if a.cache == nil {
		a.cache = NewCache()
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Criticality returns the scored trend dataset for a user's window,
// recomputing only when no fresh cached entry exists.
func (a *Analyzer) Criticality(ctx context.Context, userID string, kind model.WindowKind) (*CacheEntry, error) {
	if entry, ok := a.cache.Lookup(userID, kind); ok {
		logging.From(ctx).Debug("trend cache hit", "user_id", userID, "window", kind)
		return entry, nil
	}

	start, end := Window(kind, a.now())
	events, err := a.repo.ListSymptomEventsSince(ctx, userID, start)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list symptom events", goerr.V("window", kind))
	}

	buckets := BucketByDay(events, start, end)
	if len(buckets) == 0 {
		entry := &CacheEntry{FetchedAt: a.now()}
		a.cache.Put(userID, kind, nil, nil)
		return entry, nil
	}

	report, err := a.scorer.Score(ctx, buckets)
	if err != nil {
		// Do not cache a half-computed dataset; the next access retries
		return nil, goerr.Wrap(err, "failed to score day buckets", goerr.V("window", kind))
	}

	a.cache.Put(userID, kind, buckets, report)
	entry, _ := a.cache.Get(userID, kind)
	return entry, nil
}

// MonthlyReport produces the narrative 30-day report. An empty window yields
// a fixed message without calling the AI.
func (a *Analyzer) MonthlyReport(ctx context.Context, userID string) (string, error) {
	entry, err := a.Criticality(ctx, userID, model.WindowMonth)
	if err != nil {
		return "", err
	}
	if len(entry.Report) == 0 {
		return emptyMonthReport, nil
	}

	text, err := a.report.Monthly(ctx, entry.Report)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate monthly report")
	}
	return text, nil
}
