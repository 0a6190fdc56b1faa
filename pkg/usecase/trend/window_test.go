package trend_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/karte-health/karte/pkg/model"
	"github.com/karte-health/karte/pkg/usecase/trend"
)

func TestWindowBounds(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)

	start, end := trend.Window(model.WindowWeek, now)
	// The day exactly 7 days before now still belongs to the 7-day window
	gt.Value(t, start).Equal(time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC))
	gt.Value(t, end).Equal(now)

	start, _ = trend.Window(model.WindowMonth, now)
	gt.Value(t, start).Equal(time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC))
}

func TestBucketByDayDeduplicates(t *testing.T) {
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	events := []*model.SymptomEvent{
		{OccurredAt: day.Add(8 * time.Hour), RawText: "Fever"},
		{OccurredAt: day.Add(12 * time.Hour), RawText: " fever "},
		{OccurredAt: day.Add(18 * time.Hour), RawText: "Headache"},
	}

	buckets := trend.BucketByDay(events, day, day.Add(24*time.Hour))
	gt.Array(t, buckets).Length(1)
	gt.Value(t, buckets[0].Day).Equal(model.Day("2024-03-10"))
	// "Fever" and " fever " collapse to one normalized symptom
	gt.Array(t, buckets[0].Symptoms).Equal([]string{"fever", "headache"})
}

func TestBucketByDayWindowBoundary(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	start, end := trend.Window(model.WindowWeek, now)

	events := []*model.SymptomEvent{
		// Exactly 7 days before now: still part of the 7-day window
		{OccurredAt: time.Date(2024, 3, 3, 10, 0, 0, 0, time.UTC), RawText: "inside lower bound"},
		{OccurredAt: time.Date(2024, 3, 2, 23, 59, 59, 0, time.UTC), RawText: "outside lower bound"},
		{OccurredAt: time.Date(2024, 3, 10, 11, 0, 0, 0, time.UTC), RawText: "today"},
		{OccurredAt: time.Date(2024, 3, 10, 13, 0, 0, 0, time.UTC), RawText: "after now"},
	}

	buckets := trend.BucketByDay(events, start, end)
	gt.Array(t, buckets).Length(2)
	gt.Value(t, buckets[0].Day).Equal(model.Day("2024-03-03"))
	gt.Array(t, buckets[0].Symptoms).Equal([]string{"inside lower bound"})
	gt.Value(t, buckets[1].Day).Equal(model.Day("2024-03-10"))
	gt.Array(t, buckets[1].Symptoms).Equal([]string{"today"})
}

func TestBucketByDaySkipsBlankText(t *testing.T) {
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	events := []*model.SymptomEvent{
		{OccurredAt: day.Add(time.Hour), RawText: "   "},
	}

	buckets := trend.BucketByDay(events, day, day.Add(24*time.Hour))
	gt.Array(t, buckets).Length(0)
}

func TestBucketByDaySortedAscending(t *testing.T) {
	events := []*model.SymptomEvent{
		{OccurredAt: time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC), RawText: "cough"},
		{OccurredAt: time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC), RawText: "fever"},
		{OccurredAt: time.Date(2024, 3, 8, 10, 0, 0, 0, time.UTC), RawText: "chills"},
	}

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	buckets := trend.BucketByDay(events, start, end)
	gt.Array(t, buckets).Length(3)
	gt.Value(t, buckets[0].Day).Equal(model.Day("2024-03-07"))
	gt.Value(t, buckets[1].Day).Equal(model.Day("2024-03-08"))
	gt.Value(t, buckets[2].Day).Equal(model.Day("2024-03-09"))
}
