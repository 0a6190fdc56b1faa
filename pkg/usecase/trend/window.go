package trend

import (
	"sort"
	"strings"
	"time"

	"github.com/karte-health/karte/pkg/model"
)

// Window returns the [start, end] bounds of a trend window ending at now.
// The window includes today and reaches back to the UTC midnight N days
// before now, so an event on the day exactly N days prior still counts.
// The boundary is inclusive on both ends.
func Window(kind model.WindowKind, now time.Time) (start, end time.Time) {
	end = now
	day := now.UTC().Truncate(24 * time.Hour)
	start = day.AddDate(0, 0, -kind.Days())
	return start, end
}

// BucketByDay filters events to [start, end] inclusive and groups them into
// UTC calendar-day buckets. Symptom texts are trimmed and lowercased before
// insertion, so each bucket's symptom set is already deduplicated. Days with
// no events are omitted; buckets come back ascending by day.
func BucketByDay(events []*model.SymptomEvent, start, end time.Time) []model.DailyBucket {
	byDay := make(map[model.Day]map[string]struct{})

	for _, e := range events {
		if e.OccurredAt.Before(start) || e.OccurredAt.After(end) {
			continue
		}
		symptom := strings.ToLower(strings.TrimSpace(e.RawText))
		if symptom == "" {
			continue
		}

		day := model.DayOf(e.OccurredAt)
		set, ok := byDay[day]
		if !ok {
			set = make(map[string]struct{})
			byDay[day] = set
		}
		set[symptom] = struct{}{}
	}

	buckets := make([]model.DailyBucket, 0, len(byDay))
	for day, set := range byDay {
		symptoms := make([]string, 0, len(set))
		for s := range set {
			symptoms = append(symptoms, s)
		}
		sort.Strings(symptoms)
		buckets = append(buckets, model.DailyBucket{Day: day, Symptoms: symptoms})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Day < buckets[j].Day })

	return buckets
}
