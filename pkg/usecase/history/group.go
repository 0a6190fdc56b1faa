package history

import (
	"sort"
	"time"

	"github.com/karte-health/karte/pkg/model"
)

// untitledSession is the display fallback for sessions whose turns carry no title
const untitledSession = "Untitled Chat"

// SummaryEntry is one summary record within a session group
type SummaryEntry struct {
	Summary   string
	CreatedAt time.Time
}

// Group is the per-session summary view: title plus entries ascending by
// creation time
type Group struct {
	Title   string
	Entries []SummaryEntry
}

// GroupBySession groups flat persisted turn records by session. A session
// with no titled turn gets the "Untitled Chat" fallback; within each group
// entries are sorted ascending by creation time.
func GroupBySession(turns []*model.Turn) map[model.SessionID]*Group {
	groups := make(map[model.SessionID]*Group)

	for _, t := range turns {
		g, ok := groups[t.SessionID]
		if !ok {
			g = &Group{Title: untitledSession}
			groups[t.SessionID] = g
		}
		if t.Title != "" && g.Title == untitledSession {
			g.Title = t.Title
		}
		g.Entries = append(g.Entries, SummaryEntry{
			Summary:   t.AISummary,
			CreatedAt: t.CreatedAt,
		})
	}

	for _, g := range groups {
		sort.Slice(g.Entries, func(i, j int) bool {
			return g.Entries[i].CreatedAt.Before(g.Entries[j].CreatedAt)
		})
	}

	return groups
}

// SortForDisplay orders session IDs for presentation. The active session is
// always pinned first so the list does not reshuffle mid-conversation; the
// rest are ordered by their most recent entry, descending. Sessions with no
// entries sort as if most recent.
func SortForDisplay(groups map[model.SessionID]*Group, active model.SessionID) []model.SessionID {
	ids := make([]model.SessionID, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}

	sort.SliceStable(ids, func(i, j int) bool {
		if ids[i] == active {
			return true
		}
		if ids[j] == active {
			return false
		}

		gi, gj := groups[ids[i]], groups[ids[j]]
		emptyI := gi == nil || len(gi.Entries) == 0
		emptyJ := gj == nil || len(gj.Entries) == 0
		if emptyI != emptyJ {
			// Empty sessions are newly created; they sort as most recent
			return emptyI
		}
		if emptyI {
			// Session IDs are time-prefixed, so this is newest-first
			return ids[i] > ids[j]
		}
		last := func(g *Group) time.Time { return g.Entries[len(g.Entries)-1].CreatedAt }
		return last(gi).After(last(gj))
	})

	return ids
}
