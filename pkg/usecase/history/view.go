package history

import (
	"github.com/karte-health/karte/pkg/model"
)

// View is the in-memory sidebar state: grouped session summaries kept
// current between reloads. The pipeline pushes a new entry here after every
// persisted turn so the list stays live without a re-query.
type View struct {
	groups map[model.SessionID]*Group
}

func NewView() *View {
	return &View{groups: make(map[model.SessionID]*Group)}
}

// Reload rebuilds the view from flat persisted records, replacing all state
func (v *View) Reload(turns []*model.Turn) {
	v.groups = GroupBySession(turns)
}

// Add appends one summary entry to a session group, creating the group if
// needed. The first non-empty title sticks.
func (v *View) Add(id model.SessionID, title string, entry SummaryEntry) {
	g, ok := v.groups[id]
	if !ok {
		g = &Group{Title: untitledSession}
		v.groups[id] = g
	}
	if title != "" && g.Title == untitledSession {
		g.Title = title
	}
	g.Entries = append(g.Entries, entry)
}

// StartSession registers a fresh empty session so it shows up (pinned) in
// the list before any turn exists
func (v *View) StartSession(id model.SessionID) {
	if _, ok := v.groups[id]; !ok {
		v.groups[id] = &Group{Title: untitledSession}
	}
}

// Drop removes a session group
func (v *View) Drop(id model.SessionID) {
	delete(v.groups, id)
}

// Group returns one session group, or nil
func (v *View) Group(id model.SessionID) *Group {
	return v.groups[id]
}

// Ordered returns session IDs in display order with the active session
// pinned first
func (v *View) Ordered(active model.SessionID) []model.SessionID {
	return SortForDisplay(v.groups, active)
}
