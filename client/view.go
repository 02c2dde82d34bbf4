package client

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"geopresence/domain"
)

// Entry is one row of the local view. Located is false for the synthesized
// self entry until the first position has been sent.
type Entry struct {
	domain.Participant
	Self    bool
	Located bool
}

// View returns the local view with the session's own entry first and the
// rest ordered by display name, then identifier.
func (s *Session) View() []Entry {
	s.mu.Lock()
	self := Entry{Participant: domain.Participant{ID: s.id, DisplayName: s.name}, Self: true}
	if s.self != nil {
		self.Participant = *s.self
		self.Located = true
	}
	others := make([]Entry, 0, len(s.others))
	for _, p := range s.others {
		others = append(others, Entry{Participant: p, Located: true})
	}
	s.mu.Unlock()

	collator := collate.New(language.Und)
	sort.Slice(others, func(i, j int) bool {
		if c := collator.CompareString(others[i].DisplayName, others[j].DisplayName); c != 0 {
			return c < 0
		}
		return others[i].ID < others[j].ID
	})
	return append([]Entry{self}, others...)
}

// Lookup returns the entry for id, if the view has one.
func (s *Session) Lookup(id string) (Entry, bool) {
	for _, e := range s.View() {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}
