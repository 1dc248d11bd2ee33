// Package directory resolves mention handles against a snapshot of the user
// directory.
package directory

import (
	"strings"

	"github.com/anonto42/eyewitness/backend/internal/mentions"
	"github.com/anonto42/eyewitness/backend/internal/models"
)

// DefaultSuggestLimit caps the tag-user dropdown.
const DefaultSuggestLimit = 6

// Resolve finds the first entry whose display name or nickname equals handle,
// ignoring case. Partial matches never resolve.
func Resolve(handle string, entries []models.DirectoryEntry) (models.DirectoryEntry, bool) {
	if handle == "" {
		return models.DirectoryEntry{}, false
	}
	for _, e := range entries {
		if matches(handle, e.DisplayName) || matches(handle, e.Nickname) {
			return e, true
		}
	}
	return models.DirectoryEntry{}, false
}

func matches(handle, name string) bool {
	return name != "" && strings.EqualFold(handle, name)
}

// Handle is the alias autocomplete inserts for an entry: the nickname, else a
// single-word display name. It is empty when the entry cannot be mentioned.
func Handle(e models.DirectoryEntry) string {
	switch {
	case mentions.IsHandle(e.Nickname):
		return e.Nickname
	case mentions.IsHandle(e.DisplayName):
		return e.DisplayName
	default:
		return ""
	}
}

// Snapshot is a read-only copy of the directory taken for one compose-and-submit action.
type Snapshot struct {
	entries []models.DirectoryEntry
	byID    map[string]int
}

// New copies entries into a snapshot. Later changes to the slice are not observed.
func New(entries []models.DirectoryEntry) *Snapshot {
	s := &Snapshot{
		entries: make([]models.DirectoryEntry, len(entries)),
		byID:    make(map[string]int, len(entries)),
	}
	copy(s.entries, entries)
	for i, e := range s.entries {
		if _, dup := s.byID[e.ID]; !dup {
			s.byID[e.ID] = i
		}
	}
	return s
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Entries returns a copy of the entries in snapshot order.
func (s *Snapshot) Entries() []models.DirectoryEntry {
	if s == nil {
		return nil
	}
	out := make([]models.DirectoryEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Resolve looks a handle up in the snapshot.
func (s *Snapshot) Resolve(handle string) (models.DirectoryEntry, bool) {
	if s == nil {
		return models.DirectoryEntry{}, false
	}
	return Resolve(handle, s.entries)
}

// Lookup returns the entry with the given identity.
func (s *Snapshot) Lookup(id string) (models.DirectoryEntry, bool) {
	if s == nil {
		return models.DirectoryEntry{}, false
	}
	i, ok := s.byID[id]
	if !ok {
		return models.DirectoryEntry{}, false
	}
	return s.entries[i], true
}

// Suggest returns entries whose display name or nickname contains query,
// skipping identities in exclude. limit <= 0 uses DefaultSuggestLimit.
func (s *Snapshot) Suggest(query string, exclude map[string]struct{}, limit int) []models.DirectoryEntry {
	if s == nil {
		return nil
	}
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []models.DirectoryEntry{}
	}

	out := make([]models.DirectoryEntry, 0, limit)
	for _, e := range s.entries {
		if _, skip := exclude[e.ID]; skip {
			continue
		}
		if !strings.Contains(strings.ToLower(e.DisplayName), q) &&
			!strings.Contains(strings.ToLower(e.Nickname), q) {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out
}
