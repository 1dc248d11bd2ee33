package notify

// RecipientSet accumulates the identities notified during one user action.
// The sender is never a member.
type RecipientSet struct {
	sender string
	seen   map[string]struct{}
	order  []string
}

// NewRecipientSet returns an empty set that rejects senderID.
func NewRecipientSet(senderID string) *RecipientSet {
	return &RecipientSet{sender: senderID, seen: make(map[string]struct{})}
}

// Add inserts id and reports whether it was new. Empty IDs and the sender are rejected.
func (s *RecipientSet) Add(id string) bool {
	if id == "" || id == s.sender {
		return false
	}
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// AddAll inserts ids and returns the ones that were new, in input order.
func (s *RecipientSet) AddAll(ids []string) []string {
	added := make([]string, 0, len(ids))
	for _, id := range ids {
		if s.Add(id) {
			added = append(added, id)
		}
	}
	return added
}

// IDs returns members in insertion order.
func (s *RecipientSet) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of members.
func (s *RecipientSet) Len() int { return len(s.order) }
