package purge

// Predicate selects the messages a purge should remove
type Predicate func(Message) bool

// All matches every message
func All() Predicate {
	return func(Message) bool { return true }
}

// ByAuthor matches messages written by any of the given users
func ByAuthor(ids ...string) Predicate {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(m Message) bool {
		_, ok := set[m.AuthorID]
		return ok
	}
}

// Bots matches messages written by bot accounts
func Bots() Predicate {
	return func(m Message) bool { return m.AuthorBot }
}

// Unpinned matches messages that are not pinned
func Unpinned() Predicate {
	return func(m Message) bool { return !m.Pinned }
}

// And matches when every predicate matches
func And(preds ...Predicate) Predicate {
	return func(m Message) bool {
		for _, p := range preds {
			if p != nil && !p(m) {
				return false
			}
		}
		return true
	}
}
