package story

// List is the ordered front-page sequence, newest first.
// It is replaced wholesale on refresh; the only in-place changes are
// Prepend (local add) and Remove (local delete).
type List struct {
	stories []Story
}

// NewList builds a List from stories already ordered newest first.
// POST: the List owns a copy of stories
func NewList(stories []Story) List {
	cp := make([]Story, len(stories))
	copy(cp, stories)
	return List{stories: cp}
}

// Stories returns a copy of the stories in display order.
func (l List) Stories() []Story {
	cp := make([]Story, len(l.stories))
	copy(cp, l.stories)
	return cp
}

// Len returns the number of loaded stories.
func (l List) Len() int {
	return len(l.stories)
}

// Get looks up a loaded story by ID.
func (l List) Get(id string) (Story, bool) {
	for _, s := range l.stories {
		if s.ID == id {
			return s, true
		}
	}
	return Story{}, false
}

// Prepend puts a freshly submitted story at the top of the list.
// POST: Stories()[0] == s
func (l *List) Prepend(s Story) {
	l.stories = append([]Story{s}, l.stories...)
}

// Remove drops the story with the given ID.
// POST: Returns true if a story was removed
func (l *List) Remove(id string) bool {
	for i, s := range l.stories {
		if s.ID == id {
			l.stories = append(l.stories[:i:i], l.stories[i+1:]...)
			return true
		}
	}
	return false
}

// IDSet is an insertion-ordered set of story identifiers.
// The zero value is an empty set ready to use.
type IDSet struct {
	order []string
	index map[string]struct{}
}

// NewIDSet builds a set from ids, dropping duplicates.
func NewIDSet(ids ...string) IDSet {
	var s IDSet
	for _, id := range ids {
		s = s.With(id)
	}
	return s
}

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Len returns the number of ids.
func (s IDSet) Len() int {
	return len(s.order)
}

// IDs returns ids in insertion order.
func (s IDSet) IDs() []string {
	cp := make([]string, len(s.order))
	copy(cp, s.order)
	return cp
}

// With returns a new set that also contains id, appended last.
// INVARIANT: the receiver is not mutated
func (s IDSet) With(id string) IDSet {
	if s.Has(id) {
		return s
	}
	next := IDSet{
		order: make([]string, 0, len(s.order)+1),
		index: make(map[string]struct{}, len(s.order)+1),
	}
	next.order = append(next.order, s.order...)
	next.order = append(next.order, id)
	for _, v := range next.order {
		next.index[v] = struct{}{}
	}
	return next
}

// WithFirst returns a new set with id placed first.
// INVARIANT: the receiver is not mutated
func (s IDSet) WithFirst(id string) IDSet {
	rest := s.Without(id)
	next := IDSet{
		order: append([]string{id}, rest.order...),
		index: make(map[string]struct{}, len(rest.order)+1),
	}
	for _, v := range next.order {
		next.index[v] = struct{}{}
	}
	return next
}

// Without returns a new set with id removed.
// INVARIANT: the receiver is not mutated
func (s IDSet) Without(id string) IDSet {
	if !s.Has(id) {
		return s
	}
	next := IDSet{
		order: make([]string, 0, len(s.order)-1),
		index: make(map[string]struct{}, len(s.order)-1),
	}
	for _, v := range s.order {
		if v == id {
			continue
		}
		next.order = append(next.order, v)
		next.index[v] = struct{}{}
	}
	return next
}
