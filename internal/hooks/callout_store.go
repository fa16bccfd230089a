package hooks

// calloutList holds one library's callouts for one hook.
//
// Removal never writes into an existing backing array; it builds a new one.
// Appends only write past the current length. Together this means a slice
// header taken at dispatch start keeps exactly the entries it had, whatever
// the running callouts register or deregister.
type calloutList []*Callout

func (l calloutList) add(c *Callout) calloutList {
	return append(l, c)
}

// remove drops every entry equal to c.
func (l calloutList) remove(c *Callout) (calloutList, bool) {
	kept := 0
	for _, entry := range l {
		if entry != c {
			kept++
		}
	}
	if kept == len(l) {
		return l, false
	}

	out := make(calloutList, 0, kept)
	for _, entry := range l {
		if entry != c {
			out = append(out, entry)
		}
	}
	return out, true
}

func (l calloutList) names() []string {
	out := make([]string, len(l))
	for i, c := range l {
		out[i] = c.Name()
	}
	return out
}

// calloutStore is indexed [hook][library]. Rows for hooks registered after
// the store was created are added on first write.
type calloutStore struct {
	numLibraries int
	lists        [][]calloutList
}

func newCalloutStore(numHooks, numLibraries int) *calloutStore {
	s := &calloutStore{numLibraries: numLibraries}
	s.grow(numHooks)
	return s
}

func (s *calloutStore) grow(numHooks int) {
	for len(s.lists) < numHooks {
		s.lists = append(s.lists, make([]calloutList, s.numLibraries))
	}
}

// list returns the live list. Callers that iterate it must not write to it.
func (s *calloutStore) list(hook, library int) calloutList {
	if hook >= len(s.lists) {
		return nil
	}
	return s.lists[hook][library]
}

func (s *calloutStore) add(hook, library int, c *Callout) {
	s.grow(hook + 1)
	s.lists[hook][library] = s.lists[hook][library].add(c)
}

func (s *calloutStore) remove(hook, library int, c *Callout) bool {
	if hook >= len(s.lists) {
		return false
	}
	updated, removed := s.lists[hook][library].remove(c)
	s.lists[hook][library] = updated
	return removed
}

// removeAll swaps in an empty list; running dispatches keep their header.
func (s *calloutStore) removeAll(hook, library int) bool {
	if hook >= len(s.lists) || len(s.lists[hook][library]) == 0 {
		return false
	}
	s.lists[hook][library] = nil
	return true
}

func (s *calloutStore) present(hook int) bool {
	if hook >= len(s.lists) {
		return false
	}
	for _, l := range s.lists[hook] {
		if len(l) > 0 {
			return true
		}
	}
	return false
}
