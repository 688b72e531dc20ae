package connection

// conversationSet is an insertion-ordered set of conversation IDs.
// A re-add after a remove moves the ID to the end.
type conversationSet struct {
	order []string
	index map[string]struct{}
}

func newConversationSet() *conversationSet {
	return &conversationSet{index: make(map[string]struct{})}
}

// add returns false if id was already a member.
func (s *conversationSet) add(id string) bool {
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// remove returns false if id was not a member.
func (s *conversationSet) remove(id string) bool {
	if _, ok := s.index[id]; !ok {
		return false
	}
	delete(s.index, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *conversationSet) contains(id string) bool {
	_, ok := s.index[id]
	return ok
}

func (s *conversationSet) len() int {
	return len(s.order)
}

// list returns a copy in issue order.
func (s *conversationSet) list() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
