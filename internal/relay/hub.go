package relay

import (
	"sort"
	"sync"

	"github.com/rickgao/chat-realtime/internal/protocol"
)

// hub tracks live sessions and conversation membership.
type hub struct {
	mu       sync.RWMutex
	sessions map[*session]struct{}
	convs    map[string]map[*session]struct{}
}

func newHub() *hub {
	return &hub{
		sessions: make(map[*session]struct{}),
		convs:    make(map[string]map[*session]struct{}),
	}
}

func (h *hub) add(s *session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
}

// join returns false if s was already a member.
func (h *hub) join(s *session, conv string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.convs[conv]
	if !ok {
		members = make(map[*session]struct{})
		h.convs[conv] = members
	}
	if _, ok := members[s]; ok {
		return false
	}
	members[s] = struct{}{}
	return true
}

// leave returns false if s was not a member.
func (h *hub) leave(s *session, conv string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leaveLocked(s, conv)
}

func (h *hub) leaveLocked(s *session, conv string) bool {
	members, ok := h.convs[conv]
	if !ok {
		return false
	}
	if _, ok := members[s]; !ok {
		return false
	}
	delete(members, s)
	if len(members) == 0 {
		delete(h.convs, conv)
	}
	return true
}

func (h *hub) isMember(s *session, conv string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.convs[conv][s]
	return ok
}

// remove drops s from the hub and returns the conversations it was in.
func (h *hub) remove(s *session) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.sessions, s)
	var left []string
	for conv := range h.convs {
		if h.leaveLocked(s, conv) {
			left = append(left, conv)
		}
	}
	sort.Strings(left)
	return left
}

// broadcast queues f for every member of conv except skip. Returns the
// number of sessions it was queued for.
func (h *hub) broadcast(conv string, f protocol.Frame, skip *session) int {
	data, err := protocol.Encode(f)
	if err != nil {
		return 0
	}

	h.mu.RLock()
	members := make([]*session, 0, len(h.convs[conv]))
	for s := range h.convs[conv] {
		if s != skip {
			members = append(members, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range members {
		s.enqueue(data)
	}
	return len(members)
}

func (h *hub) all() []*session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		out = append(out, s)
	}
	return out
}

func (h *hub) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *hub) members(conv string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.convs[conv])
}
