package reminder

import (
	"errors"
	"sync"
)

// ErrNotSubscribed is returned by operations that require an active
// subscription for the chat.
var ErrNotSubscribed = errors.New("chat is not subscribed")

// Registry owns all mutable per-chat reminder state: subscriptions,
// mention opt-in sets, and the set of chats awaiting a free-text time.
//
// It is shared between the command dispatcher and the scheduler tick; one
// mutex covers all three containers (chat counts are small) and no caller
// ever receives a reference into internal storage.
type Registry struct {
	mu      sync.Mutex
	subs    map[int64]ChatSubscription
	members map[int64]map[int64]struct{}
	pending map[int64]struct{}

	// changed carries a coalesced "something mutated" signal for the
	// persistence loop. Buffered size 1; extra signals are dropped.
	changed chan struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		subs:    map[int64]ChatSubscription{},
		members: map[int64]map[int64]struct{}{},
		pending: map[int64]struct{}{},
		changed: make(chan struct{}, 1),
	}
}

// Changed signals after any mutation that affects the persisted snapshot.
func (r *Registry) Changed() <-chan struct{} { return r.changed }

func (r *Registry) notifyLocked() {
	select {
	case r.changed <- struct{}{}:
	default:
	}
}

// Get returns a copy of the chat's subscription, if any.
func (r *Registry) Get(chatID int64) (ChatSubscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[chatID]
	return sub, ok
}

// Subscribe creates (or resets) the chat's record to defaults with an
// empty member set. Re-invoking is the documented way to reset a chat.
func (r *Registry) Subscribe(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[chatID] = NewChatSubscription()
	r.members[chatID] = map[int64]struct{}{}
	delete(r.pending, chatID)
	r.notifyLocked()
}

// Unsubscribe marks the chat inactive and clears any pending time entry.
// The record itself is kept; only eviction removes it.
func (r *Registry) Unsubscribe(chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[chatID]
	if !ok {
		return ErrNotSubscribed
	}
	sub.Subscribed = false
	r.subs[chatID] = sub
	delete(r.pending, chatID)
	r.notifyLocked()
	return nil
}

// Remove evicts the chat entirely: subscription, member set, pending state.
func (r *Registry) Remove(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, chatID)
	delete(r.members, chatID)
	delete(r.pending, chatID)
	r.notifyLocked()
}

// ListSubscribed returns copies of all active subscriptions, unordered.
func (r *Registry) ListSubscribed() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.subs))
	for id, sub := range r.subs {
		if sub.Subscribed {
			out = append(out, Entry{ChatID: id, Sub: sub})
		}
	}
	return out
}

// CountSubscribed returns the number of active subscriptions system-wide.
func (r *Registry) CountSubscribed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, sub := range r.subs {
		if sub.Subscribed {
			n++
		}
	}
	return n
}

// AddMember opts the user into mentions. Set semantics: adding twice is a
// no-op. Requires the chat to be actively subscribed.
func (r *Registry) AddMember(chatID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[chatID]
	if !ok || !sub.Subscribed {
		return ErrNotSubscribed
	}
	set := r.members[chatID]
	if set == nil {
		set = map[int64]struct{}{}
		r.members[chatID] = set
	}
	set[userID] = struct{}{}
	return nil
}

// MemberIDs returns the opted-in member ids for the chat, unordered.
func (r *Registry) MemberIDs(chatID int64) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.members[chatID]
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// MemberCount returns the size of the chat's mention set.
func (r *Registry) MemberCount(chatID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members[chatID])
}

// SetPending marks the chat as awaiting a free-text HH:MM value. A fresh
// request supersedes any previous one implicitly.
func (r *Registry) SetPending(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[chatID] = struct{}{}
}

func (r *Registry) ClearPending(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, chatID)
}

func (r *Registry) IsPending(chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[chatID]
	return ok
}

// CommitTime stores the new fire time and leaves the pending state.
func (r *Registry) CommitTime(chatID int64, hour, minute int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[chatID]
	if !ok {
		return ErrNotSubscribed
	}
	sub.Hour = hour
	sub.Minute = minute
	r.subs[chatID] = sub
	delete(r.pending, chatID)
	r.notifyLocked()
	return nil
}

// MarkSent stamps the last successful send date. Returns false if the
// chat disappeared between the send and the stamp.
func (r *Registry) MarkSent(chatID int64, date string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[chatID]
	if !ok {
		return false
	}
	sub.LastSentDate = date
	r.subs[chatID] = sub
	r.notifyLocked()
	return true
}

// Export copies the persisted view of the registry.
func (r *Registry) Export() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(Snapshot, len(r.subs))
	for id, sub := range r.subs {
		out[id] = sub
	}
	return out
}

// Restore replaces all subscriptions from a snapshot. Member sets start
// empty; users re-opt-in after a restart.
func (r *Registry) Restore(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = make(map[int64]ChatSubscription, len(snap))
	r.members = make(map[int64]map[int64]struct{}, len(snap))
	for id, sub := range snap {
		r.subs[id] = sub
		r.members[id] = map[int64]struct{}{}
	}
	r.pending = map[int64]struct{}{}
}
