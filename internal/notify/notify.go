// Package notify delivers settings-change events to subscribers.
//
// The lifecycle manager subscribes here to learn that a configuration
// key changed; hosts embedding lintstorm call Notify when their
// configuration store reports a change. Subscriptions are disposable:
// after Unsubscribe returns, the observer receives no further events.
package notify

import (
	"sync"
	"sync/atomic"
)

// Change describes one configuration change event.
type Change struct {
	// Key is the full option name, e.g. "lintstorm.args". Empty means
	// the whole configuration was reloaded.
	Key string

	// Scope is the workspace URI the change applies to. Empty means
	// every scope.
	Scope string

	// Source identifies where the change came from, for logging.
	Source string
}

// Observer is called for each delivered change.
type Observer func(Change)

// Subscription is an active observer registration.
type Subscription struct {
	id       uint64
	notifier *Notifier
	disposed atomic.Bool
}

// Unsubscribe removes the subscription. It is safe to call more than
// once; the observer is not invoked after the first call returns.
func (s *Subscription) Unsubscribe() {
	if s.disposed.Swap(true) {
		return
	}
	if s.notifier != nil {
		s.notifier.remove(s.id)
	}
}

type entry struct {
	sub      *Subscription
	observer Observer
	keys     map[string]struct{} // nil matches every key
}

// Notifier fans changes out to subscribers.
type Notifier struct {
	mu      sync.RWMutex
	entries map[uint64]*entry
	nextID  uint64
	closed  bool
}

// New creates an empty Notifier.
func New() *Notifier {
	return &Notifier{entries: make(map[uint64]*entry)}
}

// Subscribe registers an observer for every change.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	return n.add(observer, nil)
}

// SubscribeKeys registers an observer for changes to any of the given
// keys. Reload events (empty key) are always delivered.
func (n *Notifier) SubscribeKeys(keys []string, observer Observer) *Subscription {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return n.add(observer, set)
}

func (n *Notifier) add(observer Observer, keys map[string]struct{}) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	sub := &Subscription{id: id, notifier: n}
	n.entries[id] = &entry{sub: sub, observer: observer, keys: keys}
	return sub
}

// Notify delivers a change to all matching subscribers. Observers run
// synchronously, outside the registry lock.
func (n *Notifier) Notify(change Change) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return
	}
	matched := make([]*entry, 0, len(n.entries))
	for _, e := range n.entries {
		if e.keys != nil && change.Key != "" {
			if _, ok := e.keys[change.Key]; !ok {
				continue
			}
		}
		matched = append(matched, e)
	}
	n.mu.RUnlock()

	for _, e := range matched {
		// Re-check at call time so an Unsubscribe racing with
		// delivery wins.
		if e.sub.disposed.Load() {
			continue
		}
		e.observer(change)
	}
}

// Close drops every subscription. Further Notify calls are no-ops.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.entries = make(map[uint64]*entry)
}

func (n *Notifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.entries, id)
}
