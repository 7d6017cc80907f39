package registry

import "github.com/google/uuid"

// SubscriptionToken is the opaque handle returned by Store.Subscribe and
// accepted by Store.Unsubscribe (spec §3, §6.4).
type SubscriptionToken uuid.UUID

// StoreSubscriber is invoked synchronously, on the loop thread, from within
// Set (spec §3, §5 ordering guarantees).
type StoreSubscriber func(value interface{})

type subscription struct {
	token SubscriptionToken
	cb    StoreSubscriber
}

// Store holds one opaque value and an ordered list of subscribers. Stores
// are created independently of plugin instances and live until shutdown
// (spec §3).
//
// Value semantics (spec §9 "Store value semantics"): Set is expected to
// receive a value that will not be mutated afterwards by its caller — the
// scripting bridge is responsible for handing the store a copy of whatever
// the script produced (goja's Export already copies primitives; composite
// values are exported fresh on every call). The registry does not attempt
// to deep-copy interface{} itself.
type Store struct {
	value interface{}
	subs  []subscription
}

func newStore(initial interface{}) *Store {
	return &Store{value: initial}
}

// Get returns the current value.
func (s *Store) Get() interface{} {
	return s.value
}

// Set replaces the value and synchronously invokes every subscriber present
// at the time Set was called, in subscription order. A snapshot of the
// subscriber list is taken before any callback runs so that a callback may
// safely call Unsubscribe on its own token without corrupting the
// iteration (mirrors the source's Store::set behavior).
func (s *Store) Set(value interface{}) {
	s.value = value
	snapshot := make([]subscription, len(s.subs))
	copy(snapshot, s.subs)
	for _, sub := range snapshot {
		sub.cb(value)
	}
}

// Subscribe registers a subscriber and returns a token that can later be
// passed to Unsubscribe. New subscribers only observe values set after they
// subscribed (spec testable property 5).
func (s *Store) Subscribe(cb StoreSubscriber) SubscriptionToken {
	token := SubscriptionToken(uuid.New())
	s.subs = append(s.subs, subscription{token: token, cb: cb})
	return token
}

// Unsubscribe removes a subscriber. Unsubscribing an unknown or
// already-removed token is a no-op.
func (s *Store) Unsubscribe(token SubscriptionToken) {
	for i, sub := range s.subs {
		if sub.token == token {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}
