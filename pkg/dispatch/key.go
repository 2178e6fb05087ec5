package dispatch

import (
	"fmt"
	"reflect"
	"sync"
)

// Fingerprint is an interned identity vector. Equal vectors interned in the
// same Cache always share a fingerprint; distinct vectors never do.
type Fingerprint uint64

// Key identifies a cached chain.
type Key struct {
	// Receiver is the concrete runtime type of the receiver.
	Receiver reflect.Type

	// Descriptor is the called method.
	Descriptor Descriptor

	// Identity fingerprints the ordered cache identities contributed by the
	// dispatcher's rules and state.
	Identity Fingerprint
}

// CacheKeyProvider is implemented by states whose shape is not fully
// described by their concrete type. The returned value joins the identity
// vector of every dispatcher built on the state and must be comparable.
type CacheKeyProvider interface {
	DispatchKey() any
}

// identityTable interns identity vectors as a trie of (parent, value) nodes.
// Fingerprints are never reused, so clearing the dispatch cache does not
// reset the table.
type identityTable struct {
	mu   sync.RWMutex
	ids  map[identityNode]Fingerprint
	next Fingerprint
}

type identityNode struct {
	parent Fingerprint
	value  any
}

// intern returns the fingerprint of values. The empty vector is 0.
func (t *identityTable) intern(values []any) (Fingerprint, error) {
	var fp Fingerprint
	for _, v := range values {
		if v == nil || !reflect.TypeOf(v).Comparable() {
			return 0, fmt.Errorf("%w: cache identity of type %T is not comparable", ErrInvalidConfig, v)
		}
		fp = t.child(fp, v)
	}
	return fp, nil
}

func (t *identityTable) child(parent Fingerprint, v any) Fingerprint {
	n := identityNode{parent: parent, value: v}

	t.mu.RLock()
	id, ok := t.ids[n]
	t.mu.RUnlock()
	if ok {
		return id
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.ids[n]; ok {
		return id
	}
	if t.ids == nil {
		t.ids = make(map[identityNode]Fingerprint)
	}
	t.next++
	t.ids[n] = t.next
	return t.next
}

func (t *identityTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.ids)
}
