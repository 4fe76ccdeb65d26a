package dispatch

import (
	"github.com/bluelightning32/Dirmi/dirmierr"
	"github.com/bluelightning32/Dirmi/wire"
)

// Invoker reads a call's arguments, invokes the target method, and writes
// the reply (or discards/raises per sync-vs-async rules). It is a
// precomputed invocation thunk closing over its method's own sync/async
// reply behavior, so dispatch never branches on method identity at call
// time.
type Invoker func(conn Connection, server interface{}) error

// DispatchEntry is one precomputed dispatch unit: a method's identity, its
// sync/async flag, and its invocation thunk.
type DispatchEntry struct {
	Method  RemoteMethod
	Ordinal int
	Invoke  Invoker
}

// MethodTable maps MethodID.Hash() to the (usually singleton) group of
// DispatchEntries sharing that hash, preserving RemoteInfo definition order
// within each group.
type MethodTable struct {
	entries []DispatchEntry  // dense, ordinal-indexed
	buckets map[uint32][]int // hash -> indices into entries
}

// NewMethodTable builds a MethodTable from ri, assigning each RemoteMethod a
// dense ordinal in group-iteration order and building the hash->ordinals
// dispatch table. newInvoker builds the per-method Invoker thunk; passing a
// factory instead of requiring callers to build entries keeps ordinal
// assignment (this function's job) decoupled from thunk construction (the
// Skeleton factory's job).
func NewMethodTable(ri RemoteInfo, newInvoker func(RemoteMethod) Invoker) (*MethodTable, error) {
	methods := ri.Methods()
	buckets := make(map[uint32][]int)
	entries := make([]DispatchEntry, 0, len(methods))

	// Group by hash first, then assign dense ordinals in group-iteration
	// order so two constructions from the same RemoteInfo always agree on
	// ordinal assignment regardless of Go map iteration order, since group
	// membership - not iteration - determines the ordinal sequence below.
	hashOrder := make([]uint32, 0)
	seenHash := make(map[uint32]bool)
	groups := make(map[uint32][]RemoteMethod)
	for _, m := range methods {
		h := m.ID.Hash()
		if !seenHash[h] {
			seenHash[h] = true
			hashOrder = append(hashOrder, h)
		}
		groups[h] = append(groups[h], m)
	}

	for _, h := range hashOrder {
		for _, m := range groups[h] {
			for _, existing := range entries {
				if existing.Method.ID.Equals(m.ID) {
					return nil, dirmierr.Wrap(dirmierr.ErrInvocationError, "duplicate MethodID "+m.ID.String())
				}
			}
			ordinal := len(entries)
			entries = append(entries, DispatchEntry{
				Method:  m,
				Ordinal: ordinal,
				Invoke:  newInvoker(m),
			})
			buckets[h] = append(buckets[h], ordinal)
		}
	}

	return &MethodTable{entries: entries, buckets: buckets}, nil
}

// Lookup resolves id to its DispatchEntry. Cost is O(1) amortized plus O(k)
// for the (practically always 1) entries sharing id's hash.
func (t *MethodTable) Lookup(id wire.MethodID) (*DispatchEntry, error) {
	for _, ordinal := range t.buckets[id.Hash()] {
		if t.entries[ordinal].Method.ID.Equals(id) {
			return &t.entries[ordinal], nil
		}
	}
	return nil, &dirmierr.NoSuchMethod{ID: id}
}

// Len returns the total entry count, equal to |RemoteInfo|.
func (t *MethodTable) Len() int { return len(t.entries) }
