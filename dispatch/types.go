// Package dispatch implements Dirmi's server-side skeleton generator: a
// hash-indexed, collision-tolerant MethodTable, a per-type Skeleton
// dispatcher that reads a call and writes its reply, and a weak-valued
// cache of SkeletonFactories keyed by remote type.
//
// A table of precomputed per-method dispatch thunks is built once per
// remote type and consulted on every call, trading a one-time construction
// cost for O(1) amortized per-call lookup.
package dispatch

import "github.com/bluelightning32/Dirmi/wire"

// RemoteMethod describes one method of a remote interface: its name (not
// required to be unique — overloads share a name but never a MethodID), its
// MethodID, its ordered parameter list, its return type (nil for void), and
// whether it is asynchronous (fire-and-forget, no reply frame).
type RemoteMethod struct {
	Name       string
	ID         wire.MethodID
	Params     wire.ParameterList
	ReturnType *wire.RemoteParameter // nil means void
	Async      bool
}

// RemoteInfo is the immutable, enumerable set of RemoteMethods exposed by a
// remote interface, in definition order. Constructing one is the
// introspector's job; dispatch only consumes it.
type RemoteInfo struct {
	methods []RemoteMethod
}

// NewRemoteInfo builds a RemoteInfo from methods in definition order.
// MethodIDs must be pairwise unequal; NewRemoteInfo does not itself validate
// this — MethodTable construction surfaces a duplicate as an
// ErrInvocationError, since that is where the contract actually matters.
func NewRemoteInfo(methods []RemoteMethod) RemoteInfo {
	cp := make([]RemoteMethod, len(methods))
	copy(cp, methods)
	return RemoteInfo{methods: cp}
}

// Methods returns the methods in definition order. The slice is a copy;
// callers may not mutate a RemoteInfo through it.
func (ri RemoteInfo) Methods() []RemoteMethod {
	cp := make([]RemoteMethod, len(ri.methods))
	copy(cp, ri.methods)
	return cp
}

// Len reports |RemoteInfo|.
func (ri RemoteInfo) Len() int { return len(ri.methods) }
