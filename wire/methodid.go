package wire

import "fmt"

// MethodID is a stable identifier for one RemoteMethod. Two MethodIDs are
// equal only if they name the same remote method; their Hash may collide
// with an unrelated MethodID's, a case the dispatch package's MethodTable
// must (and does) tolerate via linear rescan.
//
// The hash is the method's 32-bit identity on the wire (see wire.go);
// Disambiguator exists so tests can construct deliberately colliding
// MethodIDs without relying on an accidental FNV collision, while production
// assignment (introspect.Reflect) picks disambiguators that make accidental
// collisions vanishingly unlikely.
type MethodID struct {
	hash          uint32
	disambiguator uint16
}

// NewMethodID builds a MethodID from its wire hash and a 16-bit
// disambiguator distinguishing it from other methods sharing that hash.
func NewMethodID(hash uint32, disambiguator uint16) MethodID {
	return MethodID{hash: hash, disambiguator: disambiguator}
}

// Hash returns the 32-bit value used to bucket this MethodID in a
// MethodTable. It is not, by itself, sufficient to identify the method.
func (m MethodID) Hash() uint32 { return m.hash }

// Equals reports whether m and other name the same remote method. This is
// the authoritative identity test; Hash may collide where Equals does not.
func (m MethodID) Equals(other MethodID) bool {
	return m.hash == other.hash && m.disambiguator == other.disambiguator
}

// String renders a MethodID for logs and error messages.
func (m MethodID) String() string {
	return fmt.Sprintf("%08x/%04x", m.hash, m.disambiguator)
}
