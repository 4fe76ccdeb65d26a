package wire

// ParamTag selects the wire representation of one RemoteParameter.
type ParamTag uint8

const (
	TagBool ParamTag = iota
	TagByte
	TagInt16
	TagUint16
	TagInt32
	TagInt64
	TagFloat32
	TagFloat64
	TagChar
	TagString
	TagSerializedObject
	TagRemoteReference
)

// RemoteParameter describes one parameter or return value: which wire
// representation applies, and, for a remote-reference parameter, the
// referenced remote interface's name (the session/registry layer, out of
// scope here, is responsible for resolving that name to a live stub).
type RemoteParameter struct {
	Tag            ParamTag
	RemoteTypeName string // only meaningful when Tag == TagRemoteReference
}

// ParameterList is an ordered, possibly-empty list of RemoteParameters.
type ParameterList []RemoteParameter

// RemoteRef is the decoded placeholder for a TagRemoteReference value; the
// out-of-scope session layer resolves TypeName to a live stub.
type RemoteRef struct {
	TypeName string
}
