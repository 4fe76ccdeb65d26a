package dispatch

import (
	"io"
	"reflect"

	"github.com/op/go-logging"
	"github.com/pkg/errors"

	"github.com/bluelightning32/Dirmi/dirmierr"
	"github.com/bluelightning32/Dirmi/wire"
)

var log = logging.MustGetLogger("dirmi.dispatch")

// PreserveNoReplyOnNoSuchMethod records the deliberate choice that an
// unresolvable MethodID raises to Invoke's caller with nothing written back:
// the peer observes a truncated connection rather than a structured error.
// A future revision may serialize a throwable instead; flipping this
// constant is where that change would start.
const PreserveNoReplyOnNoSuchMethod = true

// Connection is the minimal reader/writer/closer a Skeleton needs out of a
// channel.MessageChannel-backed stream. dispatch depends only on this
// narrow interface, not on package channel, keeping the dispatch engine and
// the message-channel transport layer decoupled.
type Connection interface {
	io.Reader
	io.Writer
	Close() error
}

// Skeleton is the server-side dispatcher for one remote type bound to one
// server instance: immutable after construction, reentrant across
// concurrent Invoke calls provided each call owns a distinct Connection.
type Skeleton struct {
	server interface{}
	table  *MethodTable
}

// Invoke runs the dispatcher's state machine once:
//
//	READING_ID -> READING_ARGS -> INVOKING -> {WRITING_REPLY|WRITING_ERROR|DISCARDING} -> DONE
//
// There is no state carried between calls to Invoke.
func (s *Skeleton) Invoke(conn Connection) error {
	// READING_ID
	id, err := wire.ReadMethodID(conn)
	if err != nil {
		return err
	}

	entry, err := s.table.Lookup(id)
	if err != nil {
		// An unresolvable MethodID writes nothing back to the peer; the
		// caller owns closing or recovering the connection.
		log.Warningf("no such method %s", id)
		return err
	}

	// READING_ARGS, INVOKING, and the terminal WRITING_*/DISCARDING step
	// all live inside the per-method Invoker thunk, since only it knows
	// the method's parameter descriptors, target function, and sync/async
	// reply rule.
	return entry.Invoke(conn, s.server)
}

// SkeletonFactory is bound to one remote type; New produces a Skeleton
// sharing that type's MethodTable but holding a distinct server reference.
type SkeletonFactory struct {
	remoteType reflect.Type
	table      *MethodTable
}

// New constructs a Skeleton for server, which must implement the remote
// type this factory was built for.
func (f *SkeletonFactory) New(server interface{}) *Skeleton {
	return &Skeleton{server: server, table: f.table}
}

// RemoteType is the reflect.Type this factory dispatches calls for; used as
// the factory cache's key.
func (f *SkeletonFactory) RemoteType() reflect.Type { return f.remoteType }

// NewSkeletonFactory builds a factory for remoteType from ri, wiring each
// RemoteMethod to a reflection-based Invoker that decodes its declared
// parameters, calls the matching exported method on the server by name, and
// writes the reply per the method's sync/async rule: zero-parameter methods
// skip decoding; boolean returns fold into the reply tag; void sync returns
// write OK only.
func NewSkeletonFactory(remoteType reflect.Type, ri RemoteInfo) (*SkeletonFactory, error) {
	table, err := NewMethodTable(ri, func(m RemoteMethod) Invoker {
		return reflectInvoker(m)
	})
	if err != nil {
		return nil, err
	}
	return &SkeletonFactory{remoteType: remoteType, table: table}, nil
}

// reflectInvoker builds the Invoker thunk for m: decode args by m.Params,
// call server.<m.Name> by reflection, then apply the sync/async reply rule.
// Decoded values are converted to the target method's own parameter types,
// so a method may declare any Go type convertible from its descriptor's
// canonical wire type (an int parameter under an i64 descriptor, a named
// string type, and so on).
func reflectInvoker(m RemoteMethod) Invoker {
	return func(conn Connection, server interface{}) error {
		method := reflect.ValueOf(server).MethodByName(m.Name)
		if !method.IsValid() {
			return errors.Wrapf(dirmierr.ErrInvocationError, "server has no method %q", m.Name)
		}
		methodType := method.Type()
		if methodType.NumIn() != len(m.Params) {
			return errors.Wrapf(dirmierr.ErrInvocationError,
				"method %q takes %d args, descriptor declares %d", m.Name, methodType.NumIn(), len(m.Params))
		}

		args := make([]reflect.Value, 0, len(m.Params))
		for i, desc := range m.Params { // zero-parameter methods skip decoding entirely
			v, err := wire.ReadParam(conn, desc)
			if err != nil {
				return err
			}
			av := reflect.ValueOf(v)
			if in := methodType.In(i); av.Type() != in && av.Type().ConvertibleTo(in) {
				av = av.Convert(in)
			}
			args = append(args, av)
		}

		results := method.Call(args)
		var callErr error
		var retVal interface{}
		switch {
		case m.ReturnType == nil && len(results) > 0:
			// Last result, if present with no declared return type, is
			// conventionally the error.
			if e, ok := results[len(results)-1].Interface().(error); ok {
				callErr = e
			}
		case len(results) > 0:
			retVal = results[0].Interface()
			if len(results) > 1 {
				if e, ok := results[1].Interface().(error); ok {
					callErr = e
				}
			}
		}

		if m.Async {
			if callErr != nil {
				return &dirmierr.AsynchronousInvocationException{Cause: callErr}
			}
			// Async: discard return value, write nothing, leave the
			// connection to the caller.
			return nil
		}

		// Synchronous: always close on the way out, success or failure.
		defer conn.Close()

		if callErr != nil {
			return wire.WriteThrowable(conn, callErr)
		}
		if m.ReturnType == nil {
			return wire.WriteOk(conn)
		}
		retVal = normalizeReturn(*m.ReturnType, retVal)
		if m.ReturnType.Tag == wire.TagBool {
			return wire.WriteOkBool(conn, retVal.(bool))
		}
		return wire.WriteOkValue(conn, *m.ReturnType, retVal)
	}
}

// normalizeReturn coerces v to the concrete Go type desc's encoder expects,
// the mirror of the argument conversion above: a method returning int under
// an i64 descriptor, or a named string type, encodes cleanly.
func normalizeReturn(desc wire.RemoteParameter, v interface{}) interface{} {
	want := canonicalGoType(desc.Tag)
	if want == nil || v == nil {
		return v
	}
	rv := reflect.ValueOf(v)
	if rv.Type() != want && rv.Type().ConvertibleTo(want) {
		return rv.Convert(want).Interface()
	}
	return v
}

func canonicalGoType(tag wire.ParamTag) reflect.Type {
	switch tag {
	case wire.TagBool:
		return reflect.TypeOf(false)
	case wire.TagByte:
		return reflect.TypeOf(byte(0))
	case wire.TagInt16:
		return reflect.TypeOf(int16(0))
	case wire.TagUint16:
		return reflect.TypeOf(uint16(0))
	case wire.TagInt32:
		return reflect.TypeOf(int32(0))
	case wire.TagInt64:
		return reflect.TypeOf(int64(0))
	case wire.TagFloat32:
		return reflect.TypeOf(float32(0))
	case wire.TagFloat64:
		return reflect.TypeOf(float64(0))
	case wire.TagChar:
		return reflect.TypeOf(rune(0))
	case wire.TagString:
		return reflect.TypeOf("")
	default:
		return nil // serialized-object and remote-reference take v as-is
	}
}
