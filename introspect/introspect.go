// Package introspect builds a dispatch.RemoteInfo from a plain Go interface
// type alone (no implementation is consulted), by reflecting over its exported
// methods: indexing each by a stable MethodID and classifying it sync or
// async. This is what dispatch.FactoryCache calls on a cache miss.
package introspect

import (
	"hash/fnv"
	"reflect"

	"github.com/bluelightning32/Dirmi/dirmierr"
	"github.com/bluelightning32/Dirmi/dispatch"
	"github.com/bluelightning32/Dirmi/wire"
)

// Reflect is a dispatch.Introspector that builds RemoteInfo by scanning the
// exported methods of a Go interface type.
type Reflect struct{}

// Examine implements dispatch.Introspector.
func (Reflect) Examine(remoteType reflect.Type) (dispatch.RemoteInfo, error) {
	if remoteType.Kind() != reflect.Interface {
		return dispatch.RemoteInfo{}, dirmierr.Wrap(dirmierr.ErrInvocationError, "introspect: not an interface type: "+remoteType.String())
	}

	var methods []dispatch.RemoteMethod
	seenHash := make(map[uint32]bool)
	for i := 0; i < remoteType.NumMethod(); i++ {
		m := remoteType.Method(i)
		params, err := paramsOf(m.Type)
		if err != nil {
			return dispatch.RemoteInfo{}, err
		}
		returnType, async, err := returnOf(m.Type)
		if err != nil {
			return dispatch.RemoteInfo{}, err
		}

		hash := methodHash(remoteType.Name(), m)
		var disambiguator uint16
		for seenHash[hash] {
			// Vanishingly unlikely in practice; walk disambiguators to
			// keep production assignment collision-free.
			disambiguator++
			hash = methodHash(remoteType.Name(), m) ^ uint32(disambiguator)
		}
		seenHash[hash] = true

		methods = append(methods, dispatch.RemoteMethod{
			Name:       m.Name,
			ID:         wire.NewMethodID(hash, disambiguator),
			Params:     params,
			ReturnType: returnType,
			Async:      async,
		})
	}

	return dispatch.NewRemoteInfo(methods), nil
}

func methodHash(typeName string, m reflect.Method) uint32 {
	h := fnv.New32a()
	h.Write([]byte(typeName))
	h.Write([]byte{'.'})
	h.Write([]byte(m.Name))
	h.Write([]byte(m.Type.String()))
	return h.Sum32()
}

// paramsOf maps a method's Go parameter types (skipping the receiver, which
// reflect.Type.Method on an interface type does not include) to
// RemoteParameters.
func paramsOf(methodType reflect.Type) (wire.ParameterList, error) {
	params := make(wire.ParameterList, 0, methodType.NumIn())
	for i := 0; i < methodType.NumIn(); i++ {
		desc, err := paramDescOf(methodType.In(i))
		if err != nil {
			return nil, err
		}
		params = append(params, desc)
	}
	return params, nil
}

// returnOf classifies a method's return signature: its RemoteParameter (nil
// for void), and whether the method is asynchronous, i.e. has no return
// values at all. A trailing `error` result on an otherwise-non-void method
// is the sync failure channel and is not itself part of ReturnType.
func returnOf(methodType reflect.Type) (*wire.RemoteParameter, bool, error) {
	n := methodType.NumOut()
	if n == 0 {
		return nil, true, nil
	}

	last := methodType.Out(n - 1)
	errorType := reflect.TypeOf((*error)(nil)).Elem()
	hasTrailingError := last == errorType

	switch {
	case n == 1 && hasTrailingError:
		return nil, false, nil // e.g. func(...) error
	case n == 1:
		desc, err := paramDescOf(methodType.Out(0))
		return &desc, false, err
	default:
		desc, err := paramDescOf(methodType.Out(0))
		if err != nil {
			return nil, false, err
		}
		return &desc, false, nil
	}
}

func paramDescOf(t reflect.Type) (wire.RemoteParameter, error) {
	switch t.Kind() {
	case reflect.Bool:
		return wire.RemoteParameter{Tag: wire.TagBool}, nil
	case reflect.Uint8:
		return wire.RemoteParameter{Tag: wire.TagByte}, nil
	case reflect.Int16:
		return wire.RemoteParameter{Tag: wire.TagInt16}, nil
	case reflect.Uint16:
		return wire.RemoteParameter{Tag: wire.TagUint16}, nil
	case reflect.Int32:
		return wire.RemoteParameter{Tag: wire.TagInt32}, nil
	case reflect.Int64, reflect.Int:
		return wire.RemoteParameter{Tag: wire.TagInt64}, nil
	case reflect.Float32:
		return wire.RemoteParameter{Tag: wire.TagFloat32}, nil
	case reflect.Float64:
		return wire.RemoteParameter{Tag: wire.TagFloat64}, nil
	case reflect.String:
		return wire.RemoteParameter{Tag: wire.TagString}, nil
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return wire.RemoteParameter{Tag: wire.TagSerializedObject}, nil
		}
		return wire.RemoteParameter{Tag: wire.TagRemoteReference, RemoteTypeName: t.Name()}, nil
	default:
		return wire.RemoteParameter{Tag: wire.TagSerializedObject}, nil
	}
}
