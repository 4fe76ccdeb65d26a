package dispatch

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluelightning32/Dirmi/dirmierr"
	"github.com/bluelightning32/Dirmi/wire"
)

// fakeConn is a minimal Connection backed by separate in/out buffers, used
// to exercise Skeleton.Invoke without any real transport.
type fakeConn struct {
	in     *bytes.Buffer
	out    *bytes.Buffer
	closed bool
}

func newFakeConn(payload []byte) *fakeConn {
	return &fakeConn{in: bytes.NewBuffer(payload), out: new(bytes.Buffer)}
}

func (c *fakeConn) Read(p []byte) (int, error)  { return c.in.Read(p) }
func (c *fakeConn) Write(p []byte) (int, error) { return c.out.Write(p) }
func (c *fakeConn) Close() error                { c.closed = true; return nil }

type calcServer struct {
	mu    sync.Mutex
	fired string
}

func (s *calcServer) Add(a, b int32) int32 { return a + b }

func (s *calcServer) Divide(a, b int32) (int32, error) {
	if b == 0 {
		return 0, errors.New("x")
	}
	return a / b, nil
}

func (s *calcServer) IsReady() bool { return true }

func (s *calcServer) Fire(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fired = msg
}

func (s *calcServer) FireErr(msg string) error {
	return errors.New("fire failed: " + msg)
}

var (
	idAdd     = wire.NewMethodID(1, 0)
	idDivide  = wire.NewMethodID(2, 0)
	idReady   = wire.NewMethodID(3, 0)
	idFire    = wire.NewMethodID(4, 0)
	idFireErr = wire.NewMethodID(5, 0)

	i32 = wire.RemoteParameter{Tag: wire.TagInt32}
	str = wire.RemoteParameter{Tag: wire.TagString}
	bl  = wire.RemoteParameter{Tag: wire.TagBool}
)

func calcRemoteInfo() RemoteInfo {
	return NewRemoteInfo([]RemoteMethod{
		{Name: "Add", ID: idAdd, Params: wire.ParameterList{i32, i32}, ReturnType: &i32},
		{Name: "Divide", ID: idDivide, Params: wire.ParameterList{i32, i32}, ReturnType: &i32},
		{Name: "IsReady", ID: idReady, ReturnType: &bl},
		{Name: "Fire", ID: idFire, Params: wire.ParameterList{str}, Async: true},
		{Name: "FireErr", ID: idFireErr, Params: wire.ParameterList{str}, Async: true},
	})
}

func newCalcSkeleton(t *testing.T) (*Skeleton, *calcServer) {
	t.Helper()
	factory, err := NewSkeletonFactory(nil, calcRemoteInfo())
	require.NoError(t, err)
	server := &calcServer{}
	return factory.New(server), server
}

// Sync add: expect OK||i32(5), connection closed.
func TestInvokeSyncSuccess(t *testing.T) {
	skel, _ := newCalcSkeleton(t)
	call := new(bytes.Buffer)
	require.NoError(t, wire.WriteMethodID(call, idAdd))
	require.NoError(t, wire.WriteParam(call, i32, int32(2)))
	require.NoError(t, wire.WriteParam(call, i32, int32(3)))

	conn := newFakeConn(call.Bytes())
	require.NoError(t, skel.Invoke(conn))
	assert.True(t, conn.closed)

	v, err := wire.ReadReply(bytes.NewReader(conn.out.Bytes()), &i32)
	require.NoError(t, err)
	assert.Equal(t, int32(5), v)
}

// Sync method throws: expect THROWABLE||enc(err), connection closed.
func TestInvokeSyncError(t *testing.T) {
	skel, _ := newCalcSkeleton(t)
	call := new(bytes.Buffer)
	require.NoError(t, wire.WriteMethodID(call, idDivide))
	require.NoError(t, wire.WriteParam(call, i32, int32(4)))
	require.NoError(t, wire.WriteParam(call, i32, int32(0)))

	conn := newFakeConn(call.Bytes())
	require.NoError(t, skel.Invoke(conn))
	assert.True(t, conn.closed)

	_, err := wire.ReadReply(bytes.NewReader(conn.out.Bytes()), &i32)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x")
}

// Boolean sync return is tag-only.
func TestInvokeSyncBoolIsTagOnly(t *testing.T) {
	skel, _ := newCalcSkeleton(t)
	call := new(bytes.Buffer)
	require.NoError(t, wire.WriteMethodID(call, idReady))

	conn := newFakeConn(call.Bytes())
	require.NoError(t, skel.Invoke(conn))
	assert.Equal(t, 1, conn.out.Len())
	v, err := wire.ReadReply(bytes.NewReader(conn.out.Bytes()), nil)
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

// Async success writes nothing and Invoke returns normally.
func TestInvokeAsyncSuccess(t *testing.T) {
	skel, server := newCalcSkeleton(t)
	call := new(bytes.Buffer)
	require.NoError(t, wire.WriteMethodID(call, idFire))
	require.NoError(t, wire.WriteParam(call, str, "hi"))

	conn := newFakeConn(call.Bytes())
	require.NoError(t, skel.Invoke(conn))
	assert.Equal(t, 0, conn.out.Len())
	assert.False(t, conn.closed)
	assert.Equal(t, "hi", server.fired)
}

// Async error is wrapped and raised to Invoke's caller; no reply bytes.
func TestInvokeAsyncErrorWraps(t *testing.T) {
	skel, _ := newCalcSkeleton(t)
	call := new(bytes.Buffer)
	require.NoError(t, wire.WriteMethodID(call, idFireErr))
	require.NoError(t, wire.WriteParam(call, str, "boom"))

	conn := newFakeConn(call.Bytes())
	err := skel.Invoke(conn)
	require.Error(t, err)
	var asyncErr *dirmierr.AsynchronousInvocationException
	require.ErrorAs(t, err, &asyncErr)
	assert.Contains(t, asyncErr.Cause.Error(), "boom")
	assert.Equal(t, 0, conn.out.Len())
}

// Unknown MethodID: no reply bytes, NoSuchMethod raised to caller.
func TestInvokeNoSuchMethod(t *testing.T) {
	skel, _ := newCalcSkeleton(t)
	call := new(bytes.Buffer)
	require.NoError(t, wire.WriteMethodID(call, wire.NewMethodID(0xffff, 0xff)))

	conn := newFakeConn(call.Bytes())
	err := skel.Invoke(conn)
	require.Error(t, err)
	var nsm *dirmierr.NoSuchMethod
	require.ErrorAs(t, err, &nsm)
	assert.Equal(t, 0, conn.out.Len())
}
