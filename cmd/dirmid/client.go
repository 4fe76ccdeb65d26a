package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/bluelightning32/Dirmi/channel"
	"github.com/bluelightning32/Dirmi/dirmierr"
	"github.com/bluelightning32/Dirmi/dispatch"
	"github.com/bluelightning32/Dirmi/introspect"
	"github.com/bluelightning32/Dirmi/wire"
)

// findMethod resolves one Calculator method's wire.MethodID and descriptors
// by running the same introspection the server used. This demo has no
// session/stub layer to distribute that metadata, so the client rebuilds it
// locally from the shared Go interface instead.
func findMethod(name string) (dispatch.RemoteMethod, error) {
	ri, err := introspect.Reflect{}.Examine(calculatorType)
	if err != nil {
		return dispatch.RemoteMethod{}, err
	}
	for _, m := range ri.Methods() {
		if m.Name == name {
			return m, nil
		}
	}
	return dispatch.RemoteMethod{}, errors.Errorf("no such remote method %q", name)
}

// callRemote dials addr, opens one per-invocation MessageChannel (mirroring
// the server's "per-invocation single-channel accept" shape from the other
// end), writes the encoded call, and waits for the reply or a closed
// notification. For an async fire-and-forget method (such as Log) no reply
// is produced, so callRemote sends the call, pauses briefly, and closes the
// channel without waiting for one.
func callRemote(ctx context.Context, addr, method string, args []interface{}) (interface{}, error) {
	m, err := findMethod(method)
	if err != nil {
		return nil, err
	}
	if len(m.Params) != len(args) {
		return nil, errors.Errorf("method %q takes %d args, got %d", method, len(m.Params), len(args))
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "dial")
	}

	pool := channel.NewPool(4)
	ch := channel.NewMessageChannel(channel.NewTCPTransport(conn), 1<<20, pool)

	var buf bytes.Buffer
	if err := wire.WriteMethodID(&buf, m.ID); err != nil {
		return nil, err
	}
	for i, desc := range m.Params {
		if err := wire.WriteParam(&buf, desc, args[i]); err != nil {
			return nil, err
		}
	}
	if err := ch.Send(buf.Bytes()); err != nil {
		return nil, errors.Wrap(err, "send call")
	}

	if m.Async {
		// No reply is coming; give the write a moment to land on the wire
		// before tearing the connection down.
		time.Sleep(50 * time.Millisecond)
		return nil, ch.Close()
	}

	type result struct {
		value interface{}
		err   error
	}
	resultCh := make(chan result, 1)
	err = ch.Receive(channel.FuncReceiver{
		OnProcess: func(reply []byte, ch *channel.MessageChannel) {
			v, err := wire.ReadReply(bytes.NewReader(reply), m.ReturnType)
			resultCh <- result{v, err}
		},
		OnClosed: func(err error) {
			if err == nil {
				err = dirmierr.ErrIoClosed
			}
			resultCh <- result{nil, err}
		},
	})
	if err != nil {
		return nil, err
	}

	select {
	case r := <-resultCh:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Second):
		return nil, errors.New("timed out waiting for reply")
	}
}

func formatResult(v interface{}) string {
	if v == nil {
		return "ok"
	}
	return fmt.Sprintf("%v", v)
}
