package channel

import (
	"net"
	"sync"

	"github.com/bluelightning32/Dirmi/dirmierr"
)

// Listener receives the channel for one accepted peer, or an accept-time
// error. Established is called at most once per Acceptor.Accept call;
// re-arming (calling Accept again) is the Listener's responsibility.
type Listener interface {
	Established(ch *MessageChannel)
	Closed(err error)
}

// Acceptor is a one-shot-per-call accept loop driver: at most one channel is
// delivered per Accept call, on a Pool worker, never blocking the caller.
type Acceptor struct {
	transport      ListenerTransport
	pool           *Pool
	maxMessageSize int

	mu     sync.Mutex
	closed bool
}

// NewAcceptor binds an Acceptor to transport, handing off accepted
// connections as MessageChannels bounded to maxMessageSize, scheduled on
// pool.
func NewAcceptor(transport ListenerTransport, maxMessageSize int, pool *Pool) *Acceptor {
	return &Acceptor{transport: transport, pool: pool, maxMessageSize: maxMessageSize}
}

// Addr returns the acceptor's bound local address.
func (a *Acceptor) Addr() net.Addr { return a.transport.Addr() }

// Accept returns immediately. At most one channel is delivered via
// listener.Established, constructed on a pool worker after completing the
// peer handshake (a bare TCP accept in this reference implementation).
// Accept-time failures are delivered via listener.Closed; once a channel is
// established, its own errors are delivered through the channel instead.
func (a *Acceptor) Accept(listener Listener) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return dirmierr.ErrIoClosed
	}
	a.mu.Unlock()

	a.pool.Go(func() {
		transport, err := a.transport.AcceptConn()
		if err != nil {
			listener.Closed(err)
			return
		}
		ch := NewMessageChannel(transport, a.maxMessageSize, a.pool)
		listener.Established(ch)
	})
	return nil
}

// Close prevents further accepts and releases the bound address. Already
// established channels are untouched.
func (a *Acceptor) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()
	return a.transport.Close()
}
