package channel

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/bluelightning32/Dirmi/dirmierr"
	"github.com/bluelightning32/Dirmi/ioutil/breader"
)

// frameHeaderLen is the length of the length-prefix MessageChannel uses to
// self-delimit messages on the wire: a 4-byte big-endian payload length,
// sufficient to encode any maxMessageSize up to 2^32-1.
const frameHeaderLen = 4

type matched struct {
	receiver Receiver
	message  []byte
}

// MessageChannel frames a Transport into discrete, maxMessageSize-bounded
// messages and delivers them to registered Receivers in FIFO order. At most
// one in-flight partial inbound message is assembled at a time; Send
// atomically emits one whole message.
type MessageChannel struct {
	transport      Transport
	reader         *breader.Reader // buffers transport reads for readLoop's framing
	maxMessageSize int
	pool           *Pool

	sendMu sync.Mutex

	mu        sync.Mutex
	cond      *sync.Cond
	closed    bool
	closeErr  error
	receivers []Receiver // registered, awaiting a message
	messages  [][]byte   // arrived, awaiting a receiver
	queue     []matched  // matched pairs awaiting in-order delivery
}

// NewMessageChannel frames transport into messages no larger than
// maxMessageSize. Its read loop and delivery loop run for the channel's
// entire lifetime, so they run on plain goroutines (Pool.Spawn) rather than
// through pool: a channel's actual decode-and-deliver work for each inbound
// message is what runs on a bounded pool worker (see deliverLoop), not the
// loop that drives it.
func NewMessageChannel(transport Transport, maxMessageSize int, pool *Pool) *MessageChannel {
	c := &MessageChannel{
		transport:      transport,
		reader:         breader.New(transport, 0),
		maxMessageSize: maxMessageSize,
		pool:           pool,
	}
	c.cond = sync.NewCond(&c.mu)
	pool.Spawn(c.readLoop)
	pool.Spawn(c.deliverLoop)
	return c
}

// MaxMessageSize returns this channel's constant per-message size bound.
func (c *MessageChannel) MaxMessageSize() int { return c.maxMessageSize }

// Send transmits one message whose payload is buf. Concurrent senders are
// serialized by sendMu so a peer never observes interleaved partial
// messages.
func (c *MessageChannel) Send(buf []byte) error {
	if len(buf) < 1 || len(buf) > c.maxMessageSize {
		return errors.Wrapf(dirmierr.ErrInvalidArgument, "message size %d out of [1,%d]", len(buf), c.maxMessageSize)
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return dirmierr.ErrIoClosed
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	var header [frameHeaderLen]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(buf)))
	if _, err := c.transport.Write(header[:]); err != nil {
		return err
	}
	_, err := c.transport.Write(buf)
	return err
}

// Receive enqueues receiver. It never blocks: if a message has already
// arrived and is waiting, the receiver is matched to it immediately
// (delivery still happens on the channel's single delivery worker, so FIFO
// order holds); otherwise the receiver waits for the next inbound message.
func (c *MessageChannel) Receive(receiver Receiver) error {
	if receiver == nil {
		return dirmierr.ErrInvalidArgument
	}

	c.mu.Lock()
	if c.closed {
		err := c.closeErr
		c.mu.Unlock()
		receiver.Closed(err)
		return dirmierr.ErrIoClosed
	}
	if len(c.messages) > 0 {
		msg := c.messages[0]
		c.messages = c.messages[1:]
		c.queue = append(c.queue, matched{receiver, msg})
		c.cond.Signal()
		c.mu.Unlock()
		return nil
	}
	c.receivers = append(c.receivers, receiver)
	c.mu.Unlock()
	return nil
}

// Close terminates both directions of the channel. It sends no frame; all
// still-queued receivers observe Closed(nil) exactly once, and the
// underlying transport is closed.
func (c *MessageChannel) Close() error {
	return c.closeWithError(nil)
}

func (c *MessageChannel) closeWithError(err error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.closeErr = err
	pending := c.receivers
	c.receivers = nil
	c.messages = nil
	c.cond.Broadcast()
	c.mu.Unlock()

	closeErr := c.reader.Close()
	for _, r := range pending {
		r.Closed(err)
	}
	return closeErr
}

// readLoop reads complete frames off the buffered reader and either matches
// them to an already-registered receiver or buffers them until one arrives.
func (c *MessageChannel) readLoop() {
	var header [frameHeaderLen]byte
	for {
		if _, err := io.ReadFull(c.reader, header[:]); err != nil {
			c.closeWithError(translateReadErr(err))
			return
		}
		n := int(binary.BigEndian.Uint32(header[:]))
		if n < 0 || n > c.maxMessageSize {
			c.closeWithError(errors.Wrapf(dirmierr.ErrMalformedFrame, "frame size %d exceeds max %d", n, c.maxMessageSize))
			return
		}
		msg := make([]byte, n)
		if _, err := io.ReadFull(c.reader, msg); err != nil {
			c.closeWithError(translateReadErr(err))
			return
		}

		c.mu.Lock()
		if len(c.receivers) > 0 {
			r := c.receivers[0]
			c.receivers = c.receivers[1:]
			c.queue = append(c.queue, matched{r, msg})
			c.cond.Signal()
		} else {
			c.messages = append(c.messages, msg)
		}
		c.mu.Unlock()
	}
}

// deliverLoop drains matched pairs strictly in the order they were formed,
// which is the order messages arrived interleaved with the order receivers
// were registered, matching the FIFO guarantee of a channel's delivery
// order: exactly one match can be formed at a time since messages and
// receivers are never both nonempty simultaneously (each arrival immediately
// consumes the other side if available).
//
// The loop itself runs for the channel's whole lifetime and so never goes
// through the bounded pool (see NewMessageChannel); the actual decode work
// for each message — the Receive/Process callback, where a dispatcher would
// decode arguments and invoke a method — is submitted to the pool and
// awaited before the next queued message is started, so per-message work is
// pool-bounded while delivery order stays strictly FIFO.
func (c *MessageChannel) deliverLoop() {
	for {
		c.mu.Lock()
		for len(c.queue) == 0 && !c.closed {
			c.cond.Wait()
		}
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		m := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		done := make(chan struct{})
		c.pool.Go(func() {
			defer close(done)
			full := m.receiver.Receive(nil, len(m.message), 0, m.message)
			m.receiver.Process(full, c)
		})
		<-done
	}
}

func translateReadErr(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return nil
	}
	return err
}
