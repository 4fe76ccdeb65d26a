package main

import (
	"bytes"

	"github.com/op/go-logging"

	"github.com/bluelightning32/Dirmi/channel"
	"github.com/bluelightning32/Dirmi/dispatch"
)

var log = logging.MustGetLogger("dirmid")

// connAdapter bridges one inbound call message on a channel.MessageChannel
// to the dispatch.Connection a Skeleton expects: the whole call frame
// already sits in memory (MessageChannel hands Receiver.Process a complete
// message), so Read drains it directly, and Write accumulates the reply
// until Close flushes it back out as a single outbound message. Keeping this
// glue in the demo command rather than in package dispatch or channel keeps
// both of those decoupled from each other.
type connAdapter struct {
	in  *bytes.Reader
	out bytes.Buffer
	ch  *channel.MessageChannel
}

func newConnAdapter(call []byte, ch *channel.MessageChannel) *connAdapter {
	return &connAdapter{in: bytes.NewReader(call), ch: ch}
}

func (c *connAdapter) Read(p []byte) (int, error) { return c.in.Read(p) }

func (c *connAdapter) Write(p []byte) (int, error) { return c.out.Write(p) }

// Close flushes any buffered reply as one message, then closes the
// per-invocation channel: each call owns its own MessageChannel end to end,
// so closing the connection here means closing that whole channel.
func (c *connAdapter) Close() error {
	if c.out.Len() > 0 {
		if err := c.ch.Send(c.out.Bytes()); err != nil {
			return err
		}
	}
	return c.ch.Close()
}

// dispatchOnce installs a Receiver on ch that decodes exactly one call and
// runs it through skel. Asynchronous methods that return without error leave
// the connAdapter (and so the channel) open; every other outcome closes it,
// since nothing else in this demo owns the channel past its one call.
func dispatchOnce(ch *channel.MessageChannel, skel *dispatch.Skeleton) {
	err := ch.Receive(channel.FuncReceiver{
		OnProcess: func(call []byte, ch *channel.MessageChannel) {
			conn := newConnAdapter(call, ch)
			if err := skel.Invoke(conn); err != nil {
				log.Errorf("invoke failed: %v", err)
				_ = ch.Close()
			}
		},
		OnClosed: func(err error) {
			if err != nil {
				log.Warningf("channel closed before a call arrived: %v", err)
			}
		},
	})
	if err != nil {
		log.Errorf("receive registration failed: %v", err)
	}
}
