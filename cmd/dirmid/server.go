package main

import (
	"net"
	"reflect"

	uuid "github.com/satori/go.uuid"

	"github.com/bluelightning32/Dirmi/channel"
	"github.com/bluelightning32/Dirmi/dispatch"
	"github.com/bluelightning32/Dirmi/introspect"
)

var calculatorType = reflect.TypeOf((*Calculator)(nil)).Elem()

// server drives one Acceptor, re-arming it after every established or failed
// accept: Accept is one-shot per call, so a persistent listener must call it
// again from its own callback. Each established channel gets a UUID tag
// purely for log correlation.
type server struct {
	acceptor *channel.Acceptor
	pool     *channel.Pool
	cache    *dispatch.FactoryCache
	calc     Calculator
}

func newServer(listener net.Listener, pool *channel.Pool, calc Calculator) *server {
	transport := channel.NewTCPListenerTransport(listener)
	return &server{
		acceptor: channel.NewAcceptor(transport, 1<<20, pool),
		pool:     pool,
		cache:    dispatch.NewFactoryCache(introspect.Reflect{}, 64),
		calc:     calc,
	}
}

func (s *server) serve() error {
	return s.acceptor.Accept(s)
}

// Established implements channel.Listener.
func (s *server) Established(ch *channel.MessageChannel) {
	id := uuid.NewV4()
	log.Infof("accepted connection %s", id)

	factory, err := s.cache.Get(calculatorType)
	if err != nil {
		log.Errorf("connection %s: building skeleton factory: %v", id, err)
		_ = ch.Close()
	} else {
		dispatchOnce(ch, factory.New(s.calc))
	}

	// Re-arm for the next inbound connection.
	if err := s.acceptor.Accept(s); err != nil {
		log.Errorf("re-arming acceptor: %v", err)
	}
}

// Closed implements channel.Listener; it fires when an Accept call itself
// fails (as opposed to a failure on an already-established channel).
func (s *server) Closed(err error) {
	if err != nil {
		log.Errorf("accept failed: %v", err)
	}
	if err := s.acceptor.Accept(s); err != nil {
		log.Errorf("re-arming acceptor: %v", err)
	}
}
