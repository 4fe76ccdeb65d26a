package channel_test

import (
	"encoding/binary"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluelightning32/Dirmi/channel"
)

func pipePair(t *testing.T) (*channel.Pool, channel.Transport, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	pool := channel.NewPool(16)
	return pool, channel.NewTCPTransport(a), b
}

// readRawFrame reads one length-prefixed frame directly off the raw peer
// connection, bypassing MessageChannel, for tests asserting on-the-wire
// frame shape.
func readRawFrame(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	var header [4]byte
	_, err := conn.Read(header[:])
	require.NoError(t, err)
	n := binary.BigEndian.Uint32(header[:])
	buf := make([]byte, n)
	read := 0
	for read < int(n) {
		k, err := conn.Read(buf[read:])
		require.NoError(t, err)
		read += k
	}
	return buf
}

func writeRawFrame(t *testing.T, conn net.Conn, payload []byte) {
	t.Helper()
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	_, err := conn.Write(header[:])
	require.NoError(t, err)
	_, err = conn.Write(payload)
	require.NoError(t, err)
}

func TestSendRejectsOutOfRangeSizes(t *testing.T) {
	pool, transport, peer := pipePair(t)
	defer peer.Close()
	ch := channel.NewMessageChannel(transport, 64, pool)
	defer ch.Close()

	err := ch.Send(make([]byte, 65))
	require.Error(t, err)

	err = ch.Send(nil)
	require.Error(t, err)
}

func TestSendWritesSingleFrame(t *testing.T) {
	pool, transport, peer := pipePair(t)
	defer peer.Close()
	ch := channel.NewMessageChannel(transport, 64, pool)
	defer ch.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, ch.Send([]byte("hello")))
	}()

	got := readRawFrame(t, peer)
	assert.Equal(t, "hello", string(got))
	<-done
}

// FIFO receive: three queued receivers observe three inbound messages of
// very different sizes strictly in registration order.
func TestReceiveFIFOOrdering(t *testing.T) {
	pool, transport, peer := pipePair(t)
	defer peer.Close()
	ch := channel.NewMessageChannel(transport, 8192, pool)
	defer ch.Close()

	sizes := []int{5, 5000, 1}
	var mu sync.Mutex
	var order []int
	doneCh := make(chan struct{}, len(sizes))

	for i, n := range sizes {
		i, n := i, n
		require.NoError(t, ch.Receive(channel.FuncReceiver{
			OnProcess: func(msg []byte, _ *channel.MessageChannel) {
				require.Len(t, msg, n)
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				doneCh <- struct{}{}
			},
		}))
	}

	go func() {
		for _, n := range sizes {
			writeRawFrame(t, peer, make([]byte, n))
		}
	}()

	for range sizes {
		select {
		case <-doneCh:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for receivers")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2}, order)
}

// Concurrent senders never interleave bytes within a frame.
func TestSendAtomicityConcurrent(t *testing.T) {
	pool, transport, peer := pipePair(t)
	defer peer.Close()
	ch := channel.NewMessageChannel(transport, 4096, pool)
	defer ch.Close()

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			payload := make([]byte, 200)
			for j := range payload {
				payload[j] = byte(i)
			}
			require.NoError(t, ch.Send(payload))
		}()
	}

	seen := make(map[byte]bool)
	for i := 0; i < n; i++ {
		frame := readRawFrame(t, peer)
		require.Len(t, frame, 200)
		b := frame[0]
		for _, v := range frame {
			require.Equal(t, b, v, "interleaved frame detected")
		}
		seen[b] = true
	}
	assert.Len(t, seen, n)
	wg.Wait()
}

// Close fires Closed exactly once on each still-queued receiver.
func TestCloseFiresClosedOnPendingReceivers(t *testing.T) {
	pool, transport, peer := pipePair(t)
	defer peer.Close()
	ch := channel.NewMessageChannel(transport, 64, pool)

	closedCh := make(chan error, 1)
	require.NoError(t, ch.Receive(channel.FuncReceiver{
		OnClosed: func(err error) { closedCh <- err },
	}))

	require.NoError(t, ch.Close())

	select {
	case err := <-closedCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Closed was never called")
	}
}

func TestSendAfterCloseIsIoClosed(t *testing.T) {
	pool, transport, peer := pipePair(t)
	defer peer.Close()
	ch := channel.NewMessageChannel(transport, 64, pool)
	require.NoError(t, ch.Close())

	err := ch.Send([]byte("x"))
	require.Error(t, err)
}
