// Package broker fans out the latest value of a stream to many subscribers.
package broker

import "sync/atomic"

// Broker delivers published values to subscribers with latest-value semantics:
// a slow subscriber sees the newest value, never a stale backlog, and a new
// subscriber immediately receives the last published value.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable
// state (subscribers + last value). Public methods communicate with this loop
// through channels, so no mutexes are required.
type Broker[T any] struct {
	subscribeCh   chan chan T
	unsubscribeCh chan (<-chan T)
	publishCh     chan T
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// New creates a broker and starts its event loop.
func New[T any]() *Broker[T] {
	b := &Broker[T]{
		subscribeCh:   make(chan chan T),
		unsubscribeCh: make(chan (<-chan T)),
		publishCh:     make(chan T, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broker[T]) run() {
	defer close(b.stopped)

	clients := make(map[<-chan T]chan T)
	var last T
	hasLast := false

	for {
		select {
		case <-b.stopCh:
			// Flush values published before Close.
		drain:
			for {
				select {
				case v := <-b.publishCh:
					for _, ch := range clients {
						deliver(ch, v)
					}
				default:
					break drain
				}
			}
			for _, ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = ch
			if hasLast {
				deliver(ch, last)
			}

		case ch := <-b.unsubscribeCh:
			if c, ok := clients[ch]; ok {
				delete(clients, ch)
				close(c)
			}

		case v := <-b.publishCh:
			last, hasLast = v, true
			for _, ch := range clients {
				deliver(ch, v)
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// deliver replaces whatever the subscriber has not read yet with v.
// Only the loop sends on ch, so after draining there is room.
func deliver[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

// Close stops the loop and closes all subscriber channels.
func (b *Broker[T]) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a new subscriber. The channel is closed on Unsubscribe
// or Close.
func (b *Broker[T]) Subscribe() <-chan T {
	ch := make(chan T, 1)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker[T]) Unsubscribe(ch <-chan T) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// Count returns the number of subscribers.
func (b *Broker[T]) Count() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish hands v to every subscriber. It never blocks on slow subscribers.
func (b *Broker[T]) Publish(v T) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- v:
	case <-b.stopped:
	}
}
