package service

import (
	"context"
	"fmt"
	"sync"
)

// keyedLocks serializes operations per topic id. Each topic's structured
// document and chat history are single-writer resources; cross-topic
// operations never contend.
type keyedLocks struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{slots: make(map[string]*lockSlot)}
}

// Lock acquires the topic's slot, queueing behind an in-flight holder.
// If ctx expires while waiting, the attempt is abandoned and ErrBusy is
// returned.
func (l *keyedLocks) Lock(ctx context.Context, key string) error {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.release(key, s)
		return fmt.Errorf("%w: %v", ErrBusy, ctx.Err())
	}
}

// Unlock releases the topic's slot. Must pair with a successful Lock.
func (l *keyedLocks) Unlock(key string) {
	l.mu.Lock()
	s := l.slots[key]
	l.mu.Unlock()
	if s == nil {
		panic("unlock of unheld topic lock: " + key)
	}
	<-s.ch
	l.release(key, s)
}

func (l *keyedLocks) release(key string, s *lockSlot) {
	l.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
	l.mu.Unlock()
}
