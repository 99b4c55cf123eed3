package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestKeyedLocks_SerializesSameKey(t *testing.T) {
	locks := newKeyedLocks()
	ctx := context.Background()

	var mu sync.Mutex
	var active, maxActive int

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := locks.Lock(ctx, "topic-1"); err != nil {
				t.Errorf("Lock() error = %v", err)
				return
			}
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			locks.Unlock("topic-1")
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxActive)
	}
}

func TestKeyedLocks_DifferentKeysDoNotContend(t *testing.T) {
	locks := newKeyedLocks()
	ctx := context.Background()

	if err := locks.Lock(ctx, "a"); err != nil {
		t.Fatalf("Lock(a) error = %v", err)
	}
	defer locks.Unlock("a")

	done := make(chan struct{})
	go func() {
		if err := locks.Lock(ctx, "b"); err != nil {
			t.Errorf("Lock(b) error = %v", err)
		} else {
			locks.Unlock("b")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Lock(b) blocked behind Lock(a)")
	}
}

func TestKeyedLocks_BusyOnContextExpiry(t *testing.T) {
	locks := newKeyedLocks()

	if err := locks.Lock(context.Background(), "topic-1"); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	defer locks.Unlock("topic-1")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := locks.Lock(ctx, "topic-1")
	if !errors.Is(err, ErrBusy) {
		t.Errorf("Lock() with expired ctx error = %v, want ErrBusy", err)
	}
}
