package syncutil

import (
	"sync"
	"testing"
	"time"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()

	var inCritical int
	var mu sync.Mutex
	var wg sync.WaitGroup
	var maxObserved int

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("thread-1")
			defer unlock()

			mu.Lock()
			inCritical++
			if inCritical > maxObserved {
				maxObserved = inCritical
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inCritical--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxObserved != 1 {
		t.Errorf("max concurrent holders for one key = %d, want 1", maxObserved)
	}
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	km := NewKeyedMutex()

	unlockA := km.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on independent key blocked")
	}
	unlockA()
}

func TestKeyedMutex_NoLeak(t *testing.T) {
	km := NewKeyedMutex()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := string(rune('a' + n%5))
			unlock := km.Lock(key)
			defer unlock()
		}(i)
	}
	wg.Wait()

	if km.Len() != 0 {
		t.Errorf("entries leaked: %d remain after all unlocks", km.Len())
	}
}

func TestKeyedMutex_UnlockIsIdempotent(t *testing.T) {
	km := NewKeyedMutex()

	unlock := km.Lock("a")
	unlock()
	unlock() // second call must be a no-op, not a panic or refcount underflow

	unlock2 := km.Lock("a")
	unlock2()

	if km.Len() != 0 {
		t.Errorf("entries leaked: %d", km.Len())
	}
}
