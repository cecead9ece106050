package admission

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestReplayWithinWindow(t *testing.T) {
	c := NewReplayCache(time.Minute, 1000)

	if c.Seen("msg-1", 0) {
		t.Fatal("first occurrence reported as replay")
	}
	if !c.Seen("msg-1", 0) {
		t.Fatal("second occurrence not reported as replay")
	}
	if c.Seen("msg-2", 0) {
		t.Fatal("unrelated id reported as replay")
	}
}

func TestReplayWindowExpires(t *testing.T) {
	c := NewReplayCache(time.Minute, 1000)
	base := time.Now()
	c.now = func() time.Time { return base }

	c.Seen("msg-1", 30*time.Second)

	c.now = func() time.Time { return base.Add(29 * time.Second) }
	if !c.Seen("msg-1", 30*time.Second) {
		t.Fatal("replay inside message TTL not detected")
	}

	c.now = func() time.Time { return base.Add(31 * time.Second) }
	if c.Seen("msg-1", 30*time.Second) {
		t.Fatal("id still considered replay after its TTL")
	}
}

func TestCapacityBoundEvictsLRU(t *testing.T) {
	// 16 шардов по 2 записи
	c := NewReplayCache(time.Hour, 32)

	for i := 0; i < 500; i++ {
		c.Seen(fmt.Sprintf("msg-%d", i), 0)
	}
	if got := c.Len(); got > 32 {
		t.Fatalf("cache grew to %d entries, capacity 32", got)
	}
}

func TestConcurrentSameIDAdmitsOnce(t *testing.T) {
	c := NewReplayCache(time.Minute, 1000)

	var admitted int64
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !c.Seen("contended-id", 0) {
				atomic.AddInt64(&admitted, 1)
			}
		}()
	}
	wg.Wait()

	if admitted != 1 {
		t.Fatalf("admitted %d times, want exactly 1", admitted)
	}
}
