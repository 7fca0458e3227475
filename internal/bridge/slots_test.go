package bridge

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestSlotPool_AcquireRelease(t *testing.T) {
	p := NewSlotPool(1)

	if !p.TryAcquire() {
		t.Fatal("first acquire should succeed")
	}
	if p.TryAcquire() {
		t.Fatal("second acquire should be denied at target 1")
	}
	if p.InUse() != 1 {
		t.Errorf("expected 1 in use, got %d", p.InUse())
	}
	if p.HasCapacity() {
		t.Error("pool at target should have no capacity")
	}

	p.Release()
	if p.InUse() != 0 {
		t.Errorf("expected 0 in use, got %d", p.InUse())
	}
	if !p.TryAcquire() {
		t.Error("acquire after release should succeed")
	}
}

func TestSlotPool_DefaultTarget(t *testing.T) {
	for _, target := range []int{0, -3} {
		p := NewSlotPool(target)
		if p.Target() != DefaultConcurrentConnections {
			t.Errorf("NewSlotPool(%d).Target() = %d, want %d", target, p.Target(), DefaultConcurrentConnections)
		}
	}
}

func TestSlotPool_NeverNegative(t *testing.T) {
	p := NewSlotPool(2)
	p.Release()
	p.Release()
	if p.InUse() != 0 {
		t.Errorf("release on empty pool must not go negative, got %d", p.InUse())
	}
}

func TestSlotPool_ConcurrentNeverExceedsTarget(t *testing.T) {
	const target = 3
	p := NewSlotPool(target)

	var current, peak atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if !p.TryAcquire() {
					continue
				}
				n := current.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				current.Add(-1)
				p.Release()
			}
		}()
	}
	wg.Wait()

	if peak.Load() > target {
		t.Errorf("peak concurrent holders %d exceeds target %d", peak.Load(), target)
	}
	if p.InUse() != 0 {
		t.Errorf("all slots should be released, got %d", p.InUse())
	}
}
