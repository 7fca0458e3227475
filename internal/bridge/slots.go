package bridge

import "sync/atomic"

// DefaultConcurrentConnections — целевое количество одновременных long-poll.
const DefaultConcurrentConnections = 1

// SlotPool ограничивает количество одновременно открытых long-poll.
//
// Слот занимается непосредственно перед удалённым вызовом и освобождается
// сразу после него той же горутиной, поэтому превышение цели невозможно.
type SlotPool struct {
	target int32
	open   atomic.Int32
}

// NewSlotPool создаёт пул слотов. target <= 0 заменяется на DefaultConcurrentConnections.
func NewSlotPool(target int) *SlotPool {
	if target <= 0 {
		target = DefaultConcurrentConnections
	}
	return &SlotPool{target: int32(target)}
}

// TryAcquire занимает слот, если открыто меньше target. Не блокирует.
func (p *SlotPool) TryAcquire() bool {
	for {
		cur := p.open.Load()
		if cur >= p.target {
			return false
		}
		if p.open.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release освобождает слот. Счётчик не опускается ниже нуля.
func (p *SlotPool) Release() {
	for {
		cur := p.open.Load()
		if cur <= 0 {
			return
		}
		if p.open.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// InUse возвращает количество занятых слотов.
func (p *SlotPool) InUse() int {
	return int(p.open.Load())
}

// Target возвращает целевое количество слотов.
func (p *SlotPool) Target() int {
	return int(p.target)
}

// HasCapacity возвращает true, если открыто меньше target.
func (p *SlotPool) HasCapacity() bool {
	return p.open.Load() < p.target
}
