package pipeline

import (
	"time"

	"trade_engine/internal/models"
)

type pendingCandle struct {
	candle models.Candle
	added  time.Time
}

// flushBuffer accumulates closed candles until a flush drains them. One
// lock covers both the append path and the swap-and-drain path; the flush
// side acquires it with a bounded timeout so a worker is never stalled
// indefinitely behind a slow flush.
type flushBuffer struct {
	sem   chan struct{}
	items []pendingCandle
}

func newFlushBuffer() *flushBuffer {
	return &flushBuffer{sem: make(chan struct{}, 1)}
}

func (b *flushBuffer) lock() { b.sem <- struct{}{} }

// tryLock acquires the buffer lock, giving up after wait.
func (b *flushBuffer) tryLock(wait time.Duration) bool {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case b.sem <- struct{}{}:
		return true
	case <-timer.C:
		return false
	}
}

func (b *flushBuffer) unlock() { <-b.sem }

// append adds a closed candle and reports the buffer size and the age of
// the oldest pending item, for the flush triggers.
func (b *flushBuffer) append(c models.Candle, now time.Time) (count int, oldest time.Time) {
	b.lock()
	defer b.unlock()
	b.items = append(b.items, pendingCandle{candle: c, added: now})
	return len(b.items), b.items[0].added
}

// drain swaps the pending slice out. Caller must hold the lock.
func (b *flushBuffer) drain() []pendingCandle {
	items := b.items
	b.items = nil
	return items
}
