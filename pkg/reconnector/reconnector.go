// Package reconnector serializes reconnect attempts per target, so that
// concurrent callers losing the same connection retry it only once.
package reconnector

import (
	"kwil-client/util/log"
	"sync"
	"sync/atomic"
	"time"
)

// RetryInterval is the wait between two connection attempts.
var RetryInterval = 500 * time.Millisecond

type lockers struct {
	mu    sync.Mutex
	slots map[string]*uint32
}

var l = &lockers{slots: make(map[string]*uint32)}

func (l *lockers) getLocker(target string) *uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()

	locker, ok := l.slots[target]
	if !ok {
		locker = new(uint32)
		l.slots[target] = locker
	}
	return locker
}

// Slots returns the number of known targets.
func (l *lockers) Slots() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

// Reconnect calls f until it succeeds. If target is already being
// reconnected by another goroutine, Reconnect waits for it instead.
func Reconnect(target string, f func() error) {
	locker := l.getLocker(target)

	if !atomic.CompareAndSwapUint32(locker, 0, 1) {
		for atomic.LoadUint32(locker) == 1 {
			time.Sleep(RetryInterval / 10)
		}
		return
	}
	defer atomic.StoreUint32(locker, 0)

	for retries := 1; ; retries++ {
		err := f()
		if err == nil {
			if retries > 1 {
				log.Infof("%s reconnected after %d attempts", target, retries)
			}
			return
		}

		log.Warnf("%s connection lost, retry #%d in %s: %v", target, retries, RetryInterval, err)
		time.Sleep(RetryInterval)
	}
}
