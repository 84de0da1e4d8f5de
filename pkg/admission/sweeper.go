package admission

import (
	"sync"
	"time"
)

// sweeper periodically evicts idle quota cells. It runs one goroutine that
// wakes every interval, invokes the sweep callback, and exits cooperatively:
// closing done causes the goroutine to finish its current cycle and return
// without sweeping again, and stop blocks until that exit.
type sweeper struct {
	interval time.Duration
	sweep    func()

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func newSweeper(interval time.Duration, sweep func()) *sweeper {
	return &sweeper{
		interval: interval,
		sweep:    sweep,
		done:     make(chan struct{}),
	}
}

// start launches the sweep goroutine.
func (s *sweeper) start() {
	s.wg.Add(1)
	go s.run()
}

func (s *sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Re-check the stop signal so a tick racing shutdown does not
			// sweep after stop has been requested.
			select {
			case <-s.done:
				return
			default:
			}
			s.sweep()
		case <-s.done:
			return
		}
	}
}

// stop signals the goroutine and waits for it to exit. Safe to call more
// than once.
func (s *sweeper) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}
