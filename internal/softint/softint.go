// Package softint implements cooperative, signal-driven shutdown. SIGINT,
// SIGTERM, and SIGHUP increment a process-wide counter; the first N-1
// signals (default N=3) only set a flag that sync loops poll between
// parts, preserving sync-record consistency (an interrupted PUSH leaves a
// detectable incomplete record). The Nth signal exits immediately.
//
// The process-wide counter is exposed only through this narrow API
// (Enable/Check/Reset), never as a bare package variable.
package softint

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	log "github.com/msolo/go-bis/glug"
)

// DefaultCount is the number of soft signals tolerated before a hard exit.
const DefaultCount = 3

var (
	count     int64
	softLimit int64 = DefaultCount
	stopCh    chan struct{}
)

// Enable installs the signal handler with the given soft-interrupt count.
// It returns a function to disable the handler and restore default
// signal behavior; callers typically defer it from main().
func Enable(softCount int) func() {
	if softCount <= 0 {
		softCount = DefaultCount
	}
	atomic.StoreInt64(&softLimit, int64(softCount))
	atomic.StoreInt64(&count, 0)

	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	stop := make(chan struct{})
	stopCh = stop

	go func() {
		for {
			select {
			case sig := <-sigCh:
				n := atomic.AddInt64(&count, 1)
				limit := atomic.LoadInt64(&softLimit)
				if n >= limit {
					log.Warningf("received %s %d/%d times: exiting immediately", sig, n, limit)
					os.Exit(130)
				}
				log.Warningf("received %s %d/%d times: finishing current part, then stopping", sig, n, limit)
			case <-stop:
				signal.Stop(sigCh)
				return
			}
		}
	}()

	return func() {
		if stopCh != nil {
			close(stopCh)
			stopCh = nil
		}
	}
}

// Check reports whether a soft interrupt has been requested.
func Check() bool {
	return atomic.LoadInt64(&count) > 0
}

// Reset clears the counter; used by tests and by long-running daemons
// between discrete operations.
func Reset() {
	atomic.StoreInt64(&count, 0)
}

// Count returns how many soft-interrupt signals have been observed.
func Count() int {
	return int(atomic.LoadInt64(&count))
}
