// Package signal provides a graceful interrupt listener for the daemon
// entrypoint, matching the call-site shape used throughout the teacher's
// daemons (`interrupt := signal.InterruptListener(); <-interrupt`).
package signal

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fluxnode-io/flux-indexer/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.FIDX)

var (
	interruptChannel      chan os.Signal
	shutdownRequestChannel = make(chan struct{})
	interruptSignals       = []os.Signal{os.Interrupt, syscall.SIGTERM}

	once sync.Once
	done chan struct{}
)

// InterruptListener starts a goroutine listening for SIGINT/SIGTERM (or an
// explicit shutdown request) and returns a channel that's closed once one
// arrives. A second signal forces an immediate os.Exit, in case graceful
// shutdown hangs.
func InterruptListener() <-chan struct{} {
	once.Do(func() {
		done = make(chan struct{})
		interruptChannel = make(chan os.Signal, 1)
		signal.Notify(interruptChannel, interruptSignals...)

		go func() {
			select {
			case sig := <-interruptChannel:
				log.Infof("received signal (%s), shutting down...", sig)
			case <-shutdownRequestChannel:
				log.Infof("shutdown requested, shutting down...")
			}
			close(done)

			// A second interrupt forces immediate exit.
			for {
				select {
				case sig := <-interruptChannel:
					log.Infof("received signal (%s) again, forcing shutdown", sig)
					os.Exit(1)
				case <-shutdownRequestChannel:
					os.Exit(1)
				}
			}
		}()
	})
	return done
}

// RequestShutdown programmatically triggers the same shutdown path as a
// received signal, used by tests and by fatal-condition handling (e.g.
// the Reorg Controller's max-depth halt).
func RequestShutdown() {
	select {
	case shutdownRequestChannel <- struct{}{}:
	default:
	}
}
