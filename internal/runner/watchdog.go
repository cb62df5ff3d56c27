package runner

import (
	"os"
	"syscall"
	"time"
)

// watch arms a timer that sends SIGKILL to pid after d unless done is
// closed first. This is the Go translation of
// original_source/judger/src/main.rs's WaitUsageTimeout: a watchdog thread
// racing the child's own exit, signalled over a channel so a recycled pid
// is never killed after the original process has already exited.
func watch(pid int, d time.Duration, done <-chan struct{}) {
	timer := time.NewTimer(d)
	go func() {
		select {
		case <-done:
			timer.Stop()
		case <-timer.C:
			if proc, err := os.FindProcess(pid); err == nil {
				_ = proc.Signal(syscall.SIGKILL)
			}
		}
	}()
}
