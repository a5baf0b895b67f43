//go:build linux

package sched

import (
	"time"

	"golang.org/x/sys/unix"
)

// eventfdWaker backs an interrupt-driven (non-POLLING) scheduler: the
// owning goroutine blocks in a poll() on the eventfd rather than
// busy-spinning, and any goroutine can wake it with a single write.
type eventfdWaker struct {
	fd int
}

func newEventfdWaker() (*eventfdWaker, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &eventfdWaker{fd: fd}, nil
}

func (w *eventfdWaker) Signal() {
	var buf [8]byte
	buf[7] = 1
	_, _ = unix.Write(w.fd, buf[:])
}

func (w *eventfdWaker) Wait(timeout time.Duration) bool {
	ms := -1
	if timeout > 0 {
		ms = int(timeout / time.Millisecond)
		if ms == 0 {
			ms = 1
		}
	}
	fds := []unix.PollFd{{Fd: int32(w.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, ms)
	if err != nil || n <= 0 {
		return false
	}
	var buf [8]byte
	_, _ = unix.Read(w.fd, buf[:])
	return true
}

func (w *eventfdWaker) Close() error {
	return unix.Close(w.fd)
}

func newWaker(interrupt bool) (waker, error) {
	if interrupt {
		return newEventfdWaker()
	}
	return newChanWaker(), nil
}
