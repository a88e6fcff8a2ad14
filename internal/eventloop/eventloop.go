// Package eventloop implements spec component C7: a level-triggered
// readiness multiplexer over file descriptors plus a periodic 100ms
// timer descriptor, grounded on
// _examples/original_source/src/event_loop/event_loop.c's
// epoll_create1/epoll_ctl/epoll_wait/timerfd_create design and ported to
// Go via golang.org/x/sys/unix rather than a hand-rolled cgo binding.
package eventloop

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Event mask bits, mirroring the reference's epoll event flags.
const (
	Readable = unix.EPOLLIN
	Writable = unix.EPOLLOUT
	Hangup   = unix.EPOLLHUP
	ErrEvent = unix.EPOLLERR
)

// Handler is invoked once per ready descriptor per tick with the mask of
// events that fired.
type Handler func(fd int, events uint32)

// TickInterval is the periodic timer period spec §4.7 mandates.
const TickInterval = 100 // milliseconds

// Loop owns the epoll instance, the timerfd, and the fd->handler table.
// It is not safe for concurrent Register/Run calls from multiple
// goroutines; per spec §5 exactly one goroutine drives it.
type Loop struct {
	epollFD int
	timerFD int

	mu       sync.Mutex
	handlers map[int]Handler

	running      bool
	stopCh       chan struct{}
	tickCallback func()

	logger *zap.Logger
}

// New creates a Loop with its epoll instance and a 100ms periodic timer
// descriptor already armed.
func New(logger *zap.Logger) (*Loop, error) {
	epollFD, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	timerFD, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		unix.Close(epollFD)
		return nil, fmt.Errorf("timerfd_create: %w", err)
	}

	spec := &unix.ItimerSpec{
		Interval: unix.NsecToTimespec(int64(TickInterval) * 1_000_000),
		Value:    unix.NsecToTimespec(int64(TickInterval) * 1_000_000),
	}
	if err := unix.TimerfdSettime(timerFD, 0, spec, nil); err != nil {
		unix.Close(timerFD)
		unix.Close(epollFD)
		return nil, fmt.Errorf("timerfd_settime: %w", err)
	}

	l := &Loop{
		epollFD:  epollFD,
		timerFD:  timerFD,
		handlers: make(map[int]Handler),
		stopCh:   make(chan struct{}),
		logger:   logger,
	}

	if err := l.Register(timerFD, Readable, l.drainTimer); err != nil {
		l.Close()
		return nil, err
	}

	return l, nil
}

// TimerFD exposes the periodic timer descriptor so callers can register
// their own tick callback via RegisterTick instead of talking to epoll
// directly.
func (l *Loop) TimerFD() int { return l.timerFD }

// RegisterTick installs fn to run once per 100ms tick, on top of the
// internal drain-the-timerfd bookkeeping.
func (l *Loop) RegisterTick(fn func()) {
	l.mu.Lock()
	l.tickCallback = fn
	l.mu.Unlock()
}

func (l *Loop) drainTimer(fd int, events uint32) {
	var buf [8]byte
	unix.Read(fd, buf[:]) //nolint:errcheck // timerfd expiration counter, value unused

	l.mu.Lock()
	cb := l.tickCallback
	l.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// Register binds fd, an event mask, and a callback. The descriptor is put
// in level-triggered mode (epoll's default), matching the reference.
func (l *Loop) Register(fd int, mask uint32, handler Handler) error {
	l.mu.Lock()
	l.handlers[fd] = handler
	l.mu.Unlock()

	ev := unix.EpollEvent{Fd: int32(fd), Events: mask}
	if err := unix.EpollCtl(l.epollFD, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		l.mu.Lock()
		delete(l.handlers, fd)
		l.mu.Unlock()
		return fmt.Errorf("epoll_ctl add: %w", err)
	}
	return nil
}

// Modify updates the event mask registered for fd.
func (l *Loop) Modify(fd int, mask uint32) error {
	ev := unix.EpollEvent{Fd: int32(fd), Events: mask}
	if err := unix.EpollCtl(l.epollFD, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll_ctl mod: %w", err)
	}
	return nil
}

// Remove deregisters fd. It does not close fd; callers own the
// descriptor's lifetime.
func (l *Loop) Remove(fd int) {
	l.mu.Lock()
	delete(l.handlers, fd)
	l.mu.Unlock()
	unix.EpollCtl(l.epollFD, unix.EPOLL_CTL_DEL, fd, nil) //nolint:errcheck
}

const maxEvents = 1024

// Run blocks, dispatching ready callbacks until Stop is called.
func (l *Loop) Run() {
	l.running = true
	events := make([]unix.EpollEvent, maxEvents)

	for l.running {
		n, err := unix.EpollWait(l.epollFD, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if l.logger != nil {
				l.logger.Error("epoll_wait failed", zap.Error(err))
			}
			return
		}

		select {
		case <-l.stopCh:
			return
		default:
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			l.mu.Lock()
			handler, ok := l.handlers[fd]
			l.mu.Unlock()
			if ok {
				handler(fd, events[i].Events)
			}
		}
	}
}

// Stop causes the next tick of Run to exit cleanly.
func (l *Loop) Stop() {
	l.running = false
	close(l.stopCh)
}

// Close releases the epoll and timer descriptors.
func (l *Loop) Close() error {
	unix.Close(l.timerFD)
	return unix.Close(l.epollFD)
}
