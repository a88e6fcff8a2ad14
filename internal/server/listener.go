package server

import (
	"fmt"
	"net"

	"github.com/rediscore/server/internal/eventloop"
	"github.com/rediscore/server/internal/resp"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Listener owns the raw non-blocking listening socket and every accepted
// connection's readiness registration, grounded on
// _examples/original_source/src/event_loop/event_loop.c's accept/read/write
// callbacks and ported to golang.org/x/sys/unix instead of net.Conn so the
// single event-loop goroutine (spec §5) is the only thing ever touching a
// connection's descriptor.
type Listener struct {
	loop   *eventloop.Loop
	engine *Engine
	logger *zap.Logger
	fd     int
}

// NewListener wires listener plumbing on top of an already-constructed
// event loop and engine, installing itself as the engine's byte sink.
func NewListener(loop *eventloop.Loop, engine *Engine, logger *zap.Logger) *Listener {
	l := &Listener{loop: loop, engine: engine, logger: logger, fd: -1}
	engine.SetSender(l.send)
	loop.RegisterTick(engine.Tick)
	return l
}

// Listen creates, binds and starts listening on host:port and registers
// the accept callback with the event loop.
func (l *Listener) Listen(host string, port int) error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}

	addr := unix.SockaddrInet4{Port: port}
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		ip = net.IPv4zero
	}
	copy(addr.Addr[:], ip.To4())

	if err := unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return fmt.Errorf("bind: %w", err)
	}
	if err := unix.Listen(fd, 511); err != nil {
		unix.Close(fd)
		return fmt.Errorf("listen: %w", err)
	}

	l.fd = fd
	return l.loop.Register(fd, eventloop.Readable, l.onAcceptable)
}

// Close releases the listening socket.
func (l *Listener) Close() error {
	if l.fd < 0 {
		return nil
	}
	l.loop.Remove(l.fd)
	return unix.Close(l.fd)
}

func (l *Listener) onAcceptable(fd int, events uint32) {
	for {
		connFD, sa, err := unix.Accept4(fd, unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			l.logger.Warn("accept failed", zap.Error(err))
			return
		}

		s := NewSession(connFD, describeSockaddr(sa))
		l.engine.RegisterSession(s)
		if err := l.loop.Register(connFD, eventloop.Readable, l.makeConnHandler(s)); err != nil {
			l.logger.Warn("register connection failed", zap.Error(err))
			unix.Close(connFD)
			l.engine.DropSession(s)
		}
	}
}

func (l *Listener) makeConnHandler(s *Session) eventloop.Handler {
	return func(fd int, events uint32) {
		if events&uint32(eventloop.Hangup) != 0 || events&uint32(eventloop.ErrEvent) != 0 {
			l.closeSession(s)
			return
		}
		if events&uint32(eventloop.Readable) != 0 {
			l.handleReadable(s)
		}
		if s.closed {
			l.closeSession(s)
			return
		}
		if events&uint32(eventloop.Writable) != 0 {
			l.flushOutbuf(s)
		}
	}
}

const readChunk = 16384

func (l *Listener) handleReadable(s *Session) {
	buf := make([]byte, readChunk)
	for {
		n, err := unix.Read(s.fd, buf)
		if n > 0 {
			s.dec.Feed(buf[:n])
		}
		if err != nil {
			if err == unix.EAGAIN {
				break
			}
			l.closeSession(s)
			return
		}
		if n == 0 {
			l.closeSession(s)
			return
		}
		if n < len(buf) {
			break
		}
	}

	for {
		v, ok, err := s.dec.Next()
		if err != nil {
			l.send(s.fd, resp.Encode(nil, resp.MakeError(err.Error())))
			l.closeSession(s)
			return
		}
		if !ok {
			return
		}
		if v.Type != resp.TypeArray || v.IsNull {
			l.send(s.fd, resp.Encode(nil, resp.MakeError("ERR Protocol error: expected command array")))
			continue
		}
		l.engine.Dispatch(s, v.Array)
		if s.closed {
			return
		}
	}
}

// send is Engine's byte sink: append to the session's outgoing buffer and
// attempt to drain it immediately, matching spec §5's rule that the peer
// write is non-blocking and never stalls the loop.
func (l *Listener) send(fd int, b []byte) {
	s, ok := l.engine.SessionByFD(fd)
	if !ok {
		return
	}
	s.outbuf = append(s.outbuf, b...)
	l.flushOutbuf(s)
}

func (l *Listener) flushOutbuf(s *Session) {
	for len(s.outbuf) > 0 {
		n, err := unix.Write(s.fd, s.outbuf)
		if n > 0 {
			s.outbuf = s.outbuf[n:]
		}
		if err != nil {
			if err == unix.EAGAIN {
				l.loop.Modify(s.fd, uint32(eventloop.Readable)|uint32(eventloop.Writable)) //nolint:errcheck
				return
			}
			l.closeSession(s)
			return
		}
		if n == 0 {
			break
		}
	}
	if len(s.outbuf) > 0 {
		s.outbuf = append([]byte(nil), s.outbuf...)
	} else {
		l.loop.Modify(s.fd, uint32(eventloop.Readable)) //nolint:errcheck
	}
}

func (l *Listener) closeSession(s *Session) {
	if s.closed {
		return
	}
	s.closed = true
	l.loop.Remove(s.fd)
	unix.Close(s.fd)
	l.engine.DropSession(s)
}

func describeSockaddr(sa unix.Sockaddr) string {
	if a, ok := sa.(*unix.SockaddrInet4); ok {
		return fmt.Sprintf("%d.%d.%d.%d:%d", a.Addr[0], a.Addr[1], a.Addr[2], a.Addr[3], a.Port)
	}
	return "unknown"
}
