package server

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/rediscore/server/internal/eventloop"
	"github.com/rediscore/server/internal/persistence"
	"github.com/rediscore/server/internal/resp"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// ReplicaHandshake drives the follower side of spec §4.10's four-step
// handshake (PING, REPLCONF listening-port, REPLCONF capa, PSYNC) and then
// hands the now-streaming connection to the event loop so the ongoing
// propagated command stream is processed on the same single goroutine as
// every client connection, per spec §5.
//
// The handshake itself runs over a plain blocking net.Conn: it happens
// once at startup before the loop is serving traffic, which keeps the
// exchange simple to reason about without needing a state machine spread
// across several readiness callbacks.
type ReplicaHandshake struct {
	loop    *eventloop.Loop
	engine  *Engine
	logger  *zap.Logger
	host    string
	port    int
	ownPort int
}

// NewReplicaHandshake prepares a handshake against host:port. ownPort is
// reported to the leader via REPLCONF listening-port.
func NewReplicaHandshake(loop *eventloop.Loop, engine *Engine, logger *zap.Logger, host string, port, ownPort int) *ReplicaHandshake {
	return &ReplicaHandshake{loop: loop, engine: engine, logger: logger, host: host, port: port, ownPort: ownPort}
}

// Start performs the handshake synchronously, loads the received snapshot
// into the engine's keyspace, then registers the connection's descriptor
// with the event loop to receive the ongoing propagated write stream.
func (h *ReplicaHandshake) Start() error {
	addr := net.JoinHostPort(h.host, strconv.Itoa(h.port))
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial leader %s: %w", addr, err)
	}

	r := bufio.NewReader(conn)

	if err := sendAndExpectOK(conn, r, "PING"); err != nil {
		conn.Close()
		return err
	}
	h.engine.follower.HandshakeStep = 1

	if err := sendAndExpectOK(conn, r, "REPLCONF", "listening-port", strconv.Itoa(h.ownPort)); err != nil {
		conn.Close()
		return err
	}
	h.engine.follower.HandshakeStep = 2

	if err := sendAndExpectOK(conn, r, "REPLCONF", "capa", "eof", "capa", "psync2"); err != nil {
		conn.Close()
		return err
	}
	h.engine.follower.HandshakeStep = 3

	if _, err := conn.Write(resp.SerializeCommand("PSYNC", []resp.Value{
		resp.MakeBulkStringFromString("?"),
		resp.MakeBulkStringFromString("-1"),
	})); err != nil {
		conn.Close()
		return err
	}

	line, err := readSimpleLine(r)
	if err != nil {
		conn.Close()
		return fmt.Errorf("read FULLRESYNC: %w", err)
	}
	fields := strings.Fields(strings.TrimPrefix(line, "+FULLRESYNC "))
	if len(fields) != 2 {
		conn.Close()
		return fmt.Errorf("malformed FULLRESYNC reply %q", line)
	}
	offset, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		conn.Close()
		return fmt.Errorf("malformed FULLRESYNC offset %q", fields[1])
	}

	bulkHeader, err := readSimpleLine(r)
	if err != nil {
		conn.Close()
		return fmt.Errorf("read snapshot header: %w", err)
	}
	if len(bulkHeader) == 0 || bulkHeader[0] != '$' {
		conn.Close()
		return fmt.Errorf("malformed snapshot header %q", bulkHeader)
	}
	length, err := strconv.ParseInt(bulkHeader[1:], 10, 64)
	if err != nil || length < 0 {
		conn.Close()
		return fmt.Errorf("malformed snapshot length %q", bulkHeader)
	}

	h.engine.follower.BeginSnapshot(length)
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		conn.Close()
		return fmt.Errorf("read snapshot body: %w", err)
	}
	h.engine.follower.FeedSnapshot(length)

	if err := persistence.Decode(bytes.NewReader(payload), h.engine.Store()); err != nil {
		conn.Close()
		return fmt.Errorf("decode snapshot: %w", err)
	}
	h.engine.follower.ReplicaOffset = offset

	h.logger.Info("replica handshake complete",
		zap.String("leader", addr),
		zap.Int64("snapshot_bytes", length),
		zap.Int64("offset", offset),
	)

	return h.attachStream(conn, r)
}

// attachStream dup's conn's descriptor, switches it to non-blocking and
// registers it with the event loop so the propagated command stream that
// follows FULLRESYNC is read on the single event-loop goroutine rather
// than a dedicated one (spec §5).
func (h *ReplicaHandshake) attachStream(conn net.Conn, r *bufio.Reader) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return fmt.Errorf("replica connection is not TCP")
	}
	file, err := tcpConn.File()
	if err != nil {
		conn.Close()
		return fmt.Errorf("dup replica descriptor: %w", err)
	}
	fd, err := unix.Dup(int(file.Fd()))
	file.Close()
	conn.Close()
	if err != nil {
		return fmt.Errorf("dup replica descriptor: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return fmt.Errorf("set nonblocking: %w", err)
	}

	link := &replicaLink{engine: h.engine, fd: fd, dec: resp.NewDecoder(), session: NewSession(fd, fmt.Sprintf("%s:%d", h.host, h.port))}
	// registered so the engine's sender can find the session by fd when
	// cmdReplconf answers GETACK.
	h.engine.RegisterSession(link.session)

	// carry over anything already buffered by the bufio.Reader during the
	// handshake read calls before the descriptor was handed to the loop.
	if buffered := r.Buffered(); buffered > 0 {
		leftover := make([]byte, buffered)
		r.Read(leftover) //nolint:errcheck
		link.dec.Feed(leftover)
		link.applyReady()
	}

	return h.loop.Register(fd, eventloop.Readable, link.onReadable)
}

// replicaLink processes the ongoing propagated-write stream from a
// leader: each decoded command is applied directly against the keyspace
// via the shared dispatch table, bypassing the normal per-client reply
// path (REPLCONF GETACK is the sole exception, which cmdReplconf answers
// through the engine's sender on the link's descriptor).
type replicaLink struct {
	engine  *Engine
	fd      int
	dec     *resp.Decoder
	session *Session
}

const replicaReadChunk = 16384

func (l *replicaLink) onReadable(fd int, events uint32) {
	buf := make([]byte, replicaReadChunk)
	for {
		n, err := unix.Read(l.fd, buf)
		if n > 0 {
			l.dec.Feed(buf[:n])
		}
		if err != nil {
			if err == unix.EAGAIN {
				break
			}
			l.engine.logger.Warn("replica link read failed", zap.Error(err))
			return
		}
		if n == 0 {
			l.engine.logger.Warn("replica link closed by leader")
			return
		}
		if n < len(buf) {
			break
		}
	}
	l.applyReady()
}

func (l *replicaLink) applyReady() {
	for {
		before := l.dec.Buffered()
		v, ok, err := l.dec.Next()
		if err != nil {
			l.engine.logger.Warn("replica stream protocol error", zap.Error(err))
			return
		}
		if !ok {
			return
		}
		consumed := before - l.dec.Buffered()

		if v.Type == resp.TypeArray && !v.IsNull && len(v.Array) > 0 {
			name := upperName(v.Array[0].Str)
			l.engine.execOne(l.session, name, v.Array[1:])
		}
		if l.engine.follower != nil {
			l.engine.follower.Advance(int64(consumed))
		}
	}
}

func sendAndExpectOK(w io.Writer, r *bufio.Reader, name string, args ...string) error {
	vals := make([]resp.Value, len(args))
	for i, a := range args {
		vals[i] = resp.MakeBulkStringFromString(a)
	}
	if _, err := w.Write(resp.SerializeCommand(name, vals)); err != nil {
		return fmt.Errorf("send %s: %w", name, err)
	}
	line, err := readSimpleLine(r)
	if err != nil {
		return fmt.Errorf("read %s reply: %w", name, err)
	}
	if len(line) == 0 || (line[0] != '+' && line[0] != ':') {
		return fmt.Errorf("%s rejected: %s", name, line)
	}
	return nil
}

// readSimpleLine reads one CRLF-terminated line, used only for the
// handshake's line-oriented replies (+PONG, +OK, +FULLRESYNC ..., the
// $<len> snapshot header) before the connection switches to framed RESP.
func readSimpleLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
