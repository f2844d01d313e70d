package server

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tecnicofs/tfs/internal/engine"
	"github.com/tecnicofs/tfs/internal/logger"
	"github.com/tecnicofs/tfs/internal/metrics"
	"github.com/tecnicofs/tfs/internal/wire"
)

// replyChannel is the per-session reply pipe, opened once at mount and
// reused until unmount or shutdown closes it (Open Question 2).
type replyChannel = io.WriteCloser

// ReplyOpener opens the client-provided reply path for writing. The
// production opener targets a named pipe the client already created and
// is blocked reading; tests substitute an in-memory opener.
type ReplyOpener func(path string) (replyChannel, error)

// OpenReplyFIFO opens path write-only, the Go analogue of the original
// server's open(reply_path, O_WRONLY).
func OpenReplyFIFO(path string) (replyChannel, error) {
	return os.OpenFile(path, os.O_WRONLY, 0)
}

// MaxSessions is the fixed size of the session pool; it is a compile-time
// constant and is not configurable.
const MaxSessions = 10

// Server is the session-multiplexed front end: one rendezvous reader and
// MaxSessions consumer workers sharing a single engine.
type Server struct {
	eng       *engine.Engine
	log       *logger.Logger
	metrics   *metrics.Metrics
	openReply ReplyOpener

	sessions []*session

	mu      sync.Mutex
	running bool // global status: true == ON
}

// New builds a Server bound to eng. metrics and opener may be nil; a nil
// opener defaults to OpenReplyFIFO.
func New(eng *engine.Engine, log *logger.Logger, m *metrics.Metrics, opener ReplyOpener) *Server {
	if log == nil {
		log = logger.Nop()
	}
	if opener == nil {
		opener = OpenReplyFIFO
	}
	s := &Server{
		eng:       eng,
		log:       log,
		metrics:   m,
		openReply: opener,
		running:   true,
	}
	s.sessions = make([]*session, MaxSessions)
	for i := range s.sessions {
		s.sessions[i] = newSession(i)
	}
	return s
}

func (s *Server) isShuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.running
}

func (s *Server) beginShutdown() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.wake()
	}
}

func (s *Server) activeCount() int {
	n := 0
	for _, sess := range s.sessions {
		sess.mu.Lock()
		if sess.status == sessionActive {
			n++
		}
		sess.mu.Unlock()
	}
	return n
}

func (s *Server) reportActiveSessions() {
	if s.metrics != nil {
		s.metrics.SetActiveSessions(s.activeCount())
	}
}

// Run reads framed commands from rendezvous until it closes or a
// shutdown command is processed, demultiplexing onto the session
// workers. It returns once the producer and every worker have exited
// (errgroup fan-in, the Go-idiomatic replacement for the original's
// pthread_join loop).
func (s *Server) Run(ctx context.Context, rendezvous io.Reader) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, sess := range s.sessions {
		sess := sess
		g.Go(func() error {
			return s.workerLoop(ctx, sess)
		})
	}
	g.Go(func() error {
		return s.producerLoop(ctx, rendezvous)
	})

	return g.Wait()
}

// producerLoop reads and demultiplexes frames until EOF, a fatal I/O
// error, or shutdown is observed (§4.G).
func (s *Server) producerLoop(ctx context.Context, r io.Reader) error {
	for {
		if s.isShuttingDown() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		op, err := wire.ReadOpCode(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if err := s.dispatchFrame(op, r); err != nil {
			s.log.Warn("failed to dispatch frame", "op_code", op.String(), "error", err)
		}
	}
}

// dispatchFrame decodes one frame's payload and posts it to the right
// session, or replies -1 directly when mount finds no free slot (§4.G).
func (s *Server) dispatchFrame(op wire.OpCode, r io.Reader) error {
	if op == wire.OpMount {
		req, err := wire.ReadMountRequest(r)
		if err != nil {
			return err
		}
		return s.dispatchMount(req)
	}

	// Every non-mount payload starts with session_id; each Read*Request
	// decodes it together with the rest of the payload.
	cmd := &command{op: op}
	var sessionID int32
	var err error
	switch op {
	case wire.OpUnmount:
		var req wire.UnmountRequest
		req, err = wire.ReadUnmountRequest(r)
		sessionID = req.SessionID
	case wire.OpOpen:
		var req wire.OpenRequest
		req, err = wire.ReadOpenRequest(r)
		sessionID, cmd.name, cmd.flags = req.SessionID, req.Name, req.Flags
	case wire.OpClose:
		var req wire.CloseRequest
		req, err = wire.ReadCloseRequest(r)
		sessionID, cmd.handle = req.SessionID, req.Handle
	case wire.OpWrite:
		var req wire.WriteRequest
		req, err = wire.ReadWriteRequest(r)
		sessionID, cmd.handle, cmd.data = req.SessionID, req.Handle, req.Data
	case wire.OpRead:
		var req wire.ReadRequest
		req, err = wire.ReadReadRequest(r)
		sessionID, cmd.handle, cmd.length = req.SessionID, req.Handle, req.Len
	case wire.OpShutdown:
		var req wire.ShutdownRequest
		req, err = wire.ReadShutdownRequest(r)
		sessionID = req.SessionID
	default:
		sessionID, err = wire.ReadInt32Reply(r)
	}
	if err != nil {
		return err
	}
	if sessionID < 0 || int(sessionID) >= len(s.sessions) {
		return errBadSessionID
	}

	s.sessions[int(sessionID)].post(cmd)
	return nil
}

// dispatchMount finds a free slot by linear scan (§4.G); if none is
// free, the producer itself replies -1 on the client's channel rather
// than queuing the mount.
func (s *Server) dispatchMount(req wire.MountRequest) error {
	for _, sess := range s.sessions {
		sess.mu.Lock()
		if sess.status == sessionFree {
			sess.status = sessionActive
			sess.replyPath = req.ReplyPath
			sess.pending = &command{op: wire.OpMount, replyPath: req.ReplyPath}
			sess.cv.Signal()
			sess.mu.Unlock()
			return nil
		}
		sess.mu.Unlock()
	}

	ch, err := s.openReply(req.ReplyPath)
	if err != nil {
		return err
	}
	defer ch.Close()
	return wire.WriteInt32Reply(ch, -1)
}

// workerLoop is one session's consumer: wake, dispatch by op-code,
// reply, loop until unmount/shutdown frees the slot or the server
// begins shutting down (§4.G "Consumer worker per session").
func (s *Server) workerLoop(ctx context.Context, sess *session) error {
	// A fresh trace id per mount lets log lines from this worker be told
	// apart across reconnects on the same session slot, the way a
	// request-correlation id would; it never appears on the wire (the
	// wire session id, per §3/§6, is the small int clients already see).
	wlog := s.log.With("session_id", sess.id, "trace_id", uuid.NewString())

	for {
		cmd, ok := sess.take(s.isShuttingDown)
		if !ok {
			return nil
		}

		switch cmd.op {
		case wire.OpMount:
			wlog = s.log.With("session_id", sess.id, "trace_id", uuid.NewString())
			if err := s.handleMount(sess, cmd); err != nil {
				wlog.Warn("mount reply failed", "error", err)
				s.freeSession(sess)
			}
			s.reportActiveSessions()
		case wire.OpUnmount:
			s.handleUnmount(sess)
			s.reportActiveSessions()
		case wire.OpOpen:
			s.handleOpen(sess, cmd)
		case wire.OpClose:
			s.handleClose(sess, cmd)
		case wire.OpWrite:
			s.handleWrite(sess, cmd)
		case wire.OpRead:
			s.handleRead(sess, cmd)
		case wire.OpShutdown:
			s.handleShutdown(sess, cmd)
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (s *Server) handleMount(sess *session, cmd *command) error {
	ch, err := s.openReply(cmd.replyPath)
	if err != nil {
		return err
	}
	sess.reply = ch
	return wire.WriteInt32Reply(ch, int32(sess.id))
}

func (s *Server) handleUnmount(sess *session) {
	if sess.reply != nil {
		_ = wire.WriteInt32Reply(sess.reply, 0)
		sess.reply.Close()
	}
	s.freeSession(sess)
}

func (s *Server) freeSession(sess *session) {
	sess.mu.Lock()
	sess.status = sessionFree
	sess.reply = nil
	sess.replyPath = ""
	sess.mu.Unlock()
}

func (s *Server) handleOpen(sess *session, cmd *command) {
	handle, err := s.eng.Open(cmd.name, engine.OpenFlags(int(cmd.flags)))
	if err != nil {
		s.checkReply(sess, wire.WriteInt32Reply(sess.reply, -1))
		return
	}
	s.checkReply(sess, wire.WriteInt32Reply(sess.reply, int32(handle)))
}

func (s *Server) handleClose(sess *session, cmd *command) {
	err := s.eng.Close(int(cmd.handle))
	result := int32(0)
	if err != nil {
		result = -1
	}
	s.checkReply(sess, wire.WriteInt32Reply(sess.reply, result))
}

func (s *Server) handleWrite(sess *session, cmd *command) {
	n, err := s.eng.Write(int(cmd.handle), cmd.data)
	if err != nil {
		s.checkReply(sess, wire.WriteWriteReply(sess.reply, -1))
		return
	}
	s.checkReply(sess, wire.WriteWriteReply(sess.reply, int64(n)))
}

func (s *Server) handleRead(sess *session, cmd *command) {
	buf := make([]byte, cmd.length)
	n, err := s.eng.Read(int(cmd.handle), buf)
	if err != nil {
		s.checkReply(sess, wire.WriteReadReply(sess.reply, nil, true))
		return
	}
	s.checkReply(sess, wire.WriteReadReply(sess.reply, buf[:n], false))
}

// handleShutdown runs the barrier, replies, closes the session's
// channel, and flips the global status OFF, waking every other worker
// and the producer (§4.G "Shutdown ordering", IP7).
func (s *Server) handleShutdown(sess *session, cmd *command) {
	err := s.eng.DestroyAfterAllClosed()
	result := int32(0)
	if err != nil {
		result = -1
	}
	if sess.reply != nil {
		_ = wire.WriteInt32Reply(sess.reply, result)
		sess.reply.Close()
	}
	s.freeSession(sess)
	s.beginShutdown()
}

// checkReply reclaims the session slot on a write failure (a broken
// client channel) without terminating the server (§4.G "A broken client
// channel").
func (s *Server) checkReply(sess *session, err error) {
	if err != nil {
		s.log.Warn("reply write failed, reclaiming session", "session_id", sess.id, "error", err)
		if sess.reply != nil {
			sess.reply.Close()
		}
		s.freeSession(sess)
	}
}
