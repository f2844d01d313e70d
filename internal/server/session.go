// Package server implements the session-multiplexed request/response
// front end (component G): a producer demultiplexes framed commands off a
// single rendezvous channel onto MAX_SESSIONS consumer workers, one per
// mounted client, each driving the engine and replying on its own
// per-session reply channel.
package server

import (
	"sync"

	"github.com/tecnicofs/tfs/internal/wire"
)

// sessionStatus tracks one session slot's occupancy (§4.G).
type sessionStatus int

const (
	sessionFree sessionStatus = iota
	sessionActive
)

// command is a decoded frame waiting to be consumed by its session's
// worker. Only the fields relevant to op are populated.
type command struct {
	op        wire.OpCode
	replyPath string // mount only
	name      string // open only
	flags     int32  // open only
	handle    int32  // close/read/write
	data      []byte // write only
	length    int64  // read only
}

// session is one slot of the bounded session pool: a mutex/condition-
// variable pair guarding a single pending command, plus the status and
// reply-channel state the producer and this session's worker hand off
// through it (§4.G "Session slot").
type session struct {
	id int

	mu      sync.Mutex
	cv      *sync.Cond
	status  sessionStatus
	pending *command

	replyPath string
	reply     replyChannel // open across mount..unmount, per Open Question 2
}

func newSession(id int) *session {
	s := &session{id: id, status: sessionFree}
	s.cv = sync.NewCond(&s.mu)
	return s
}

// post hands cmd to the session and wakes its worker. Caller must not be
// holding s.mu.
func (s *session) post(cmd *command) {
	s.mu.Lock()
	s.pending = cmd
	s.cv.Signal()
	s.mu.Unlock()
}

// wake broadcasts without posting a command, used to unstick a worker
// blocked in take() during shutdown (§4.G "Shutdown ordering").
func (s *session) wake() {
	s.mu.Lock()
	s.cv.Broadcast()
	s.mu.Unlock()
}

// take blocks until a command is pending or shuttingDown reports true,
// in which case it returns nil, false.
func (s *session) take(shuttingDown func() bool) (*command, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.pending == nil && !shuttingDown() {
		s.cv.Wait()
	}
	if s.pending == nil {
		return nil, false
	}
	cmd := s.pending
	s.pending = nil
	return cmd, true
}
