package proxy

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"vavoo-proxy/catalog"
	"vavoo-proxy/metrics"
	"vavoo-proxy/proxy/client"
	"vavoo-proxy/utils/safemap"
)

// Session is one relayed client connection. It owns a single upstream
// response for its whole lifetime.
type Session struct {
	ID         string
	RemoteAddr string
	Channel    catalog.Channel
	OpenedAt   time.Time

	state   atomic.Int32
	cancel  context.CancelFunc
	mu      sync.Mutex
	body    io.Closer
	release sync.Once
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// stream moves OPEN to STREAMING.
func (s *Session) stream() bool {
	return s.state.CompareAndSwap(int32(StateOpen), int32(StateStreaming))
}

// finish sets the terminal state. Only the first call wins.
func (s *Session) finish(to State) bool {
	for {
		cur := State(s.state.Load())
		if cur.Terminal() {
			return false
		}
		if s.state.CompareAndSwap(int32(cur), int32(to)) {
			return true
		}
	}
}

func (s *Session) attach(body io.Closer) {
	s.mu.Lock()
	s.body = body
	s.mu.Unlock()
}

// releaseUpstream aborts the upstream request and closes its body, once.
func (s *Session) releaseUpstream() {
	s.release.Do(func() {
		s.cancel()
		s.mu.Lock()
		body := s.body
		s.mu.Unlock()
		if body != nil {
			_ = body.Close()
		}
	})
}

// SessionInfo is a read-only view of an open session.
type SessionInfo struct {
	ID         string
	RemoteAddr string
	ChannelID  string
	State      State
	OpenedAt   time.Time
}

// SessionRegistry tracks the sessions that are currently open.
type SessionRegistry struct {
	sessions *safemap.Map[string, *Session]
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: safemap.New[string, *Session]()}
}

func (r *SessionRegistry) open(sc *client.StreamClient, ch catalog.Channel, cancel context.CancelFunc) *Session {
	s := &Session{
		ID:         sc.ID,
		RemoteAddr: sc.RemoteAddr(),
		Channel:    ch,
		OpenedAt:   time.Now(),
		cancel:     cancel,
	}
	s.state.Store(int32(StateOpen))

	r.sessions.Set(s.ID, s)
	metrics.ActiveSessions.Inc()
	return s
}

// close releases the upstream and forgets the session.
func (r *SessionRegistry) close(s *Session) {
	s.finish(StateClosedNormal)
	s.releaseUpstream()

	if _, ok := r.sessions.GetAndDel(s.ID); ok {
		metrics.ActiveSessions.Dec()
		metrics.SessionsClosed.WithLabelValues(s.State().String()).Inc()
	}
}

func (r *SessionRegistry) Len() int {
	return r.sessions.Len()
}

func (r *SessionRegistry) List() []SessionInfo {
	out := make([]SessionInfo, 0, r.sessions.Len())
	r.sessions.ForEach(func(_ string, s *Session) bool {
		out = append(out, SessionInfo{
			ID:         s.ID,
			RemoteAddr: s.RemoteAddr,
			ChannelID:  s.Channel.ID,
			State:      s.State(),
			OpenedAt:   s.OpenedAt,
		})
		return true
	})
	return out
}
