package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/common/logger"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/config"
)

// DefaultSessionID is used when a caller supplies no session id.
const DefaultSessionID = "default"

// Session owns one conversation window. turnMu serializes turns so at most
// one mutation is in flight per session; reads go through the window's own
// lock and never wait on a turn.
type Session struct {
	ID        string
	Window    *Window
	CreatedAt time.Time

	turnMu   sync.Mutex
	lastUsed time.Time
	inflight int
}

// Manager maps session ids to windows. Unrelated sessions never contend on
// anything but the map lookup.
type Manager struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	windowSize  int
	maxSessions int
	idleTTL     time.Duration
	counter     TokenCounter
	now         func() time.Time

	stop chan struct{}
	done chan struct{}
}

func NewManager(cfg config.MemoryConfig, counter TokenCounter) *Manager {
	return &Manager{
		sessions:    make(map[string]*Session),
		windowSize:  cfg.WindowSize,
		maxSessions: cfg.MaxSessions,
		idleTTL:     time.Duration(cfg.IdleTTLSeconds) * time.Second,
		counter:     counter,
		now:         time.Now,
	}
}

func normalizeID(id string) string {
	if id == "" {
		return DefaultSessionID
	}
	return id
}

func (m *Manager) get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(id)
}

func (m *Manager) getLocked(id string) *Session {
	id = normalizeID(id)
	s, ok := m.sessions[id]
	if !ok {
		now := m.now()
		s = &Session{ID: id, Window: NewWindow(m.windowSize, m.counter), CreatedAt: now, lastUsed: now}
		m.sessions[id] = s
		return s
	}
	s.lastUsed = m.now()
	return s
}

// Window returns the session's window, creating the session when needed.
func (m *Manager) Window(id string) *Window {
	return m.get(id).Window
}

// Acquire locks the session for one turn and returns its window and the
// release function. Callers must release exactly once.
func (m *Manager) Acquire(id string) (*Window, func()) {
	m.mu.Lock()
	s := m.getLocked(id)
	s.inflight++
	m.mu.Unlock()

	s.turnMu.Lock()
	var once sync.Once
	return s.Window, func() {
		once.Do(func() {
			s.turnMu.Unlock()
			m.mu.Lock()
			s.inflight--
			s.lastUsed = m.now()
			m.mu.Unlock()
		})
	}
}

// Peek returns the session's window without creating or touching the
// session. Unknown ids get a fresh, unregistered empty window.
func (m *Manager) Peek(id string) *Window {
	id = normalizeID(id)
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return NewWindow(m.windowSize, m.counter)
	}
	return s.Window
}

// Clear empties the session window once any in-flight turn has finished.
// Unknown sessions are a no-op.
func (m *Manager) Clear(id string) {
	id = normalizeID(id)
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		s.inflight++
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	s.turnMu.Lock()
	s.Window.Clear()
	s.turnMu.Unlock()

	m.mu.Lock()
	s.inflight--
	m.mu.Unlock()
}

// Delete forgets the session entirely.
func (m *Manager) Delete(id string) bool {
	id = normalizeID(id)
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	return ok
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// IDs lists session ids ordered by recency, most recent first.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].lastUsed.After(list[j].lastUsed) })
	ids := make([]string, len(list))
	for i, s := range list {
		ids[i] = s.ID
	}
	return ids
}

// Sweep drops sessions idle for longer than the idle TTL, then the least
// recently used ones beyond the session cap. Sessions with a turn in flight
// are kept. It returns the number removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	now := m.now()
	if m.idleTTL > 0 {
		for id, s := range m.sessions {
			if s.inflight == 0 && now.Sub(s.lastUsed) > m.idleTTL {
				delete(m.sessions, id)
				removed++
			}
		}
	}
	if m.maxSessions > 0 && len(m.sessions) > m.maxSessions {
		list := make([]*Session, 0, len(m.sessions))
		for _, s := range m.sessions {
			if s.inflight == 0 {
				list = append(list, s)
			}
		}
		sort.Slice(list, func(i, j int) bool { return list[i].lastUsed.Before(list[j].lastUsed) })
		for _, s := range list {
			if len(m.sessions) <= m.maxSessions {
				break
			}
			delete(m.sessions, s.ID)
			removed++
		}
	}
	if removed > 0 {
		logger.Debugf("memory: swept %d sessions, %d remain", removed, len(m.sessions))
	}
	return removed
}

// Start runs Sweep every interval until ctx is done or Close is called.
func (m *Manager) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stop, m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-t.C:
				m.Sweep()
			}
		}
	}()
}

// Close stops the sweeper and waits for it to exit.
func (m *Manager) Close() error {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}
