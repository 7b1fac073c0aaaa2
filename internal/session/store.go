package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Session is the signed-in identity the agents act as.
type Session struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
	Role   string `json:"role"` // "customer" or "driver"
	Name   string `json:"name"`
}

// Store holds the process-wide session with an explicit lifecycle and a
// change subscription, instead of ambient global access. present=false on
// notification means the session was cleared.
type Store interface {
	Load() (Session, bool)
	Save(Session) error
	Clear() error
	Subscribe(fn func(s Session, present bool)) (unsubscribe func())
}

type notifier struct {
	mu   sync.Mutex
	subs map[int]func(Session, bool)
	next int
}

func (n *notifier) subscribe(fn func(Session, bool)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]func(Session, bool))
	}
	id := n.next
	n.next++
	n.subs[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

func (n *notifier) notify(s Session, present bool) {
	n.mu.Lock()
	fns := make([]func(Session, bool), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()
	for _, fn := range fns {
		fn(s, present)
	}
}

// MemoryStore keeps the session in memory; tests and short-lived CLIs.
type MemoryStore struct {
	mu      sync.RWMutex
	s       Session
	present bool
	notifier
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s, m.present
}

func (m *MemoryStore) Save(s Session) error {
	m.mu.Lock()
	m.s, m.present = s, true
	m.mu.Unlock()
	m.notify(s, true)
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	m.s, m.present = Session{}, false
	m.mu.Unlock()
	m.notify(Session{}, false)
	return nil
}

func (m *MemoryStore) Subscribe(fn func(Session, bool)) func() {
	return m.subscribe(fn)
}

// FileStore persists the session as a JSON file so the agents survive a
// restart without re-authenticating.
type FileStore struct {
	path string
	mu   sync.Mutex
	notifier
}

func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

// DefaultPath places the session file under the user config dir.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "freight-booking", "session.json")
}

func (f *FileStore) Load() (Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := os.ReadFile(f.path)
	if err != nil {
		return Session{}, false
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil || s.Token == "" {
		return Session{}, false
	}
	return s, true
}

func (f *FileStore) Save(s Session) error {
	f.mu.Lock()
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		f.mu.Unlock()
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		f.mu.Unlock()
		return err
	}
	if err := os.WriteFile(f.path, b, 0o600); err != nil {
		f.mu.Unlock()
		return err
	}
	f.mu.Unlock()
	f.notify(s, true)
	return nil
}

func (f *FileStore) Clear() error {
	f.mu.Lock()
	err := os.Remove(f.path)
	f.mu.Unlock()
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	f.notify(Session{}, false)
	return nil
}

func (f *FileStore) Subscribe(fn func(Session, bool)) func() {
	return f.subscribe(fn)
}
