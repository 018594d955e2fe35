// Package transcript persists what shell sessions executed: one directory
// per session holding session.json and an append-only history.jsonl.
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionState describes one recorded session.
type SessionState struct {
	SessionID   string    `json:"session_id"`
	Transport   string    `json:"transport"`
	Units       int       `json:"units"`
	Failures    int       `json:"failures"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// Entry is one executed top-level unit.
type Entry struct {
	Seq       int       `json:"seq"`
	Source    string    `json:"source"`
	Output    string    `json:"output,omitempty"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

// Store manages the session directories under a base directory.
type Store struct {
	baseDir string
}

// NewStore creates a Store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Open starts recording a new session. An empty id gets a random one.
func (s *Store) Open(id, transport string) (*Recorder, error) {
	if id == "" {
		id = uuid.New().String()
	}
	dir := filepath.Join(s.baseDir, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory %s: %w", dir, err)
	}

	now := time.Now()
	r := &Recorder{
		dir: dir,
		state: &SessionState{
			SessionID: id,
			Transport: transport,
			StartedAt: now,
		},
	}
	if err := r.saveSession(); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadSession loads the state of session id.
func (s *Store) LoadSession(id string) (*SessionState, error) {
	path := filepath.Join(s.baseDir, id, "session.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}

	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse session state: %w", err)
	}
	return &state, nil
}

// Sessions returns every recorded session, oldest first.
func (s *Store) Sessions() ([]SessionState, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read transcript directory: %w", err)
	}

	var sessions []SessionState
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		state, err := s.LoadSession(e.Name())
		if err != nil {
			continue // not a session directory
		}
		sessions = append(sessions, *state)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})
	return sessions, nil
}

// History reads all entries of session id.
func (s *Store) History(id string) ([]Entry, error) {
	path := filepath.Join(s.baseDir, id, "history.jsonl")

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // Skip malformed entries
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}
	return entries, nil
}

// RecentHistory returns the last n entries of session id.
func (s *Store) RecentHistory(id string, n int) ([]Entry, error) {
	entries, err := s.History(id)
	if err != nil {
		return nil, err
	}
	if len(entries) <= n {
		return entries, nil
	}
	return entries[len(entries)-n:], nil
}

// Recorder appends the units of one session. It is safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	dir   string
	state *SessionState
}

// SessionID returns the id of the recorded session.
func (r *Recorder) SessionID() string {
	return r.state.SessionID
}

// Record appends one executed unit and updates the session counters.
func (r *Recorder) Record(source, output string, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.Units++
	if !success {
		r.state.Failures++
	}
	entry := Entry{
		Seq:       r.state.Units,
		Source:    source,
		Output:    output,
		Success:   success,
		Timestamp: time.Now(),
	}
	if err := r.appendHistory(entry); err != nil {
		return err
	}
	return r.saveSession()
}

func (r *Recorder) appendHistory(entry Entry) error {
	path := filepath.Join(r.dir, "history.jsonl")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write history entry: %w", err)
	}
	return nil
}

func (r *Recorder) saveSession() error {
	r.state.LastUpdated = time.Now()
	path := filepath.Join(r.dir, "session.json")

	data, err := json.MarshalIndent(r.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write session state: %w", err)
	}
	return nil
}
