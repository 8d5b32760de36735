// Package auth manages the persisted credential and the local session:
// who the current user is and which organization they are working in.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Credentials is the persisted login state.
type Credentials struct {
	Token          string `json:"token"`
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
}

// Session provides read access to the current actor and organization, and
// owns the credential file. It is safe for concurrent use.
type Session struct {
	path string

	mu    sync.RWMutex
	creds Credentials
}

// Open loads the session from the credential file at path. A missing file
// yields an empty (logged-out) session, not an error.
func Open(path string) (*Session, error) {
	s := &Session{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	if err := json.Unmarshal(data, &s.creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	return s, nil
}

// Save persists new credentials.
func (s *Session) Save(creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating credential dir: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	s.creds = creds
	return nil
}

// Token returns the bearer token, empty when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.Token
}

// ActorID returns the current user id, empty when logged out.
func (s *Session) ActorID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.UserID
}

// OrganizationID returns the selected organization id.
func (s *Session) OrganizationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.OrganizationID
}

// LoggedIn reports whether a token is present.
func (s *Session) LoggedIn() bool {
	return s.Token() != ""
}

// Clear removes the credential file and empties the session. Called when
// the API rejects the token. Safe to call when already logged out.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds = Credentials{}

	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing credentials: %w", err)
	}
	return nil
}
