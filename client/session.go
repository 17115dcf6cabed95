// Package client provides the authenticated API client for the wardwatch
// nurse dashboard backend. It includes session token storage, a single
// refresh-and-retry cycle on expired credentials, and normalizers that turn
// inconsistent server payloads into canonical patient and profile records.
package client

import (
	"encoding/json"
	"fmt"
	"sync"
)

// TokenKind names one of the keys persisted by a Session
type TokenKind string

const (
	AccessToken  TokenKind = "accessToken"
	RefreshToken TokenKind = "refreshToken"
	UserBlob     TokenKind = "user"
)

// SessionKeys lists every key a Session persists
var SessionKeys = []string{string(AccessToken), string(RefreshToken), string(UserBlob)}

// TokenPair holds an access and refresh token. Either may be empty.
type TokenPair struct {
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Storage is the persistence medium behind a Session
type Storage interface {
	// Load returns the value for key, or "" if it is not stored
	Load(key string) (string, error)

	// Store writes a value for key
	Store(key, value string) error

	// Remove deletes the given keys. Missing keys are not an error.
	Remove(keys ...string) error
}

// Session is the process-wide view of the stored credentials and the cached
// user display blob.
type Session struct {
	storage Storage
}

// NewSession creates a Session over the given storage.
// A nil storage falls back to an in-memory one.
func NewSession(storage Storage) *Session {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	return &Session{storage: storage}
}

// Get returns the stored value for kind, or "" if absent
func (s *Session) Get(kind TokenKind) (string, error) {
	return s.storage.Load(string(kind))
}

// AccessToken returns the stored access token, or "" on absence or error
func (s *Session) AccessToken() string {
	v, _ := s.Get(AccessToken)
	return v
}

// RefreshToken returns the stored refresh token, or "" on absence or error
func (s *Session) RefreshToken() string {
	v, _ := s.Get(RefreshToken)
	return v
}

// Tokens returns both stored tokens
func (s *Session) Tokens() (TokenPair, error) {
	access, err := s.Get(AccessToken)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.Get(RefreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// SetTokens writes the non-empty fields of pair. An empty field never erases
// a previously stored token.
func (s *Session) SetTokens(pair TokenPair) error {
	if pair.AccessToken != "" {
		if err := s.storage.Store(string(AccessToken), pair.AccessToken); err != nil {
			return fmt.Errorf("failed to store access token: %w", err)
		}
	}
	if pair.RefreshToken != "" {
		if err := s.storage.Store(string(RefreshToken), pair.RefreshToken); err != nil {
			return fmt.Errorf("failed to store refresh token: %w", err)
		}
	}
	return nil
}

// User returns the cached user blob, or nil if none is stored
func (s *Session) User() (json.RawMessage, error) {
	v, err := s.Get(UserBlob)
	if err != nil || v == "" {
		return nil, err
	}
	return json.RawMessage(v), nil
}

// SetUser caches the user display blob. An empty blob is ignored.
func (s *Session) SetUser(blob json.RawMessage) error {
	if len(blob) == 0 {
		return nil
	}
	if err := s.storage.Store(string(UserBlob), string(blob)); err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}
	return nil
}

// Clear removes both tokens and the user blob
func (s *Session) Clear() error {
	return s.storage.Remove(SessionKeys...)
}

// IsLoggedIn returns true if an access token is stored
func (s *Session) IsLoggedIn() bool {
	return s.AccessToken() != ""
}

// MemoryStorage is an in-memory Storage, useful for tests and short-lived
// processes.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (m *MemoryStorage) Load(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key], nil
}

func (m *MemoryStorage) Store(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStorage) Remove(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

// Len returns the number of stored keys
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}
