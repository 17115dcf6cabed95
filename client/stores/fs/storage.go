// Package fs provides a file system-based session store for the wardwatch client.
package fs

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/panyam/wardwatch/client"
)

// FSSessionStore keeps the session keys of every backend in one JSON file.
// Every change is written through to disk so a session survives restarts.
type FSSessionStore struct {
	mu      sync.RWMutex
	path    string
	servers map[string]map[string]string
}

// sessionFile is the JSON structure stored on disk
type sessionFile struct {
	Servers map[string]map[string]string `json:"servers"`
}

// NewFSSessionStore creates a new FS-based session store.
// If path is empty, defaults to ~/.config/<appName>/session.json
func NewFSSessionStore(path string, appName string) (*FSSessionStore, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("could not determine config directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
		if appName == "" {
			appName = "wardwatch"
		}
		path = filepath.Join(configDir, appName, "session.json")
	}

	store := &FSSessionStore{
		path:    path,
		servers: make(map[string]map[string]string),
	}

	// Load existing sessions if file exists
	if err := store.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return store, nil
}

// load reads sessions from disk
func (s *FSSessionStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var file sessionFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse session file: %w", err)
	}

	s.servers = file.Servers
	if s.servers == nil {
		s.servers = make(map[string]map[string]string)
	}

	return nil
}

// normalizeURL reduces a server URL to scheme://host for use as a key
func normalizeURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}

	if u.Scheme == "" {
		u.Scheme = "https"
	}

	return fmt.Sprintf("%s://%s", u.Scheme, u.Host), nil
}

// Storage returns the client.Storage for one backend. URLs that differ only
// in path share a session.
func (s *FSSessionStore) Storage(serverURL string) (client.Storage, error) {
	key, err := normalizeURL(serverURL)
	if err != nil {
		return nil, err
	}
	return &serverStorage{store: s, server: key}, nil
}

// ListServers returns all server URLs with a stored session
func (s *FSSessionStore) ListServers() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	servers := make([]string, 0, len(s.servers))
	for k := range s.servers {
		servers = append(servers, k)
	}
	sort.Strings(servers)

	return servers, nil
}

// Path returns the path to the session file
func (s *FSSessionStore) Path() string {
	return s.path
}

// saveLocked persists sessions to disk. Caller must hold s.mu.
func (s *FSSessionStore) saveLocked() error {
	// Ensure directory exists with restricted permissions
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file := sessionFile{Servers: s.servers}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	// Write with restricted permissions (owner read/write only)
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}

	return nil
}

type serverStorage struct {
	store  *FSSessionStore
	server string
}

func (st *serverStorage) Load(key string) (string, error) {
	st.store.mu.RLock()
	defer st.store.mu.RUnlock()
	return st.store.servers[st.server][key], nil
}

func (st *serverStorage) Store(key, value string) error {
	st.store.mu.Lock()
	defer st.store.mu.Unlock()

	values, ok := st.store.servers[st.server]
	if !ok {
		values = make(map[string]string)
		st.store.servers[st.server] = values
	}
	values[key] = value
	return st.store.saveLocked()
}

func (st *serverStorage) Remove(keys ...string) error {
	st.store.mu.Lock()
	defer st.store.mu.Unlock()

	values, ok := st.store.servers[st.server]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(values, k)
	}
	if len(values) == 0 {
		delete(st.store.servers, st.server)
	}
	return st.store.saveLocked()
}
