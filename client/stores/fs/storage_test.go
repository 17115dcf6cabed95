package fs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/panyam/wardwatch/client"
)

func newTestStore(t *testing.T) (*FSSessionStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.json")
	store, err := NewFSSessionStore(path, "")
	if err != nil {
		t.Fatalf("NewFSSessionStore() error = %v", err)
	}
	return store, path
}

func TestFSSessionStore_SetAndGet(t *testing.T) {
	store, _ := newTestStore(t)

	storage, err := store.Storage("http://localhost:8080/api")
	if err != nil {
		t.Fatalf("Storage() error = %v", err)
	}
	session := client.NewSession(storage)

	// Initially empty
	if got := session.AccessToken(); got != "" {
		t.Errorf("expected empty access token, got %q", got)
	}

	if err := session.SetTokens(client.TokenPair{AccessToken: "access", RefreshToken: "refresh"}); err != nil {
		t.Fatalf("SetTokens() error = %v", err)
	}
	if err := session.SetUser(json.RawMessage(`{"name":"Sarah"}`)); err != nil {
		t.Fatalf("SetUser() error = %v", err)
	}

	if got := session.AccessToken(); got != "access" {
		t.Errorf("AccessToken = %v, want access", got)
	}
	if got := session.RefreshToken(); got != "refresh" {
		t.Errorf("RefreshToken = %v, want refresh", got)
	}
	user, _ := session.User()
	if string(user) != `{"name":"Sarah"}` {
		t.Errorf("User = %s", user)
	}
}

func TestFSSessionStore_URLNormalization(t *testing.T) {
	store, _ := newTestStore(t)

	a, _ := store.Storage("http://localhost:8080/api/v1")
	a.Store("accessToken", "token")

	// Should find with a different path on the same origin
	b, _ := store.Storage("http://localhost:8080/different/path")
	if got, _ := b.Load("accessToken"); got != "token" {
		t.Error("expected to find session with normalized URL")
	}

	// Different port is a different backend
	c, _ := store.Storage("http://localhost:9090")
	if got, _ := c.Load("accessToken"); got != "" {
		t.Error("sessions of different servers must not mix")
	}
}

func TestFSSessionStore_ClearRemovesAllKeys(t *testing.T) {
	store, _ := newTestStore(t)

	storage, _ := store.Storage("http://localhost:8080")
	other, _ := store.Storage("http://localhost:9090")
	session := client.NewSession(storage)

	session.SetTokens(client.TokenPair{AccessToken: "a", RefreshToken: "r"})
	session.SetUser(json.RawMessage(`{}`))
	other.Store("accessToken", "other")

	if err := session.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	for _, key := range client.SessionKeys {
		if v, _ := storage.Load(key); v != "" {
			t.Errorf("%s = %q after Clear()", key, v)
		}
	}
	if v, _ := other.Load("accessToken"); v != "other" {
		t.Error("other server's session should still exist")
	}

	servers, _ := store.ListServers()
	if len(servers) != 1 || servers[0] != "http://localhost:9090" {
		t.Errorf("ListServers() = %v", servers)
	}
}

func TestFSSessionStore_SurvivesReload(t *testing.T) {
	store1, path := newTestStore(t)

	storage, _ := store1.Storage("http://localhost:8080")
	client.NewSession(storage).SetTokens(client.TokenPair{AccessToken: "persisted-token", RefreshToken: "refresh-token"})

	// Verify file was created
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("session file not created")
	}

	// Create new store from same file
	store2, err := NewFSSessionStore(path, "")
	if err != nil {
		t.Fatalf("NewFSSessionStore() error = %v", err)
	}

	storage2, _ := store2.Storage("http://localhost:8080")
	tokens, err := client.NewSession(storage2).Tokens()
	if err != nil {
		t.Fatalf("Tokens() error = %v", err)
	}
	if tokens.AccessToken != "persisted-token" {
		t.Errorf("AccessToken = %v, want persisted-token", tokens.AccessToken)
	}
	if tokens.RefreshToken != "refresh-token" {
		t.Errorf("RefreshToken = %v, want refresh-token", tokens.RefreshToken)
	}
}

func TestFSSessionStore_FilePermissions(t *testing.T) {
	store, path := newTestStore(t)

	storage, _ := store.Storage("http://localhost:8080")
	storage.Store("accessToken", "token")

	// Check file permissions (should be 0600)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		t.Errorf("file permissions = %o, want 0600", mode)
	}
}

func TestFSSessionStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	os.WriteFile(path, []byte("{not json"), 0600)

	if _, err := NewFSSessionStore(path, ""); err == nil {
		t.Error("expected error for corrupt session file")
	}
}

func TestFSSessionStore_DefaultPath(t *testing.T) {
	// Test with empty path - should use default
	store, err := NewFSSessionStore("", "testapp")
	if err != nil {
		t.Fatalf("NewFSSessionStore() error = %v", err)
	}

	path := store.Path()
	if path == "" {
		t.Error("path should not be empty")
	}

	// Should contain app name in path
	if filepath.Base(filepath.Dir(path)) != "testapp" {
		t.Logf("path = %s (app name dir may vary by platform)", path)
	}
}
