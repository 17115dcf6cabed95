package client_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/panyam/wardwatch/client"
	"github.com/panyam/wardwatch/devserver"
)

func startDevServer(t *testing.T, config devserver.Config) (*devserver.Server, string) {
	t.Helper()
	config.PathPrefix = "/api"
	config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s := devserver.New(config)
	if err := devserver.Seed(s); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return s, ts.URL + "/api"
}

func TestHTTP_NurseJourney(t *testing.T) {
	shapes := []devserver.TokenShape{devserver.ShapeCamel, devserver.ShapeSnake, devserver.ShapeNested}

	for _, shape := range shapes {
		t.Run(string(shape), func(t *testing.T) {
			srv, baseURL := startDevServer(t, devserver.Config{TokenShape: shape, PatientEnvelope: devserver.EnvelopeData})
			ctx := context.Background()
			c := client.NewAuthClient(baseURL, nil)

			result, err := c.Login(ctx, devserver.DemoEmail, devserver.DemoPassword)
			if err != nil {
				t.Fatalf("Login() error = %v", err)
			}
			if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
				t.Fatalf("Login() tokens = %+v", result.Tokens)
			}
			if len(result.User) == 0 {
				t.Error("Login() should store the nurse blob")
			}

			patients, err := c.ListPatients(ctx)
			if err != nil {
				t.Fatalf("ListPatients() error = %v", err)
			}
			if len(patients) != 3 {
				t.Fatalf("got %d patients, want 3", len(patients))
			}
			for _, p := range patients {
				if p.ID == nil || p.Name == client.Placeholder || p.Room == client.Placeholder {
					t.Errorf("patient not normalized: %+v", p)
				}
				if p.LastSeen.Timestamp == nil || p.LastSeen.Temp == nil {
					t.Errorf("vitals not normalized for %s: %+v", p.Name, p.LastSeen)
				}
			}

			// Revoked access token: one refresh, one retry, no visible error
			srv.RevokeAccessTokens()
			before := c.Session().RefreshToken()
			profile, err := c.FetchProfile(ctx)
			if err != nil {
				t.Fatalf("FetchProfile() error = %v", err)
			}
			if profile.DisplayName() != "Sarah Chen" {
				t.Errorf("DisplayName() = %q", profile.DisplayName())
			}
			if n := srv.Hits(devserver.RouteRefresh); n != 1 {
				t.Errorf("refresh hits = %d, want 1", n)
			}
			if n := srv.Hits(devserver.RouteProfile); n != 2 {
				t.Errorf("profile hits = %d, want 2", n)
			}
			if got := c.Session().RefreshToken(); got != before {
				t.Error("refresh token should be kept when the server does not rotate it")
			}

			if err := c.Logout(ctx); err != nil {
				t.Fatalf("Logout() error = %v", err)
			}
			if c.IsLoggedIn() || srv.RefreshTokenCount() != 0 {
				t.Error("Logout() should clear the session and revoke the refresh token")
			}
		})
	}
}

func TestHTTP_RotatedRefreshTokenStored(t *testing.T) {
	srv, baseURL := startDevServer(t, devserver.Config{RotateRefreshTokens: true})
	ctx := context.Background()
	c := client.NewAuthClient(baseURL, nil)

	if _, err := c.Login(ctx, devserver.DemoEmail, devserver.DemoPassword); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	before := c.Session().RefreshToken()

	srv.RevokeAccessTokens()
	if _, err := c.ListPatients(ctx); err != nil {
		t.Fatalf("ListPatients() error = %v", err)
	}
	if got := c.Session().RefreshToken(); got == before || got == "" {
		t.Error("rotated refresh token should replace the stored one")
	}
}

func TestHTTP_ExpiredSessionSurfaces401(t *testing.T) {
	srv, baseURL := startDevServer(t, devserver.Config{})
	ctx := context.Background()
	c := client.NewAuthClient(baseURL, nil)

	if _, err := c.Login(ctx, devserver.DemoEmail, devserver.DemoPassword); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	srv.RevokeAccessTokens()
	srv.ExpireRefreshTokens()

	_, err := c.ListPatients(ctx)
	if !client.IsUnauthorized(err) {
		t.Fatalf("ListPatients() error = %v, want 401", err)
	}
	if n := srv.Hits(devserver.RoutePatients); n != 1 {
		t.Errorf("patients hits = %d, want 1 (no retry after failed refresh)", n)
	}
	// The session is left for the caller to clear
	if !c.IsLoggedIn() {
		t.Error("a failed refresh must not erase the session")
	}
}

func TestHTTP_LoginErrors(t *testing.T) {
	_, baseURL := startDevServer(t, devserver.Config{})
	c := client.NewAuthClient(baseURL, nil)

	_, err := c.Login(context.Background(), devserver.DemoEmail, "wrong")
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 401 {
		t.Fatalf("Login() error = %v, want 401 APIError", err)
	}
	if c.IsLoggedIn() {
		t.Error("failed login must not store anything")
	}

	_, err = c.Login(context.Background(), "", "")
	if client.StatusOf(err) != 400 {
		t.Errorf("Login() with empty fields status = %d, want 400", client.StatusOf(err))
	}
}

func TestHTTP_UnreachableServer(t *testing.T) {
	c := client.NewAuthClient("http://127.0.0.1:1", nil)
	c.Session().SetTokens(client.TokenPair{AccessToken: "a", RefreshToken: "r"})

	_, err := c.ListPatients(context.Background())
	if err == nil {
		t.Fatal("expected transport error")
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		t.Errorf("transport failure should not be an APIError: %v", err)
	}
}

func TestHTTP_CallerHeadersReachServer(t *testing.T) {
	var seen http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	c := client.NewAuthClient(ts.URL, nil)
	c.Session().SetTokens(client.TokenPair{AccessToken: "a", RefreshToken: "r"})

	header := http.Header{}
	header.Set("Accept", "application/vnd.ward+json")
	header.Set("X-Ward", "4B")
	if _, err := c.Execute(context.Background(), &client.Request{Method: http.MethodGet, URL: "/nurse/patients", Header: header}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if got := seen.Get("Accept"); got != "application/vnd.ward+json" {
		t.Errorf("Accept = %q, want caller value", got)
	}
	if got := seen.Get("X-Ward"); got != "4B" {
		t.Errorf("X-Ward = %q, want 4B", got)
	}
	if got := seen.Get("Authorization"); got != "Bearer a" {
		t.Errorf("Authorization = %q, want Bearer a", got)
	}

	if _, err := c.Execute(context.Background(), &client.Request{Method: http.MethodGet, URL: "/nurse/patients"}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := seen.Get("Accept"); got != "application/json" {
		t.Errorf("default Accept = %q, want application/json", got)
	}
}
