package client

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

var errNoResponse = errors.New("transport returned no response")

// Endpoints are the backend paths, relative to the client's base URL
type Endpoints struct {
	Login    string
	Refresh  string
	Logout   string
	Profile  string
	Patients string
}

// DefaultEndpoints returns the paths served by the nurse dashboard backend
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:    "/auth/login",
		Refresh:  "/auth/refresh",
		Logout:   "/auth/logout",
		Profile:  "/nurse/profile",
		Patients: "/nurse/patients",
	}
}

// RequestIDHeader carries an id shared by every attempt of one call
const RequestIDHeader = "X-Request-ID"

// AuthClient talks to the nurse dashboard backend on behalf of one session.
// It is safe for concurrent use.
type AuthClient struct {
	baseURL   string
	session   *Session
	transport Transport
	endpoints Endpoints
	logger    *slog.Logger
	metrics   *Metrics

	sharedRefresh bool
	refreshGroup  singleflight.Group
}

// ClientOption configures an AuthClient
type ClientOption func(*AuthClient)

// WithTransport sets the transport used for every exchange
func WithTransport(t Transport) ClientOption {
	return func(c *AuthClient) {
		if t != nil {
			c.transport = t
		}
	}
}

// WithHTTPClient sends requests through the given *http.Client (for timeouts,
// TLS config, etc.)
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *AuthClient) {
		c.transport = NewHTTPTransport(client)
	}
}

// WithEndpoints overrides the backend paths. Empty fields keep their default.
func WithEndpoints(e Endpoints) ClientOption {
	return func(c *AuthClient) {
		if e.Login != "" {
			c.endpoints.Login = e.Login
		}
		if e.Refresh != "" {
			c.endpoints.Refresh = e.Refresh
		}
		if e.Logout != "" {
			c.endpoints.Logout = e.Logout
		}
		if e.Profile != "" {
			c.endpoints.Profile = e.Profile
		}
		if e.Patients != "" {
			c.endpoints.Patients = e.Patients
		}
	}
}

// WithLogger sets the logger. Token values are never logged.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *AuthClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records attempts and refreshes in m
func WithMetrics(m *Metrics) ClientOption {
	return func(c *AuthClient) {
		c.metrics = m
	}
}

// WithSharedRefresh makes concurrent refreshes wait on a single in-flight
// request instead of each calling the refresh endpoint.
func WithSharedRefresh() ClientOption {
	return func(c *AuthClient) {
		c.sharedRefresh = true
	}
}

// NewAuthClient creates a client for the backend at baseURL (e.g.
// "https://example.com/api") using session for its tokens.
func NewAuthClient(baseURL string, session *Session, opts ...ClientOption) *AuthClient {
	if session == nil {
		session = NewSession(nil)
	}

	c := &AuthClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		session:   session,
		transport: NewHTTPTransport(nil),
		endpoints: DefaultEndpoints(),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the backend URL this client is configured for
func (c *AuthClient) BaseURL() string {
	return c.baseURL
}

// Session returns the session the client reads and writes
func (c *AuthClient) Session() *Session {
	return c.session
}

// IsLoggedIn returns true if the session holds an access token
func (c *AuthClient) IsLoggedIn() bool {
	return c.session.IsLoggedIn()
}

func (c *AuthClient) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// attempt is the retry state of a single Execute call
type attempt int

const (
	firstAttempt attempt = iota
	retriedOnce
)

func (a attempt) String() string {
	if a == firstAttempt {
		return "first"
	}
	return "retry"
}

// Execute sends req with the current access token. If the server answers the
// first attempt with 401, the access token is refreshed and req is sent again
// exactly once, with the same method and body. A 401 on the retry, or a
// failed refresh, is returned to the caller. Only use it for requests that are
// safe to repeat.
func (c *AuthClient) Execute(ctx context.Context, req *Request) (any, error) {
	requestID := uuid.NewString()
	log := c.logger.With(
		slog.String("request_id", requestID),
		slog.String("method", req.Method),
		slog.String("url", c.url(req.URL)),
	)

	for a := firstAttempt; ; a++ {
		resp, err := c.send(ctx, req, requestID)
		if err != nil {
			c.metrics.observeAttempt(0, a)
			log.DebugContext(ctx, "request failed", slog.String("attempt", a.String()), slog.Any("error", err))
			return nil, err
		}
		if resp == nil {
			c.metrics.observeAttempt(0, a)
			return nil, errNoResponse
		}
		c.metrics.observeAttempt(resp.StatusCode, a)
		log.DebugContext(ctx, "request completed",
			slog.String("attempt", a.String()),
			slog.Int("status", resp.StatusCode),
		)

		if resp.StatusCode == http.StatusUnauthorized && a == firstAttempt {
			log.DebugContext(ctx, "access token rejected, refreshing")
			if _, err := c.Refresh(ctx); err != nil {
				return nil, err
			}
			continue
		}

		return Interpret(resp, MsgUnauthorized)
	}
}

// send performs one attempt. Caller headers are preserved except
// Authorization, which always carries the current access token.
func (c *AuthClient) send(ctx context.Context, req *Request, requestID string) (*Response, error) {
	header := req.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Set("Authorization", "Bearer "+c.session.AccessToken())
	if header.Get(RequestIDHeader) == "" {
		header.Set(RequestIDHeader, requestID)
	}

	return c.transport.Do(ctx, &Request{
		Method: req.Method,
		URL:    c.url(req.URL),
		Header: header,
		Body:   req.Body,
	})
}

// postJSON sends an unauthenticated POST
func (c *AuthClient) postJSON(ctx context.Context, path string, body any) (*Response, error) {
	resp, err := c.transport.Do(ctx, &Request{
		Method: http.MethodPost,
		URL:    c.url(path),
		Body:   body,
	})
	if err == nil && resp == nil {
		return nil, errNoResponse
	}
	return resp, err
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LoginResult is what a successful login stored
type LoginResult struct {
	Tokens TokenPair
	// User is the display blob from the response, nil if there was none
	User json.RawMessage
	// Body is the full login response
	Body any
}

// Login authenticates with email and password and stores the issued tokens
// and user blob. A successful response without any token is a *ContractError
// and leaves the session untouched.
func (c *AuthClient) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	resp, err := c.postJSON(ctx, c.endpoints.Login, loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	body, err := Interpret(resp, MsgInvalidCredentials)
	if err != nil {
		return nil, err
	}

	tokens := ExtractTokens(body)
	if tokens.AccessToken == "" && tokens.RefreshToken == "" {
		return nil, &ContractError{Op: "login", Missing: "tokens"}
	}

	user, err := extractUser(body)
	if err != nil {
		return nil, err
	}

	if err := c.session.SetTokens(tokens); err != nil {
		return nil, err
	}
	if err := c.session.SetUser(user); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "logged in", slog.Bool("has_refresh_token", tokens.RefreshToken != ""))
	return &LoginResult{Tokens: tokens, User: user, Body: body}, nil
}

// Refresh exchanges the stored refresh token for a new access token. With no
// stored refresh token it fails with a 401 *APIError wrapping
// ErrMissingRefreshToken and makes no network call. When the server does not
// rotate the refresh token the stored one is kept.
func (c *AuthClient) Refresh(ctx context.Context) (TokenPair, error) {
	if !c.sharedRefresh {
		return c.refresh(ctx)
	}

	// The shared call outlives any one caller; each caller stops waiting when
	// its own context is done.
	ch := c.refreshGroup.DoChan("refresh", func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return TokenPair{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return TokenPair{}, res.Err
		}
		return res.Val.(TokenPair), nil
	}
}

func (c *AuthClient) refresh(ctx context.Context) (pair TokenPair, err error) {
	defer func() { c.metrics.observeRefresh(err) }()

	current := c.session.RefreshToken()
	if current == "" {
		return TokenPair{}, &APIError{
			Status:  http.StatusUnauthorized,
			Message: MsgMissingRefresh,
			Err:     ErrMissingRefreshToken,
		}
	}

	resp, err := c.postJSON(ctx, c.endpoints.Refresh, refreshRequest{RefreshToken: current})
	if err != nil {
		return TokenPair{}, err
	}

	body, err := Interpret(resp, MsgUnauthorized)
	if err != nil {
		return TokenPair{}, err
	}

	pair = ExtractTokens(body)
	if pair.AccessToken == "" {
		return TokenPair{}, &ContractError{Op: "refresh", Missing: "access token"}
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = current
	}

	if err := c.session.SetTokens(pair); err != nil {
		return TokenPair{}, err
	}

	c.logger.DebugContext(ctx, "access token refreshed")
	return pair, nil
}

// Logout asks the server to invalidate the stored refresh token and then
// clears the session. The server call is best effort; only a failure to clear
// local storage is returned.
func (c *AuthClient) Logout(ctx context.Context) error {
	if token := c.session.RefreshToken(); token != "" {
		c.invalidateRemote(ctx, token)
	}
	return c.session.Clear()
}

// invalidateRemote posts token to the logout endpoint and discards the outcome
func (c *AuthClient) invalidateRemote(ctx context.Context, token string) {
	resp, err := c.postJSON(ctx, c.endpoints.Logout, refreshRequest{RefreshToken: token})
	if err != nil {
		c.logger.WarnContext(ctx, "logout request failed", slog.Any("error", err))
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WarnContext(ctx, "logout rejected by server", slog.Int("status", resp.StatusCode))
	}
}

// FetchProfile returns the logged in nurse's profile
func (c *AuthClient) FetchProfile(ctx context.Context) (Profile, error) {
	body, err := c.Execute(ctx, &Request{Method: http.MethodGet, URL: c.endpoints.Profile})
	if err != nil {
		return nil, err
	}
	return profileFromBody(body), nil
}

// UpdateProfile sends the non-nil fields of patch and returns the updated
// profile
func (c *AuthClient) UpdateProfile(ctx context.Context, patch ProfilePatch) (Profile, error) {
	body, err := c.Execute(ctx, &Request{
		Method: http.MethodPatch,
		URL:    c.endpoints.Profile,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   patch,
	})
	if err != nil {
		return nil, err
	}
	return profileFromBody(body), nil
}

// ListPatients returns the nurse's assigned patients in canonical form
func (c *AuthClient) ListPatients(ctx context.Context) ([]Patient, error) {
	body, err := c.Execute(ctx, &Request{Method: http.MethodGet, URL: c.endpoints.Patients})
	if err != nil {
		return nil, err
	}
	return NormalizePatients(body), nil
}
