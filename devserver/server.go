// Package devserver is an in-memory nurse dashboard backend. It serves the
// same routes as the production API so the client can be exercised end to end
// in tests and from `wardwatch serve-dev`.
package devserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

// TokenShape selects how token pairs are laid out in auth responses
type TokenShape string

const (
	// ShapeCamel: {"accessToken", "refreshToken", "user"}
	ShapeCamel TokenShape = "camel"
	// ShapeSnake: {"access_token", "refresh_token", "nurse"}
	ShapeSnake TokenShape = "snake"
	// ShapeNested: {"tokens": {"accessToken", "refreshToken"}, "profile"}
	ShapeNested TokenShape = "nested"
)

// Patient list envelopes. EnvelopeBare returns a bare JSON array.
const (
	EnvelopeBare     = ""
	EnvelopePatients = "patients"
	EnvelopeData     = "data"
	EnvelopeResults  = "results"
)

// Route names, usable with Hits
const (
	RouteLogin         = "login"
	RouteRefresh       = "refresh"
	RouteLogout        = "logout"
	RouteProfile       = "profile"
	RouteUpdateProfile = "updateProfile"
	RoutePatients      = "patients"
)

// Default token lifetimes
const (
	DefaultAccessTokenExpiry  = 15 * time.Minute
	DefaultRefreshTokenExpiry = 7 * 24 * time.Hour
)

// Config configures a Server. Zero values get defaults.
type Config struct {
	// PathPrefix is prepended to every route, e.g. "/api"
	PathPrefix string

	JWTSecretKey string
	JWTIssuer    string

	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration

	TokenShape      TokenShape
	PatientEnvelope string

	// RotateRefreshTokens makes /auth/refresh return a new refresh token
	// and invalidate the old one. When false the refresh response carries
	// only an access token.
	RotateRefreshTokens bool

	Logger *slog.Logger
}

type nurseRecord struct {
	id           string
	email        string
	passwordHash []byte
	profile      map[string]any
}

type refreshEntry struct {
	nurseID   string
	expiresAt time.Time
}

// Server is the in-memory backend. It is safe for concurrent use.
type Server struct {
	config   Config
	router   *mux.Router
	validate *validator.Validate
	logger   *slog.Logger

	mu            sync.Mutex
	nurses        map[string]*nurseRecord // by lowercased email
	nursesByID    map[string]*nurseRecord
	refreshTokens map[string]refreshEntry
	patients      []map[string]any
	generation    int
	hits          map[string]int
}

// New creates a Server with no nurses and no patients
func New(config Config) *Server {
	if config.JWTSecretKey == "" {
		config.JWTSecretKey = uuid.NewString()
	}
	if config.AccessTokenExpiry == 0 {
		config.AccessTokenExpiry = DefaultAccessTokenExpiry
	}
	if config.RefreshTokenExpiry == 0 {
		config.RefreshTokenExpiry = DefaultRefreshTokenExpiry
	}
	if config.TokenShape == "" {
		config.TokenShape = ShapeCamel
	}
	config.PathPrefix = strings.TrimRight(config.PathPrefix, "/")

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:        config,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		logger:        logger,
		nurses:        make(map[string]*nurseRecord),
		nursesByID:    make(map[string]*nurseRecord),
		refreshTokens: make(map[string]refreshEntry),
		hits:          make(map[string]int),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := mux.NewRouter()
	api := r
	if s.config.PathPrefix != "" {
		api = r.PathPrefix(s.config.PathPrefix).Subrouter()
	}
	api.Use(s.countRequests)

	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost).Name(RouteLogin)
	api.HandleFunc("/auth/refresh", s.handleRefresh).Methods(http.MethodPost).Name(RouteRefresh)
	api.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost).Name(RouteLogout)

	nurse := api.PathPrefix("/nurse").Subrouter()
	nurse.Use(s.requireBearer)
	nurse.HandleFunc("/profile", s.handleProfile).Methods(http.MethodGet).Name(RouteProfile)
	nurse.HandleFunc("/profile", s.handleUpdateProfile).Methods(http.MethodPatch).Name(RouteUpdateProfile)
	nurse.HandleFunc("/patients", s.handlePatients).Methods(http.MethodGet).Name(RoutePatients)

	s.router = r
}

// Handler returns the HTTP handler serving all routes
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// AddNurse registers a nurse account. The profile is returned by the
// profile endpoint and embedded in login responses.
func (s *Server) AddNurse(email, password string, profile map[string]any) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	rec := &nurseRecord{
		id:           uuid.NewString(),
		email:        email,
		passwordHash: hash,
		profile:      make(map[string]any, len(profile)+2),
	}
	for k, v := range profile {
		rec.profile[k] = v
	}
	rec.profile["email"] = email
	rec.profile["nurseId"] = rec.id

	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	if _, exists := s.nurses[key]; exists {
		return "", fmt.Errorf("nurse already exists: %s", email)
	}
	s.nurses[key] = rec
	s.nursesByID[rec.id] = rec
	return rec.id, nil
}

// AddPatient appends a raw patient record. Records are served exactly as
// given, so tests can exercise any field naming.
func (s *Server) AddPatient(raw map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients = append(s.patients, raw)
}

// RevokeAccessTokens invalidates every access token issued so far.
// Refresh tokens stay valid.
func (s *Server) RevokeAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
}

// ExpireRefreshTokens invalidates every refresh token issued so far
func (s *Server) ExpireRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens = make(map[string]refreshEntry)
}

// Hits returns how many requests a route has received
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// RefreshTokenCount returns the number of live refresh tokens
func (s *Server) RefreshTokenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refreshTokens)
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if route := mux.CurrentRoute(r); route != nil {
			s.mu.Lock()
			s.hits[route.GetName()]++
			s.mu.Unlock()
		}
		if id := r.Header.Get("X-Request-ID"); id != "" {
			w.Header().Set("X-Request-ID", id)
		}
		s.logger.Debug("devserver request", "method", r.Method, "path", r.URL.Path, "request_id", r.Header.Get("X-Request-ID"))
		next.ServeHTTP(w, r)
	})
}
