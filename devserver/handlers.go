package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const contextKeyNurseID contextKey = "devserver.nurseID"

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken  string `json:"refreshToken"`
	RefreshToken2 string `json:"refresh_token"`
}

func (r refreshRequest) token() string {
	if r.RefreshToken != "" {
		return r.RefreshToken
	}
	return r.RefreshToken2
}

type profilePatch struct {
	FullName        *string `json:"fullName" validate:"omitempty,min=1,max=120"`
	Facility        *string `json:"facility" validate:"omitempty,max=120"`
	ShiftPreference *string `json:"shiftPreference" validate:"omitempty,oneof=Day Night"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.errorResponse(w, "email and password are required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	rec := s.nurses[strings.ToLower(req.Email)]
	s.mu.Unlock()

	if rec == nil || bcrypt.CompareHashAndPassword(rec.passwordHash, []byte(req.Password)) != nil {
		s.logger.Info("devserver login rejected", "email", req.Email)
		s.errorResponse(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	access, err := s.createAccessToken(rec.id)
	if err != nil {
		s.logger.Error("devserver failed to sign token", "error", err)
		s.errorResponse(w, "Failed to create token", http.StatusInternalServerError)
		return
	}
	refresh := s.createRefreshToken(rec.id)

	s.mu.Lock()
	profile := copyMap(rec.profile)
	s.mu.Unlock()

	s.tokenResponse(w, access, refresh, profile)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.token() == "" {
		s.errorResponse(w, "Refresh token required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	entry, ok := s.refreshTokens[req.token()]
	if ok && time.Now().After(entry.expiresAt) {
		delete(s.refreshTokens, req.token())
		ok = false
	}
	if ok && s.config.RotateRefreshTokens {
		delete(s.refreshTokens, req.token())
	}
	s.mu.Unlock()

	if !ok {
		s.errorResponse(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	access, err := s.createAccessToken(entry.nurseID)
	if err != nil {
		s.logger.Error("devserver failed to sign token", "error", err)
		s.errorResponse(w, "Failed to create token", http.StatusInternalServerError)
		return
	}

	refresh := ""
	if s.config.RotateRefreshTokens {
		refresh = s.createRefreshToken(entry.nurseID)
	}
	s.tokenResponse(w, access, refresh, nil)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.token() == "" {
		s.errorResponse(w, "Refresh token required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	delete(s.refreshTokens, req.token())
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	rec := s.currentNurse(r)
	if rec == nil {
		s.errorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	profile := copyMap(rec.profile)
	s.mu.Unlock()

	s.jsonResponse(w, http.StatusOK, profile)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	rec := s.currentNurse(r)
	if rec == nil {
		s.errorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var patch profilePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.errorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(patch); err != nil {
		s.errorResponse(w, fmt.Sprintf("Invalid profile update: %v", err), http.StatusUnprocessableEntity)
		return
	}

	s.mu.Lock()
	if patch.FullName != nil {
		rec.profile["fullName"] = *patch.FullName
	}
	if patch.Facility != nil {
		rec.profile["facility"] = *patch.Facility
	}
	if patch.ShiftPreference != nil {
		rec.profile["shiftPreference"] = *patch.ShiftPreference
	}
	profile := copyMap(rec.profile)
	s.mu.Unlock()

	s.jsonResponse(w, http.StatusOK, profile)
}

func (s *Server) handlePatients(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	patients := make([]map[string]any, len(s.patients))
	copy(patients, s.patients)
	s.mu.Unlock()

	if s.config.PatientEnvelope == EnvelopeBare {
		s.jsonResponse(w, http.StatusOK, patients)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{s.config.PatientEnvelope: patients})
}

// requireBearer rejects requests without a valid, unrevoked access token
func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			s.errorResponse(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		nurseID, err := s.validateAccessToken(strings.TrimSpace(parts[1]))
		if err != nil {
			s.logger.Debug("devserver token rejected", "error", err)
			s.errorResponse(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyNurseID, nurseID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) currentNurse(r *http.Request) *nurseRecord {
	id, _ := r.Context().Value(contextKeyNurseID).(string)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nursesByID[id]
}

// createAccessToken creates a signed JWT access token
func (s *Server) createAccessToken(nurseID string) (string, error) {
	s.mu.Lock()
	generation := s.generation
	s.mu.Unlock()

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  nurseID,
		"type": "access",
		"gen":  generation,
		"jti":  uuid.NewString(),
		"iat":  now.Unix(),
		"exp":  now.Add(s.config.AccessTokenExpiry).Unix(),
	}
	if s.config.JWTIssuer != "" {
		claims["iss"] = s.config.JWTIssuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.JWTSecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// validateAccessToken validates a JWT access token and returns the nurse id
func (s *Server) validateAccessToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecretKey), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}
	if tokenType, _ := claims["type"].(string); tokenType != "access" {
		return "", errors.New("invalid token type")
	}
	if s.config.JWTIssuer != "" {
		if iss, _ := claims["iss"].(string); iss != s.config.JWTIssuer {
			return "", errors.New("invalid issuer")
		}
	}

	gen, _ := claims["gen"].(float64)
	s.mu.Lock()
	current := s.generation
	s.mu.Unlock()
	if int(gen) != current {
		return "", errors.New("token revoked")
	}

	nurseID, _ := claims["sub"].(string)
	if nurseID == "" {
		return "", errors.New("missing subject")
	}
	return nurseID, nil
}

func (s *Server) createRefreshToken(nurseID string) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.refreshTokens[token] = refreshEntry{
		nurseID:   nurseID,
		expiresAt: time.Now().Add(s.config.RefreshTokenExpiry),
	}
	s.mu.Unlock()
	return token
}

// tokenResponse lays out a token pair in the configured shape. Empty
// refresh tokens and nil profiles are omitted.
func (s *Server) tokenResponse(w http.ResponseWriter, access, refresh string, profile map[string]any) {
	body := map[string]any{}
	switch s.config.TokenShape {
	case ShapeSnake:
		body["access_token"] = access
		if refresh != "" {
			body["refresh_token"] = refresh
		}
		if profile != nil {
			body["nurse"] = profile
		}
	case ShapeNested:
		tokens := map[string]any{"accessToken": access}
		if refresh != "" {
			tokens["refreshToken"] = refresh
		}
		body["tokens"] = tokens
		if profile != nil {
			body["profile"] = profile
		}
	default:
		body["accessToken"] = access
		if refresh != "" {
			body["refreshToken"] = refresh
		}
		if profile != nil {
			body["user"] = profile
		}
	}

	w.Header().Set("Cache-Control", "no-store")
	s.jsonResponse(w, http.StatusOK, body)
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("devserver failed to write response", "error", err)
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, status int) {
	s.jsonResponse(w, status, map[string]string{"message": message})
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
