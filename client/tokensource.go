package client

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// ExpiryLeeway is how long before a JWT's exp the TokenSource refreshes
const ExpiryLeeway = 30 * time.Second

// TokenSource exposes the session as an oauth2.TokenSource, for libraries
// that take one (e.g. gRPC per-RPC credentials). If the stored access token is
// a JWT that has expired, or no access token is stored, Token refreshes first.
func (c *AuthClient) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &sessionTokenSource{ctx: ctx, client: c}
}

type sessionTokenSource struct {
	ctx    context.Context
	client *AuthClient
}

func (s *sessionTokenSource) Token() (*oauth2.Token, error) {
	access := s.client.session.AccessToken()
	expiry := TokenExpiry(access)

	stale := access == "" || (!expiry.IsZero() && time.Now().Add(ExpiryLeeway).After(expiry))
	if stale {
		pair, err := s.client.Refresh(s.ctx)
		if err != nil {
			return nil, err
		}
		access = pair.AccessToken
		expiry = TokenExpiry(access)
	}

	return &oauth2.Token{
		AccessToken:  access,
		TokenType:    "Bearer",
		RefreshToken: s.client.session.RefreshToken(),
		Expiry:       expiry,
	}, nil
}

// TokenExpiry reads the exp claim of a JWT access token without verifying
// its signature. It returns the zero time for opaque tokens or tokens without
// an exp claim.
func TokenExpiry(accessToken string) time.Time {
	if accessToken == "" {
		return time.Time{}
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
