package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// Token decode failures. All of them are ErrUnauthenticated.
var (
	ErrTokenExpired   = fmt.Errorf("token expired: %w", ErrUnauthenticated)
	ErrTokenInvalid   = fmt.Errorf("token signature invalid: %w", ErrUnauthenticated)
	ErrTokenMalformed = fmt.Errorf("token malformed: %w", ErrUnauthenticated)
)

// TokenKind tells access and refresh tokens apart. It is informational only:
// Decode accepts either kind wherever a token is accepted.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// Identity is the part of the session claims that describes the user.
type Identity struct {
	Username string
	PublicID int64
	IsAdmin  bool
}

// SessionClaims is the JWT payload. The username travels in "sub".
// Claims are stamped at issuance; a role change is only visible after a new login.
type SessionClaims struct {
	PublicID int64     `json:"userid"`
	IsAdmin  bool      `json:"is_sudo"`
	Kind     TokenKind `json:"kind,omitempty"`
	jwt.StandardClaims
}

// Identity returns the user part of the claims.
func (c *SessionClaims) Identity() Identity {
	return Identity{Username: c.Subject, PublicID: c.PublicID, IsAdmin: c.IsAdmin}
}

// TokenPair bundles an access token and a refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenService issues and validates HS256 session tokens.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenService creates a TokenService signing with secret.
func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// IssueAccess signs a short-lived access token.
func (s *TokenService) IssueAccess(id Identity) (string, error) {
	return s.issue(id, AccessToken, s.accessTTL)
}

// IssueRefresh signs a long-lived refresh token with the same key and claim shape.
func (s *TokenService) IssueRefresh(id Identity) (string, error) {
	return s.issue(id, RefreshToken, s.refreshTTL)
}

// IssuePair signs an access and a refresh token for id.
func (s *TokenService) IssuePair(id Identity) (*TokenPair, error) {
	access, err := s.IssueAccess(id)
	if err != nil {
		return nil, err
	}
	refresh, err := s.IssueRefresh(id)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *TokenService) issue(id Identity, kind TokenKind, ttl time.Duration) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &SessionClaims{
		PublicID: id.PublicID,
		IsAdmin:  id.IsAdmin,
		Kind:     kind,
		StandardClaims: jwt.StandardClaims{
			Subject:   id.Username,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s token: %w", kind, err)
	}
	return tokenString, nil
}

// Decode verifies signature and expiry and returns the claims.
func (s *TokenService) Decode(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) {
			switch {
			case ve.Errors&jwt.ValidationErrorMalformed != 0:
				return nil, ErrTokenMalformed
			case ve.Errors&jwt.ValidationErrorSignatureInvalid != 0:
				return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
			case ve.Errors&jwt.ValidationErrorExpired != 0:
				return nil, ErrTokenExpired
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.PublicID == 0 || claims.Subject == "" {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// Refresh decodes refreshToken and issues a new access token with the same
// identity. The refresh token itself is not rotated.
func (s *TokenService) Refresh(refreshToken string) (string, error) {
	claims, err := s.Decode(refreshToken)
	if err != nil {
		return "", err
	}
	return s.IssueAccess(claims.Identity())
}
