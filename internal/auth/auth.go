// Package auth handles user accounts and bearer-token authentication.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/kimhsiao/photosync/internal/apperr"
	"github.com/kimhsiao/photosync/internal/db"
	"github.com/kimhsiao/photosync/internal/models"
)

// tokenTTL is how long an access token stays valid.
const tokenTTL = 30 * time.Minute

type contextKey struct{}

// ErrBadCredentials is returned for wrong username or password. Callers get
// the same error for both so login never leaks which part was wrong.
var ErrBadCredentials = errors.New("invalid username or password")

// Service issues and verifies access tokens.
type Service struct {
	repo   *db.Repository
	secret []byte
	now    func() time.Time
}

func NewService(repo *db.Repository, secret string) *Service {
	return &Service{repo: repo, secret: []byte(secret), now: time.Now}
}

// SetupRequired reports whether no user exists yet.
func (s *Service) SetupRequired() (bool, error) {
	count, err := s.repo.CountUsers()
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// Register creates the initial account. Only one account is supported; once
// a user exists further registrations are rejected.
func (s *Service) Register(username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperr.Invalid("username is required")
	}
	if len(password) < 8 {
		return nil, apperr.Invalid("password must be at least 8 characters")
	}

	open, err := s.SetupRequired()
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, apperr.Invalid("setup has already been completed")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Wrap(err, "hash password")
	}

	user := &models.User{Username: username, PasswordHash: string(hash)}
	if err := s.repo.CreateUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies the credentials and issues a signed token.
func (s *Service) Login(username, password string) (string, error) {
	user, err := s.repo.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", ErrBadCredentials
		}
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", ErrBadCredentials
	}
	return s.issueToken(user.Username)
}

func (s *Service) issueToken(username string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", apperr.Wrap(err, "sign token")
	}
	return signed, nil
}

// VerifyToken parses and validates a token, returning the subject username.
func (s *Service) VerifyToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil || !token.Valid {
		return "", apperr.Wrap(errors.Join(err, errors.New("invalid token")), "verify token")
	}
	return claims.Subject, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// username on the request context.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			unauthorized(w)
			return
		}
		username, err := s.VerifyToken(strings.TrimPrefix(header, prefix))
		if err != nil {
			unauthorized(w)
			return
		}
		ctx := context.WithValue(r.Context(), contextKey{}, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UsernameFromContext returns the authenticated username, if any.
func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(contextKey{}).(string)
	return username, ok
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized"}`))
}
