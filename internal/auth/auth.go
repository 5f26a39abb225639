// Package auth registers users, checks credentials and issues the bearer
// tokens that identify them on later requests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/prepcoach/internal/apperr"
	"github.com/garnizeh/prepcoach/internal/validate"
	"github.com/garnizeh/prepcoach/pkg/models"
	"github.com/garnizeh/prepcoach/pkg/repository"
)

// Claims carried by issued tokens. Subject holds the user id.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type Service struct {
	users     repository.UserRepo
	secret    []byte
	ttl       time.Duration
	validator *validate.Validator
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(users repository.UserRepo, secret string, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return &Service{
		users:     users,
		secret:    []byte(secret),
		ttl:       ttl,
		validator: validate.New(),
		logger:    logger,
		now:       time.Now,
	}
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Username string `json:"username" validate:"required,min=3,max=64"`
	FullName string `json:"full_name" validate:"required,max=200"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Register creates an active user. A taken email or username is a conflict.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	existing, err := s.users.GetUserByEmail(ctx, in.Email)
	if err != nil {
		return nil, apperr.Internal("lookup email", err)
	}
	if existing != nil {
		return nil, apperr.Conflict("email already registered")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}

	u := models.NewUser(in.Email, in.Username, in.FullName, hash)
	if err := s.users.CreateUser(ctx, u); err != nil {
		// a concurrent registration can still win the unique index
		var dup *repository.DuplicateError
		if errors.As(err, &dup) {
			return nil, apperr.Conflict(dup.Column + " already registered")
		}
		return nil, apperr.Internal("create user", err)
	}

	s.logger.Info("user registered", slog.String("user_id", u.ID.String()))

	return u, nil
}

// Login checks the credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", apperr.Validation("username and password are required")
	}

	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return "", apperr.Internal("lookup user", err)
	}
	if u == nil || !u.IsActive || !CheckPassword(u.HashedPassword, password) {
		return "", apperr.Unauthorized("incorrect username or password")
	}

	token, _, err := s.IssueToken(u)
	if err != nil {
		return "", apperr.Internal("sign token", err)
	}

	return token, nil
}

// IssueToken signs an HS256 token for u and returns it with its expiry.
func (s *Service) IssueToken(u *models.User) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// ParseToken verifies signature, algorithm and expiry.
func (s *Service) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, apperr.Unauthorized("could not validate credentials")
	}
	return claims, nil
}

// CurrentUser resolves a token to an active, existing user.
func (s *Service) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.ParseToken(token)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperr.Unauthorized("could not validate credentials")
	}

	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("load user", err)
	}
	if u == nil || !u.IsActive {
		return nil, apperr.Unauthorized("could not validate credentials")
	}

	return u, nil
}

type ProfileInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Username string `json:"username" validate:"required,min=3,max=64"`
	FullName string `json:"full_name" validate:"required,max=200"`
}

func (s *Service) UpdateProfile(ctx context.Context, u *models.User, in ProfileInput) (*models.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	updated := *u
	updated.Email = in.Email
	updated.Username = in.Username
	updated.FullName = in.FullName

	return s.save(ctx, &updated)
}

func (s *Service) UpdateSkills(ctx context.Context, u *models.User, skills []string) (*models.User, error) {
	cleaned := make([]string, 0, len(skills))
	seen := map[string]struct{}{}
	for _, sk := range skills {
		sk = strings.TrimSpace(sk)
		if sk == "" {
			continue
		}
		key := strings.ToLower(sk)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, sk)
	}

	updated := *u
	updated.Skills = cleaned

	return s.save(ctx, &updated)
}

// UpdatePreferences merges prefs into the stored preferences; a null value removes the key.
func (s *Service) UpdatePreferences(ctx context.Context, u *models.User, prefs map[string]any) (*models.User, error) {
	merged := make(map[string]any, len(u.Preferences)+len(prefs))
	for k, v := range u.Preferences {
		merged[k] = v
	}
	for k, v := range prefs {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}

	updated := *u
	updated.Preferences = merged

	return s.save(ctx, &updated)
}

func (s *Service) save(ctx context.Context, u *models.User) (*models.User, error) {
	if err := s.users.UpdateUser(ctx, u); err != nil {
		var dup *repository.DuplicateError
		switch {
		case errors.As(err, &dup):
			return nil, apperr.Conflict(dup.Column + " already registered")
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal("update user", err)
	}
	return u, nil
}
