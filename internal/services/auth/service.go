package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/gambitchess/gambit/internal/dependencies/clock"
	"github.com/gambitchess/gambit/internal/dependencies/random"
	"github.com/gambitchess/gambit/internal/model"
	"github.com/gambitchess/gambit/internal/storage"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUsernameExists     = errors.New("username already exists")
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Auth is the result of a successful authentication
type Auth struct {
	Token string
	User  model.User
}

// Claims are the JWT claims attached to every issued token
type Claims struct {
	Username string `json:"username"`
	Guest    bool   `json:"guest"`
	jwt.RegisteredClaims
}

// Config holds configuration for the auth service
type Config struct {
	// JWTSecret signs issued tokens (HS256)
	JWTSecret string
	// TokenTTL is how long issued tokens remain valid
	TokenTTL time.Duration
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		JWTSecret: "dev-secret-change-me",
		TokenTTL:  24 * time.Hour,
	}
}

// Service is the identity provider: it mints and verifies tokens and owns
// user accounts. The rest of the system only ever sees a model.UserID.
type Service struct {
	store  storage.Store
	clock  clock.Clock
	random random.Random
	cfg    Config
	logger *slog.Logger
}

// New creates a new auth service
func New(store storage.Store, clk clock.Clock, rnd random.Random, cfg Config, logger *slog.Logger) *Service {
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = DefaultConfig().TokenTTL
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = DefaultConfig().JWTSecret
	}
	return &Service{
		store:  store,
		clock:  clk,
		random: rnd,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "auth")),
	}
}

// Register creates a registered account and returns a signed token
func (s *Service) Register(ctx context.Context, username, password, email string) (*Auth, error) {
	_, err := s.store.GetCredentialsByUsername(ctx, username)
	if err == nil {
		return nil, ErrUsernameExists
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &model.User{
		ID:          model.UserID("u_" + s.random.String(12, idAlphabet)),
		Username:    username,
		DisplayName: username,
		Rating:      model.DefaultRating,
		IsGuest:     false,
		CreatedAt:   now,
	}

	creds := &model.Credentials{
		UserID:       user.ID,
		Username:     username,
		PasswordHash: string(hash),
		Email:        email,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	if err := s.store.SaveCredentials(ctx, creds); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", slog.String("user_id", string(user.ID)))

	return s.issue(user)
}

// Login authenticates a registered user and returns a signed token
func (s *Service) Login(ctx context.Context, username, password string) (*Auth, error) {
	creds, err := s.store.GetCredentialsByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.store.GetUser(ctx, creds.UserID)
	if err != nil {
		return nil, err
	}

	return s.issue(user)
}

// Guest creates an anonymous account and returns a signed token
func (s *Service) Guest(ctx context.Context) (*Auth, error) {
	name := "guest_" + s.random.String(8, idAlphabet)
	user := &model.User{
		ID:          model.UserID("u_" + s.random.String(12, idAlphabet)),
		Username:    name,
		DisplayName: name,
		Rating:      model.DefaultRating,
		IsGuest:     true,
		CreatedAt:   s.clock.Now(),
	}

	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("guest created", slog.String("user_id", string(user.ID)))

	return s.issue(user)
}

// Verify parses and validates a token and returns the user it belongs to
func (s *Service) Verify(ctx context.Context, token string) (*model.User, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(s.cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	user, err := s.store.GetUser(ctx, model.UserID(claims.Subject))
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			// Guest accounts can expire out of the store while their
			// token is still within its TTL
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}

// issue signs a token for the user
func (s *Service) issue(user *model.User) (*Auth, error) {
	now := s.clock.Now()
	claims := Claims{
		Username: user.Username,
		Guest:    user.IsGuest,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, err
	}

	return &Auth{Token: token, User: *user}, nil
}
