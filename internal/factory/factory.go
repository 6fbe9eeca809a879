package factory

import (
	"errors"
	"io"
	"log/slog"

	"github.com/gambitchess/gambit/internal/dependencies/clock"
	"github.com/gambitchess/gambit/internal/dependencies/random"
	"github.com/gambitchess/gambit/internal/relay"
	"github.com/gambitchess/gambit/internal/services/auth"
	"github.com/gambitchess/gambit/internal/services/session"
	"github.com/gambitchess/gambit/internal/storage"
	"github.com/gambitchess/gambit/internal/storage/memory"
	redisstorage "github.com/gambitchess/gambit/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Store storage.Store

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	AuthService       *auth.Service
	SessionController *session.Controller
	Hub               *relay.Hub
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// RelayConfig holds configuration for the relay hub (optional)
	RelayConfig *relay.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory". The choice is made once at startup;
	// there is no runtime switching or fallback.
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	clk := clock.New()
	rnd := random.New()

	var store storage.Store
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New(clk)
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig, clk)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	authCfg := cfg.AuthConfig
	if authCfg.TokenTTL == 0 {
		authCfg = auth.DefaultConfig()
	}

	relayCfg := relay.DefaultConfig()
	if cfg.RelayConfig != nil {
		relayCfg = *cfg.RelayConfig
	}

	return newWithDependencies(store, clk, rnd, authCfg, relayCfg, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Store,
	clk clock.Clock,
	rnd random.Random,
	authCfg auth.Config,
	relayCfg relay.Config,
	logger *slog.Logger,
) *App {
	authService := auth.New(store, clk, rnd, authCfg, logger)
	sessionController := session.NewController(store, clk, logger)
	hub := relay.NewHub(sessionController, relayCfg, logger)

	return &App{
		Store:             store,
		Clock:             clk,
		Random:            rnd,
		AuthService:       authService,
		SessionController: sessionController,
		Hub:               hub,
	}
}
