package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gambitchess/gambit/internal/dependencies/clock"
	"github.com/gambitchess/gambit/internal/model"
	"github.com/gambitchess/gambit/internal/storage"
)

// maxTxRetries bounds the optimistic retry loop for WATCH transactions
const maxTxRetries = 10

// Storage is a Redis-backed implementation of the storage interface.
// Session mutations run inside WATCH transactions so the join check-and-set
// and verdict recording are atomic with respect to concurrent writers.
type Storage struct {
	client *redis.Client
	cfg    Config
	clock  clock.Clock
}

// New creates a new Redis storage instance
func New(cfg Config, clk clock.Clock) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}

	return &Storage{
		client: client,
		cfg:    cfg,
		clock:  clk,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config, clk clock.Clock) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
		clock:  clk,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Store = (*Storage)(nil)

// wrapErr maps backend connectivity failures to model.ErrStoreUnavailable.
// Domain errors and context cancellation pass through unchanged.
func wrapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrUserNotFound),
		errors.Is(err, model.ErrSessionNotFound),
		errors.Is(err, model.ErrSessionFull),
		errors.Is(err, model.ErrSelfJoin),
		errors.Is(err, model.ErrSessionNotActive),
		errors.Is(err, model.ErrConflictingVerdict),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
}

// User operations

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	// Guest accounts expire; registered accounts persist
	var ttl time.Duration
	if user.IsGuest {
		ttl = s.cfg.GuestUserTTL
	}

	return wrapErr(s.client.Set(ctx, userKey(user.ID), data, ttl).Err())
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	data, err := s.client.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, wrapErr(err)
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Credentials operations

func (s *Storage) SaveCredentials(ctx context.Context, creds *model.Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}

	// Pipeline the record and the username index together
	pipe := s.client.Pipeline()
	pipe.Set(ctx, credentialsKey(creds.UserID), data, 0)
	pipe.Set(ctx, usernameIndexKey(creds.Username), string(creds.UserID), 0)
	_, err = pipe.Exec(ctx)
	return wrapErr(err)
}

func (s *Storage) GetCredentialsByUsername(ctx context.Context, username string) (*model.Credentials, error) {
	userIDStr, err := s.client.Get(ctx, usernameIndexKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, wrapErr(err)
	}

	data, err := s.client.Get(ctx, credentialsKey(model.UserID(userIDStr))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, wrapErr(err)
	}

	var creds model.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// Session operations

func (s *Storage) CreateSession(ctx context.Context, white model.UserID) (*model.GameSession, error) {
	seq, err := s.client.Incr(ctx, sessionSeqKey()).Result()
	if err != nil {
		return nil, wrapErr(err)
	}

	now := s.clock.Now()
	session := &model.GameSession{
		ID:          model.SessionID(fmt.Sprintf("g%06d", seq)),
		WhitePlayer: white,
		Status:      model.StatusWaiting,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	data, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}

	if err := s.client.Set(ctx, sessionKey(session.ID), data, s.cfg.SessionTTL).Err(); err != nil {
		return nil, wrapErr(err)
	}
	return session, nil
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.GameSession, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrSessionNotFound
		}
		return nil, wrapErr(err)
	}

	var session model.GameSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Storage) JoinSession(ctx context.Context, id model.SessionID, player model.UserID) (*model.GameSession, error) {
	return s.updateSession(ctx, id, func(session *model.GameSession) (bool, error) {
		if session.BlackPlayer != nil {
			return false, model.ErrSessionFull
		}
		if session.WhitePlayer == player {
			return false, model.ErrSelfJoin
		}
		session.BlackPlayer = &player
		session.Status = model.StatusInProgress
		return true, nil
	})
}

func (s *Storage) AppendMove(ctx context.Context, id model.SessionID, move model.MoveRecord) (*model.GameSession, error) {
	return s.updateSession(ctx, id, func(session *model.GameSession) (bool, error) {
		if session.Status != model.StatusInProgress {
			return false, model.ErrSessionNotActive
		}
		session.Moves = append(session.Moves, move)
		return true, nil
	})
}

func (s *Storage) CompleteSession(ctx context.Context, id model.SessionID, verdict model.Verdict) (*model.GameSession, error) {
	return s.updateSession(ctx, id, func(session *model.GameSession) (bool, error) {
		if session.Status == model.StatusCompleted {
			if session.Verdict != nil && session.Verdict.Equal(verdict) {
				return false, nil // idempotent repeat, nothing to write
			}
			return false, model.ErrConflictingVerdict
		}
		if session.Status != model.StatusInProgress {
			return false, model.ErrSessionNotActive
		}
		session.Status = model.StatusCompleted
		session.Verdict = &verdict
		return true, nil
	})
}

func (s *Storage) DeleteSession(ctx context.Context, id model.SessionID) error {
	return wrapErr(s.client.Del(ctx, sessionKey(id)).Err())
}

// updateSession runs a read-modify-write on a session inside a WATCH
// transaction, retrying on write conflicts. apply returns whether the
// mutated record should be written back.
func (s *Storage) updateSession(
	ctx context.Context,
	id model.SessionID,
	apply func(*model.GameSession) (bool, error),
) (*model.GameSession, error) {
	key := sessionKey(id)
	var result *model.GameSession

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrSessionNotFound
			}
			return err
		}

		var session model.GameSession
		if err := json.Unmarshal(data, &session); err != nil {
			return err
		}

		write, err := apply(&session)
		if err != nil {
			return err
		}
		if !write {
			result = &session
			return nil
		}

		session.UpdatedAt = s.clock.Now()
		updated, err := json.Marshal(&session)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, redis.KeepTTL)
			return nil
		})
		if err != nil {
			return err
		}
		result = &session
		return nil
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue // lost the race, reread and retry
		}
		return nil, wrapErr(err)
	}

	return nil, fmt.Errorf("%w: session update retries exhausted", model.ErrStoreUnavailable)
}
