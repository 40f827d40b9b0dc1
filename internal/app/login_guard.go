/**
 * @description
 * The login guard authenticates a username and password and runs the lockout state machine:
 * every wrong password increments the user's failed-attempt counter and the user is blocked
 * once it reaches the configured threshold. A blocked user stays blocked until an administrator
 * unblocks them.
 *
 * @dependencies
 * - golang.org/x/crypto/bcrypt: Password hash comparison.
 * - go.uber.org/zap: Structured logging.
 * - internal/store: The UserStore contract with the atomic lockout update.
 */

package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/upbank/core-service/internal/domain"
	"github.com/upbank/core-service/internal/store"
	"github.com/upbank/core-service/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultMaxLoginAttempts = 3
	loginRateLimitWindow    = time.Minute
)

// LoginRateLimiter counts login attempts per username within a time window.
type LoginRateLimiter interface {
	CountLoginAttempt(ctx context.Context, username string, window time.Duration) (LoginWindow, error)
}

// HashPassword returns the bcrypt hash stored in users.password_hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func comparePassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// LoginGuard authenticates users and applies the lockout policy.
type LoginGuard struct {
	users          store.UserStore
	maxAttempts    int
	limiter        LoginRateLimiter
	limitPerMinute int
	events         *eventNotifier
	metrics        *metrics.Collector
	logger         *zap.Logger
}

func NewLoginGuard(users store.UserStore, maxAttempts int, logger *zap.Logger) *LoginGuard {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxLoginAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginGuard{
		users:       users,
		maxAttempts: maxAttempts,
		logger:      logger.With(zap.String("component", "login_guard")),
	}
}

// MaxAttempts is the number of consecutive failures that blocks a user.
func (g *LoginGuard) MaxAttempts() int {
	return g.maxAttempts
}

// Authenticate checks the credentials. Lookup failures and blocked users perform no write;
// every call that reaches the password comparison performs exactly one.
func (g *LoginGuard) Authenticate(ctx context.Context, username, password string) (*domain.AuthResult, error) {
	if err := g.checkRateLimit(ctx, username); err != nil {
		g.metrics.RecordLogin("rate_limited")
		return nil, err
	}

	user, err := g.users.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			g.metrics.RecordLogin("user_not_found")
			return nil, domain.ErrUserNotFound
		}
		g.logger.Error("user lookup failed", zap.String("username", username), zap.Error(err))
		return nil, domain.ErrStoreUnavailable.Wrap(err)
	}

	if user.Status == domain.UserBlocked {
		g.metrics.RecordLogin("blocked")
		return nil, domain.ErrAccountBlocked
	}

	if comparePassword(user.PasswordHash, password) == nil {
		if err := g.users.ResetFailedLoginAttempts(ctx, user.ID); err != nil {
			switch {
			case errors.Is(err, store.ErrUserBlocked):
				g.metrics.RecordLogin("blocked")
				return nil, domain.ErrAccountBlocked
			case errors.Is(err, store.ErrUserNotFound):
				g.metrics.RecordLogin("user_not_found")
				return nil, domain.ErrUserNotFound
			}
			g.logger.Error("failed to reset login attempts", zap.Int64("user_id", user.ID), zap.Error(err))
			return nil, domain.ErrStoreUnavailable.Wrap(err)
		}
		user.FailedAttempts = 0
		g.metrics.RecordLogin("success")
		result := domain.NewAuthResult(*user)
		return &result, nil
	}

	updated, err := g.users.RecordFailedLoginAttempt(ctx, user.ID, g.maxAttempts)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUserBlocked):
			// Another attempt blocked the user between our read and our write.
			g.metrics.RecordLogin("blocked")
			return nil, domain.ErrAccountBlocked
		case errors.Is(err, store.ErrUserNotFound):
			g.metrics.RecordLogin("user_not_found")
			return nil, domain.ErrUserNotFound
		}
		g.logger.Error("failed to record login attempt", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil, domain.ErrStoreUnavailable.Wrap(err)
	}

	if updated.Status == domain.UserBlocked {
		g.logger.Warn("user blocked after repeated failures",
			zap.Int64("user_id", updated.ID),
			zap.Int("failed_attempts", updated.FailedAttempts),
		)
		g.metrics.RecordLogin("blocked")
		g.events.publish(ctx, domain.RoutingKeyUserBlocked, userStatusEvent(updated))
		return nil, domain.ErrAccountBlocked
	}

	g.metrics.RecordLogin("invalid_credentials")
	return nil, domain.InvalidCredentials(g.maxAttempts - updated.FailedAttempts)
}

// Unblock is the administrative reset to active with a zero counter.
func (g *LoginGuard) Unblock(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := g.users.UnblockUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.ErrStoreUnavailable.Wrap(err)
	}
	g.logger.Info("user unblocked", zap.Int64("user_id", user.ID))
	g.events.publish(ctx, domain.RoutingKeyUserUnblocked, userStatusEvent(user))
	return user, nil
}

func (g *LoginGuard) checkRateLimit(ctx context.Context, username string) error {
	if g.limiter == nil || g.limitPerMinute <= 0 {
		return nil
	}
	window, err := g.limiter.CountLoginAttempt(ctx, username, loginRateLimitWindow)
	if err != nil {
		// Fail open: the lockout counter still applies.
		g.logger.Warn("login rate limiter unavailable", zap.Error(err))
		return nil
	}
	if window.Exceeded(g.limitPerMinute) {
		return domain.TooManyAttempts(window.RetryAfterSeconds)
	}
	return nil
}

func userStatusEvent(user *domain.User) domain.UserStatusEvent {
	return domain.UserStatusEvent{
		EventID:        uuid.New(),
		UserID:         user.ID,
		Username:       user.Username,
		Status:         user.Status,
		FailedAttempts: user.FailedAttempts,
		OccurredAt:     time.Now().UTC(),
	}
}
