package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"bdos/internal/model"
	"bdos/pkg/logger"
	"bdos/pkg/util"
)

type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id int) (*model.User, error)
}

// AttemptCounter is satisfied by *util.RetryCounter.
type AttemptCounter interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

type Service struct {
	users       UserFinder
	attempts    AttemptCounter
	jwtSecret   string
	ttl         time.Duration
	maxAttempts int64
	logger      *zap.Logger
}

func NewService(users UserFinder, jwtSecret string, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{
		users:     users,
		jwtSecret: jwtSecret,
		ttl:       ttl,
		logger:    logger,
	}
}

// WithThrottle limits failed logins per email to max inside the counter's window.
func (s *Service) WithThrottle(attempts AttemptCounter, max int) *Service {
	s.attempts = attempts
	s.maxAttempts = int64(max)
	return s
}

// Login checks user credentials and returns a session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	log := logger.WithTrace(ctx, s.logger)
	email = strings.ToLower(strings.TrimSpace(email))
	key := util.FormatRetryKey("login", email)

	if s.throttled() {
		n, err := s.attempts.Get(ctx, key)
		if err != nil {
			log.Warn("Login throttle unavailable", zap.Error(err))
		} else if n >= s.maxAttempts {
			return "", nil, model.ErrTooManyAttempts
		}
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return "", nil, err
	}
	if u == nil || !util.CheckPassword(password, u.PasswordHash) {
		s.recordFailure(ctx, key)
		log.Info("Login rejected", zap.String("email", email))
		return "", nil, model.ErrInvalidCredentials
	}

	if s.throttled() {
		if err := s.attempts.Reset(ctx, key); err != nil {
			log.Warn("Failed to reset login attempts", zap.Error(err))
		}
	}

	token, err := util.GenerateJWT(u.ID, u.OrgID, s.jwtSecret, s.ttl)
	if err != nil {
		return "", nil, fmt.Errorf("sign session: %w", err)
	}
	return token, u, nil
}

// Authenticate resolves a session token to the acting user. The user must
// still exist and belong to the org the token was issued for.
func (s *Service) Authenticate(ctx context.Context, token string) (model.Actor, error) {
	claims, err := util.ParseJWT(token, s.jwtSecret)
	if err != nil {
		return model.Actor{}, fmt.Errorf("%w: %v", model.ErrInvalidCredentials, err)
	}

	u, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Actor{}, model.ErrInvalidCredentials
		}
		return model.Actor{}, err
	}
	if u.OrgID != claims.OrgID {
		return model.Actor{}, model.ErrInvalidCredentials
	}

	return model.Actor{UserID: u.ID, OrgID: u.OrgID, IsAdmin: u.IsAdmin}, nil
}

func (s *Service) throttled() bool {
	return s.attempts != nil && s.maxAttempts > 0
}

func (s *Service) recordFailure(ctx context.Context, key string) {
	if !s.throttled() {
		return
	}
	if _, err := s.attempts.IncrementAndGet(ctx, key); err != nil {
		logger.WithTrace(ctx, s.logger).Warn("Failed to record login attempt", zap.Error(err))
	}
}
