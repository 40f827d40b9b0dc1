/**
 * @description
 * This file contains the core business logic of the banking service. The `Service` struct
 * composes the login guard, the identity resolver, the transfer authorizer and the transfer
 * executor, and exposes the read operations used by the mobile client and the admin dashboard.
 *
 * Key features:
 * - Login with lockout and optional per-username rate limiting.
 * - Transfer submission: resolve destination, authorize, execute.
 * - Account, profile and chronological history reads.
 * - Administrative unblock and unfreeze.
 *
 * @dependencies
 * - go.uber.org/zap: Structured logging.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/metrics: Prometheus collectors.
 */

package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upbank/core-service/internal/domain"
	"github.com/upbank/core-service/internal/store"
	"github.com/upbank/core-service/pkg/metrics"
	"go.uber.org/zap"
)

// Options carries the tunable business rules.
type Options struct {
	MaxLoginAttempts    int
	AccountNumberPrefix string
	ConceptPolicy       ConceptPolicy
	EventExchange       string
}

// Service provides the core business logic of the bank.
type Service struct {
	repo       store.Repository
	guard      *LoginGuard
	resolver   *IdentityResolver
	authorizer Authorizer
	executor   *TransferExecutor
	events     *eventNotifier
	metrics    *metrics.Collector
	logger     *zap.Logger
}

// NewService creates a new service instance.
func NewService(repo store.Repository, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	events := &eventNotifier{exchange: strings.TrimSpace(opts.EventExchange), logger: logger.With(zap.String("component", "events"))}
	guard := NewLoginGuard(repo, opts.MaxLoginAttempts, logger)
	guard.events = events

	return &Service{
		repo:       repo,
		guard:      guard,
		resolver:   NewIdentityResolver(repo, opts.AccountNumberPrefix),
		authorizer: NewAuthorizer(opts.ConceptPolicy),
		executor:   NewTransferExecutor(repo, logger),
		events:     events,
		logger:     logger.With(zap.String("component", "service")),
	}
}

// SetLoginRateLimiter enables the per-username login limit.
func (s *Service) SetLoginRateLimiter(limiter LoginRateLimiter, perMinute int) {
	s.guard.limiter = limiter
	s.guard.limitPerMinute = perMinute
}

// SetEventPublisher enables direct user and account status events.
func (s *Service) SetEventPublisher(publisher EventPublisher) {
	s.events.publisher = publisher
}

func (s *Service) SetMetrics(collector *metrics.Collector) {
	s.metrics = collector
	s.guard.metrics = collector
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Service) Login(ctx context.Context, username, password string) (*domain.AuthResult, error) {
	return s.guard.Authenticate(ctx, username, password)
}

func (s *Service) Unblock(ctx context.Context, userID int64) (*domain.User, error) {
	return s.guard.Unblock(ctx, userID)
}

// ClientByUser returns the profile of the client a login belongs to.
func (s *Service) ClientByUser(ctx context.Context, userID int64) (*domain.Client, error) {
	client, err := s.repo.FindClientByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrClientNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, s.unavailable("client lookup failed", err)
	}
	return client, nil
}

// AccountByUser returns the primary account of the user's client.
func (s *Service) AccountByUser(ctx context.Context, userID int64) (*domain.Account, error) {
	account, err := s.repo.FindAccountByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, s.unavailable("account lookup failed", err)
	}
	return account, nil
}

// TransferHistory lists the transfers of every account of the user's client, oldest first.
func (s *Service) TransferHistory(ctx context.Context, userID int64, limit, offset int) ([]domain.HistoryEntry, error) {
	entries, err := s.repo.FindTransfersByUserID(ctx, userID, limit, offset)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, s.unavailable("history lookup failed", err)
	}
	return entries, nil
}

// ResolveDestination previews a destination before sending money to it. The view never
// includes the balance.
func (s *Service) ResolveDestination(ctx context.Context, raw string) (*domain.DestinationView, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, domain.ErrMissingDestination
	}
	id := s.resolver.Classify(raw)
	account, err := s.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	view := &domain.DestinationView{Kind: id.Kind, AccountNumber: account.AccountNumber}
	if client, err := s.repo.FindClientByID(ctx, account.ClientID); err == nil {
		view.HolderName = client.DisplayName()
	} else if !errors.Is(err, store.ErrClientNotFound) {
		return nil, s.unavailable("holder lookup failed", err)
	}
	return view, nil
}

// SubmitTransfer runs the whole transfer workflow for the sender's primary account.
func (s *Service) SubmitTransfer(ctx context.Context, req domain.TransferRequest) (receipt *domain.TransferReceipt, err error) {
	started := time.Now()
	defer func() {
		s.metrics.RecordTransfer(transferOutcome(err), time.Since(started))
	}()

	source, err := s.AccountByUser(ctx, req.SenderID)
	if err != nil {
		return nil, err
	}

	var destination *domain.Account
	if strings.TrimSpace(req.Destination) != "" {
		destination, err = s.resolver.Resolve(ctx, s.resolver.Classify(req.Destination))
		if err != nil && !errors.Is(err, domain.ErrDestinationNotFound) {
			return nil, err
		}
	}

	decision, err := s.authorizer.Authorize(AuthorizationRequest{
		Source:          *source,
		AmountText:      string(req.Amount),
		Concept:         req.Concept,
		DestinationText: req.Destination,
		Destination:     destination,
	})
	if err != nil {
		s.logger.Info("transfer rejected",
			zap.Int64("user_id", req.SenderID),
			zap.String("reason", reasonOf(err)),
		)
		return nil, err
	}

	transfer, err := s.executor.Execute(ctx, domain.TransferCommand{
		SourceAccountID:      source.ID,
		DestinationAccountID: destination.ID,
		Amount:               decision.Amount,
		Concept:              strings.TrimSpace(req.Concept),
	})
	if err != nil {
		return nil, err
	}
	return &domain.TransferReceipt{Transfer: *transfer, Warnings: decision.Warnings}, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.UserSummary, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, s.unavailable("list users failed", err)
	}
	return users, nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]domain.AccountSummary, error) {
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return nil, s.unavailable("list accounts failed", err)
	}
	return accounts, nil
}

// UnfreezeAccount moves a frozen account back to active. Closed accounts are rejected.
func (s *Service) UnfreezeAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	account, err := s.repo.UnfreezeAccount(ctx, accountID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrAccountNotFound):
			return nil, domain.ErrAccountNotFound
		case errors.Is(err, store.ErrAccountNotActive):
			return nil, domain.ErrAccountNotActive
		}
		return nil, s.unavailable("unfreeze failed", err)
	}
	s.logger.Info("account unfrozen", zap.Int64("account_id", account.ID))
	s.events.publish(ctx, domain.RoutingKeyAccountUnfrozen, domain.AccountStatusEvent{
		EventID:    uuid.New(),
		AccountID:  account.ID,
		Status:     account.Status,
		OccurredAt: time.Now().UTC(),
	})
	return account, nil
}

func (s *Service) unavailable(msg string, err error) error {
	s.logger.Error(msg, zap.Error(err))
	return domain.ErrStoreUnavailable.Wrap(err)
}

func reasonOf(err error) string {
	if rejection, ok := domain.AsRejection(err); ok {
		return string(rejection.Reason)
	}
	return "unknown"
}

func transferOutcome(err error) string {
	if err == nil {
		return "completed"
	}
	return strings.ToLower(reasonOf(err))
}
