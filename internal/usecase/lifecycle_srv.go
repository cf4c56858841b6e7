package usecase

import (
	"context"
	"fmt"

	"member-onboarding/internal/data/entity"
	"member-onboarding/internal/data/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TransitionContext is handed to transition hooks after each persisted step.
type TransitionContext struct {
	Account *entity.Account
	From    entity.AccountStatus
	To      entity.AccountStatus
	ActorID *uuid.UUID
	Reason  string
	Repo    *repository.Repository
}

type TransitionHook func(ctx context.Context, tc TransitionContext) error

type transitionOptions struct {
	actorID *uuid.UUID
	reason  string
	after   []TransitionHook
}

type TransitionOption func(*transitionOptions)

func WithTransitionActor(actorID uuid.UUID) TransitionOption {
	return func(o *transitionOptions) {
		o.actorID = &actorID
	}
}

func WithTransitionReason(reason string) TransitionOption {
	return func(o *transitionOptions) {
		o.reason = reason
	}
}

// WithAfterTransitionHook runs h after every persisted step. A hook error is
// returned to the caller, whose transaction then rolls the step back.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(o *transitionOptions) {
		if h != nil {
			o.after = append(o.after, h)
		}
	}
}

// LifecycleService enforces the account state machine.
type LifecycleService interface {
	// Transition moves account to target and returns the updated copy. A
	// target reachable only through an intermediate state walks through it.
	Transition(ctx context.Context, account *entity.Account, target entity.AccountStatus, opts ...TransitionOption) (*entity.Account, error)
	// Can reports whether target is reachable from from.
	Can(from, to entity.AccountStatus) bool
	WithRepository(repo *repository.Repository) LifecycleService
}

type transitionGuard func(account *entity.Account) error

type lifecycleService struct {
	repo  *repository.Repository
	edges map[entity.AccountStatus]map[entity.AccountStatus]struct{}
	// via names the intermediate state of a two-step transition.
	via    map[[2]entity.AccountStatus]entity.AccountStatus
	guards map[[2]entity.AccountStatus]transitionGuard
	now    Clock
	audit  AuditSink
	log    *zap.Logger
}

func NewLifecycleService(repo *repository.Repository, deps Dependencies, log *zap.Logger) LifecycleService {
	return &lifecycleService{
		repo: repo,
		edges: map[entity.AccountStatus]map[entity.AccountStatus]struct{}{
			entity.StatusRegistered: {
				entity.StatusEmailPending: {},
			},
			entity.StatusEmailPending: {
				entity.StatusEmailVerified: {},
			},
			entity.StatusEmailVerified: {
				entity.StatusPendingApproval: {},
			},
			entity.StatusPendingApproval: {
				entity.StatusActivated: {},
				entity.StatusRejected:  {},
			},
			entity.StatusActivated: {
				entity.StatusActive: {},
			},
			entity.StatusActive: {
				entity.StatusSuspended: {},
			},
			entity.StatusSuspended: {
				entity.StatusActive: {},
			},
		},
		via: map[[2]entity.AccountStatus]entity.AccountStatus{
			{entity.StatusRegistered, entity.StatusEmailVerified}: entity.StatusEmailPending,
			{entity.StatusEmailVerified, entity.StatusActivated}:  entity.StatusPendingApproval,
		},
		guards: map[[2]entity.AccountStatus]transitionGuard{
			{entity.StatusActivated, entity.StatusActive}: func(a *entity.Account) error {
				if !a.HasPassword() {
					return fmt.Errorf("%w: password not set", ErrGuardFailed)
				}
				return nil
			},
			{entity.StatusEmailPending, entity.StatusEmailVerified}: func(a *entity.Account) error {
				if !a.IsEmailVerified() {
					return fmt.Errorf("%w: email not verified", ErrGuardFailed)
				}
				return nil
			},
		},
		now:   deps.clock(),
		audit: deps.audit(),
		log:   log.With(zap.String("service", "lifecycle")),
	}
}

func (s *lifecycleService) WithRepository(repo *repository.Repository) LifecycleService {
	bound := *s
	bound.repo = repo
	return &bound
}

func (s *lifecycleService) edge(from, to entity.AccountStatus) bool {
	_, ok := s.edges[from][to]
	return ok
}

// path returns the steps from from to to, nil when unreachable.
func (s *lifecycleService) path(from, to entity.AccountStatus) []entity.AccountStatus {
	if s.edge(from, to) {
		return []entity.AccountStatus{to}
	}
	if mid, ok := s.via[[2]entity.AccountStatus{from, to}]; ok && s.edge(from, mid) && s.edge(mid, to) {
		return []entity.AccountStatus{mid, to}
	}
	return nil
}

func (s *lifecycleService) Can(from, to entity.AccountStatus) bool {
	return from != to && s.path(from, to) != nil
}

func (s *lifecycleService) Transition(ctx context.Context, account *entity.Account, target entity.AccountStatus, opts ...TransitionOption) (*entity.Account, error) {
	if account == nil {
		return nil, ErrAccountNotFound
	}
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown state %q", ErrInvalidTransition, target)
	}
	if account.Status == target {
		return account, ErrAlreadyInState
	}

	steps := s.path(account.Status, target)
	if steps == nil {
		s.log.Warn("Rejected transition",
			zap.String("account_id", account.ID.String()),
			zap.String("from", string(account.Status)),
			zap.String("to", string(target)),
		)
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, account.Status, target)
	}

	var o transitionOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	current := *account
	for _, next := range steps {
		if err := s.step(ctx, &current, next, o); err != nil {
			return nil, err
		}
	}
	return &current, nil
}

func (s *lifecycleService) step(ctx context.Context, account *entity.Account, to entity.AccountStatus, o transitionOptions) error {
	from := account.Status

	if guard, ok := s.guards[[2]entity.AccountStatus{from, to}]; ok {
		if err := guard(account); err != nil {
			return err
		}
	}

	now := s.now()
	updated, err := s.repo.Account.UpdateStatus(ctx, account.ID, from, to, now)
	if err != nil {
		return persistenceErr("update account status", err)
	}
	if !updated {
		return fmt.Errorf("%w: expected %s", ErrStaleState, from)
	}

	account.Status = to
	account.UpdatedAt = now

	for _, h := range o.after {
		if err := h(ctx, TransitionContext{
			Account: account,
			From:    from,
			To:      to,
			ActorID: o.actorID,
			Reason:  o.reason,
			Repo:    s.repo,
		}); err != nil {
			return err
		}
	}

	event := entity.NewAuditLog(entity.AuditAccountTransitioned, &account.ID, now)
	event.ActorID = o.actorID
	event.Detail["from"] = string(from)
	event.Detail["to"] = string(to)
	if o.reason != "" {
		event.Detail["reason"] = o.reason
	}
	s.audit.Record(ctx, event)

	s.log.Info("Account transitioned",
		zap.String("account_id", account.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return nil
}

