package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"alquimist/internal/infra/persistence/memory"
	"alquimist/internal/validation"
	"alquimist/pkg/domain"
)

// Service exposes the laboratory operations over a PersistentStore. Each
// mutation runs in one store transaction together with its audit activity.
type Service struct {
	store      PersistentStore
	logger     *zap.Logger
	metrics    MetricsRecorder
	now        func() time.Time
	bcryptCost int

	dummyOnce sync.Once
	dummy     []byte
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger. Nil keeps the no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder sets the recorder notified after every operation.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithClock overrides the time source used for purge cutoffs.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:      store,
		logger:     zap.NewNop(),
		metrics:    noopMetrics{},
		now:        func() time.Time { return time.Now().UTC() },
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

// Logger returns the service logger.
func (s *Service) Logger() *zap.Logger { return s.logger }

func (s *Service) run(ctx context.Context, op string, fn func(Transaction) error) (Result, error) {
	start := time.Now()
	res, err := s.store.RunInTransaction(ctx, fn)
	s.observe(ctx, op, start, res, err)
	return res, err
}

func (s *Service) view(ctx context.Context, op string, fn func(TransactionView) error) error {
	start := time.Now()
	err := s.store.View(ctx, fn)
	s.observe(ctx, op, start, Result{}, err)
	return err
}

// reject records an operation that failed before reaching the store.
func (s *Service) reject(ctx context.Context, op string, err error) error {
	s.observe(ctx, op, time.Now(), Result{}, err)
	return err
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, res Result, err error) {
	elapsed := time.Since(start)
	s.metrics.Observe(ctx, op, err == nil, elapsed)
	fields := []zap.Field{zap.String("operation", op), zap.Duration("duration", elapsed)}
	if actor, ok := ActorFromContext(ctx); ok {
		fields = append(fields, zap.String("actor", actor.ID))
	}
	switch {
	case err == nil:
		if len(res.Violations) > 0 {
			fields = append(fields, zap.Int("warnings", len(res.Violations)))
		}
		s.logger.Debug("operation completed", fields...)
	case IsClientError(err):
		s.logger.Info("operation rejected", append(fields, zap.Error(err))...)
	default:
		s.logger.Error("operation failed", append(fields, zap.Error(err))...)
	}
}

// IsClientError reports whether err is caused by the request rather than the system.
func IsClientError(err error) bool {
	var (
		verr     *validation.Error
		notFound domain.ErrNotFound
		conflict domain.ErrConflict
		rules    domain.RuleViolationError
	)
	return errors.As(err, &verr) ||
		errors.As(err, &notFound) ||
		errors.As(err, &conflict) ||
		errors.As(err, &rules) ||
		errors.Is(err, domain.ErrProtected) ||
		errors.Is(err, domain.ErrInvalidCredentials) ||
		errors.Is(err, context.Canceled)
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
