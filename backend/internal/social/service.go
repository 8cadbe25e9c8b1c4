// Package social implements the operation set of the service: every
// mutation runs guard checks, then the store write, then any cascade, and
// finally publishes an event.
package social

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"channelfeed/backend/internal/cascade"
	"channelfeed/backend/internal/constants"
	"channelfeed/backend/internal/domain"
	"channelfeed/backend/internal/events"
	"channelfeed/backend/internal/feed"
	"channelfeed/backend/internal/guard"
	"channelfeed/backend/internal/metrics"
	"channelfeed/backend/internal/store"
	apperrors "channelfeed/backend/pkg/errors"
	"channelfeed/backend/pkg/logger"
)

// Options configures a Service. Zero values select defaults.
type Options struct {
	Events       events.Publisher
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	FeedFanout   int
	DefaultOrder domain.Order
}

// Service is the core operation set. The acting user is always an explicit
// argument; an empty actor means the caller is not signed in.
type Service struct {
	store        store.Store
	guard        *guard.Guard
	cascade      *cascade.Manager
	feed         *feed.Aggregator
	resolver     *feed.Resolver
	events       events.Publisher
	metrics      *metrics.Metrics
	logger       *zap.Logger
	defaultOrder domain.Order
	now          func() time.Time
	newID        func() string
}

// NewService wires the core components over one store
func NewService(st store.Store, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}
	pub := opts.Events
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		store:        st,
		guard:        guard.New(st, log),
		cascade:      cascade.NewManager(st, opts.Metrics, log),
		feed:         feed.NewAggregator(st, opts.FeedFanout, opts.Metrics, log),
		resolver:     feed.NewResolver(st),
		events:       pub,
		metrics:      opts.Metrics,
		logger:       log.Named("social"),
		defaultOrder: opts.DefaultOrder,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
	}
}

// SetClock replaces the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetIDGenerator replaces the identifier source
func (s *Service) SetIDGenerator(newID func() string) {
	s.newID = newID
}

// DefaultOrder is the feed direction used when a caller does not pick one.
func (s *Service) DefaultOrder() domain.Order {
	return s.defaultOrder
}

// track records the outcome of an operation and makes sure no unclassified
// error leaves the service.
func (s *Service) track(op string, started time.Time, errp *error) {
	if *errp != nil {
		*errp = apperrors.Classify(op, *errp)
		if apperrors.IsErrorType(*errp, apperrors.ErrorTypeStore) {
			s.logger.Warn("Operation failed",
				zap.String("operation", op),
				zap.Bool("retryable", apperrors.IsRetryable(*errp)),
				zap.Error(*errp))
		} else {
			s.logger.Debug("Operation rejected", zap.String("operation", op), zap.Error(*errp))
		}
	}
	s.metrics.Observe(op, started, *errp)
}

// publish delivers an event after commit. Failures are logged only.
func (s *Service) publish(ctx context.Context, evt events.Event) {
	if evt.At.IsZero() {
		evt.At = s.now()
	}
	// the mutation already committed; a request deadline must not drop its event
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.PublishTimeout)
	defer cancel()
	if err := s.events.Publish(pubCtx, evt); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("subject", evt.Subject),
			zap.String("id", evt.ID),
			zap.Error(err))
	}
}

// createAuthored inserts rec in the same transaction that confirms its
// author is still live, so a concurrent DeleteUser cannot orphan it.
func (s *Service) createAuthored(ctx context.Context, actor string, rec domain.Record) error {
	return s.store.RunInTx(ctx, func(ctx context.Context, tx store.Writer) error {
		if _, err := s.guard.On(tx).RequireUser(ctx, actor); err != nil {
			return err
		}
		return tx.Create(ctx, rec)
	})
}

func deletedCounts(r cascade.Report) map[string]int64 {
	out := make(map[string]int64, len(r.Deleted))
	for kind, n := range r.Deleted {
		if n > 0 {
			out[string(kind)] = n
		}
	}
	return out
}

// userIDByName resolves an optional username filter. An empty name matches
// everyone and yields "".
func (s *Service) userIDByName(ctx context.Context, username string) (string, error) {
	if username == "" {
		return "", nil
	}
	u, err := store.First[*domain.User](ctx, s.store, domain.KindUser, store.Filter{domain.FieldUsername: username}, username)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// authorFilter builds a filter on authorId from an optional username.
func (s *Service) authorFilter(ctx context.Context, username string) (store.Filter, error) {
	id, err := s.userIDByName(ctx, username)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return store.Filter{}, nil
	}
	return store.Filter{domain.FieldAuthorID: id}, nil
}
