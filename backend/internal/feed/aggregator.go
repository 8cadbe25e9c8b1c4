// Package feed builds per-user feeds by merging records drawn from several
// relations, and resolves stored records into response views.
package feed

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"channelfeed/backend/internal/domain"
	"channelfeed/backend/internal/metrics"
	"channelfeed/backend/internal/store"
	apperrors "channelfeed/backend/pkg/errors"
	"channelfeed/backend/pkg/logger"
)

// Feed names used in logs and metrics
const (
	FeedSubscribed = "subscribed"
	FeedFollowed   = "followed"
	FeedChannel    = "channel"
)

const defaultFanout = 8

// Aggregator runs the scatter-gather-sort feed algorithms. Every call reads
// the store afresh; nothing is cached between calls.
type Aggregator struct {
	store   store.Reader
	fanout  int
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewAggregator creates an aggregator that runs at most fanout relation
// fetches at once.
func NewAggregator(r store.Reader, fanout int, m *metrics.Metrics, log *zap.Logger) *Aggregator {
	if fanout <= 0 {
		fanout = defaultFanout
	}
	if log == nil {
		log = logger.Get()
	}
	return &Aggregator{store: r, fanout: fanout, metrics: m, logger: log.Named("feed")}
}

// SubscribedFreets merges the freets of every user that userID subscribes
// to, ordered by modification time.
func (a *Aggregator) SubscribedFreets(ctx context.Context, userID string, order domain.Order) ([]*domain.Freet, error) {
	subs, err := store.FindAll[*domain.Subscribe](ctx, a.store, domain.KindSubscribe, store.Filter{domain.FieldAuthorID: userID})
	if err != nil {
		return nil, apperrors.Classify("list subscribes", err)
	}

	freets, err := gather(ctx, a, subs, func(ctx context.Context, s *domain.Subscribe) ([]*domain.Freet, error) {
		live, err := store.Exists(ctx, a.store, domain.KindUser, s.SubscribingToID)
		if err != nil || !live {
			return nil, err
		}
		return store.FindAll[*domain.Freet](ctx, a.store, domain.KindFreet, store.Filter{domain.FieldAuthorID: s.SubscribingToID})
	})
	if err != nil {
		return nil, apperrors.Classify("subscribed feed", err)
	}

	domain.SortByTime(freets, order,
		func(f *domain.Freet) time.Time { return f.ModifiedAt },
		func(f *domain.Freet) string { return f.ID })
	a.observe(FeedSubscribed, userID, len(subs), len(freets))
	return freets, nil
}

// FollowedConnections merges the connections of every channel userID
// follows, ordered by creation time.
func (a *Aggregator) FollowedConnections(ctx context.Context, userID string, order domain.Order) ([]*domain.Connection, error) {
	follows, err := store.FindAll[*domain.Follow](ctx, a.store, domain.KindFollow, store.Filter{domain.FieldAuthorID: userID})
	if err != nil {
		return nil, apperrors.Classify("list follows", err)
	}

	conns, err := gather(ctx, a, follows, func(ctx context.Context, f *domain.Follow) ([]*domain.Connection, error) {
		live, err := store.Exists(ctx, a.store, domain.KindChannel, f.ChannelID)
		if err != nil || !live {
			return nil, err
		}
		return store.FindAll[*domain.Connection](ctx, a.store, domain.KindConnection, store.Filter{domain.FieldChannelID: f.ChannelID})
	})
	if err != nil {
		return nil, apperrors.Classify("followed feed", err)
	}

	sortConnections(conns, order)
	a.observe(FeedFollowed, userID, len(follows), len(conns))
	return conns, nil
}

// ChannelConnections lists one channel's connections, newest first.
func (a *Aggregator) ChannelConnections(ctx context.Context, channelID string) ([]*domain.Connection, error) {
	if _, err := a.store.Get(ctx, domain.KindChannel, channelID); err != nil {
		return nil, apperrors.Classify("get channel", err)
	}
	conns, err := store.FindAll[*domain.Connection](ctx, a.store, domain.KindConnection, store.Filter{domain.FieldChannelID: channelID})
	if err != nil {
		return nil, apperrors.Classify("list connections", err)
	}
	sortConnections(conns, domain.NewestFirst)
	a.metrics.FeedItems(FeedChannel, len(conns))
	return conns, nil
}

func sortConnections(conns []*domain.Connection, order domain.Order) {
	domain.SortByTime(conns, order,
		func(c *domain.Connection) time.Time { return c.CreatedAt },
		func(c *domain.Connection) string { return c.ID })
}

func (a *Aggregator) observe(feed, userID string, relations, items int) {
	a.metrics.FeedItems(feed, items)
	a.logger.Debug("Feed aggregated",
		zap.String("feed", feed),
		zap.String("user_id", userID),
		zap.Int("relations", relations),
		zap.Int("items", items))
}

// gather runs fetch for every relation under the aggregator's fan-out limit
// and concatenates the results in relation order. The first error cancels
// the remaining fetches.
func gather[R, T any](ctx context.Context, a *Aggregator, relations []R, fetch func(context.Context, R) ([]T, error)) ([]T, error) {
	results := make([][]T, len(relations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.fanout)
	for i, rel := range relations {
		g.Go(func() error {
			items, err := fetch(gctx, rel)
			if err != nil {
				return err
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	merged := make([]T, 0, total)
	for _, r := range results {
		merged = append(merged, r...)
	}
	return merged, nil
}
