// Package cascade propagates deletions so no relation outlives the entities
// it references.
package cascade

import (
	"context"

	"go.uber.org/zap"

	"channelfeed/backend/internal/domain"
	"channelfeed/backend/internal/metrics"
	"channelfeed/backend/internal/store"
	apperrors "channelfeed/backend/pkg/errors"
	"channelfeed/backend/pkg/logger"
)

// Report describes what one cascade removed
type Report struct {
	// Found is false when the root entity was already absent.
	Found   bool
	Deleted map[domain.Kind]int64
}

func newReport() Report {
	return Report{Deleted: make(map[domain.Kind]int64)}
}

func (r Report) add(kind domain.Kind, n int64) {
	r.Deleted[kind] += n
}

// Total is the number of records removed across kinds.
func (r Report) Total() int64 {
	var n int64
	for _, c := range r.Deleted {
		n += c
	}
	return n
}

// Manager runs each cascade as one store transaction
type Manager struct {
	store   store.Store
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewManager creates a cascade manager
func NewManager(s store.Store, m *metrics.Metrics, log *zap.Logger) *Manager {
	if log == nil {
		log = logger.Get()
	}
	return &Manager{store: s, metrics: m, logger: log.Named("cascade")}
}

// DeleteChannel removes the channel's connections and follows, then the channel.
func (m *Manager) DeleteChannel(ctx context.Context, channelID string) (Report, error) {
	return m.run(ctx, "delete channel", func(ctx context.Context, tx store.Writer, r Report) (bool, error) {
		return deleteChannel(ctx, tx, channelID, r)
	})
}

// DeleteFreet removes every connection of the freet, then the freet.
func (m *Manager) DeleteFreet(ctx context.Context, freetID string) (Report, error) {
	return m.run(ctx, "delete freet", func(ctx context.Context, tx store.Writer, r Report) (bool, error) {
		return deleteFreet(ctx, tx, freetID, r)
	})
}

// DeleteUser removes the user's channels and freets with their cascades,
// every relation the user authored, the subscribes targeting the user and
// finally the user.
func (m *Manager) DeleteUser(ctx context.Context, userID string) (Report, error) {
	return m.run(ctx, "delete user", func(ctx context.Context, tx store.Writer, r Report) (bool, error) {
		byAuthor := store.Filter{domain.FieldAuthorID: userID}

		channels, err := store.FindAll[*domain.Channel](ctx, tx, domain.KindChannel, byAuthor)
		if err != nil {
			return false, err
		}
		for _, c := range channels {
			if _, err := deleteChannel(ctx, tx, c.ID, r); err != nil {
				return false, err
			}
		}

		freets, err := store.FindAll[*domain.Freet](ctx, tx, domain.KindFreet, byAuthor)
		if err != nil {
			return false, err
		}
		for _, f := range freets {
			if _, err := deleteFreet(ctx, tx, f.ID, r); err != nil {
				return false, err
			}
		}

		for _, step := range []struct {
			kind   domain.Kind
			filter store.Filter
		}{
			{domain.KindConnection, byAuthor},
			{domain.KindFollow, byAuthor},
			{domain.KindSubscribe, byAuthor},
			{domain.KindSubscribe, store.Filter{domain.FieldSubscribingToID: userID}},
		} {
			n, err := tx.DeleteWhere(ctx, step.kind, step.filter)
			if err != nil {
				return false, err
			}
			r.add(step.kind, n)
		}

		return deleteRoot(ctx, tx, domain.KindUser, userID, r)
	})
}

func (m *Manager) run(ctx context.Context, op string, fn func(ctx context.Context, tx store.Writer, r Report) (bool, error)) (Report, error) {
	var report Report
	err := m.store.RunInTx(ctx, func(ctx context.Context, tx store.Writer) error {
		// a retried transaction starts from a clean report
		report = newReport()
		found, err := fn(ctx, tx, report)
		report.Found = found
		return err
	})
	if err != nil {
		m.logger.Warn("Cascade failed", zap.String("operation", op), zap.Error(err))
		return Report{}, apperrors.Classify(op, err)
	}

	for kind, n := range report.Deleted {
		m.metrics.CascadeDeleted(string(kind), n)
	}
	m.logger.Debug("Cascade committed",
		zap.String("operation", op),
		zap.Bool("found", report.Found),
		zap.Int64("deleted", report.Total()))
	return report, nil
}

func deleteChannel(ctx context.Context, tx store.Writer, channelID string, r Report) (bool, error) {
	byChannel := store.Filter{domain.FieldChannelID: channelID}
	for _, kind := range []domain.Kind{domain.KindConnection, domain.KindFollow} {
		n, err := tx.DeleteWhere(ctx, kind, byChannel)
		if err != nil {
			return false, err
		}
		r.add(kind, n)
	}
	return deleteRoot(ctx, tx, domain.KindChannel, channelID, r)
}

func deleteFreet(ctx context.Context, tx store.Writer, freetID string, r Report) (bool, error) {
	n, err := tx.DeleteWhere(ctx, domain.KindConnection, store.Filter{domain.FieldFreetID: freetID})
	if err != nil {
		return false, err
	}
	r.add(domain.KindConnection, n)
	return deleteRoot(ctx, tx, domain.KindFreet, freetID, r)
}

func deleteRoot(ctx context.Context, tx store.Writer, kind domain.Kind, id string, r Report) (bool, error) {
	removed, err := tx.Delete(ctx, kind, id)
	if err != nil {
		return false, err
	}
	if removed {
		r.add(kind, 1)
	}
	return removed, nil
}
