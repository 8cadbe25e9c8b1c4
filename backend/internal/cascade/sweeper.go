package cascade

import (
	"context"
	"time"

	"go.uber.org/zap"

	"channelfeed/backend/internal/domain"
	"channelfeed/backend/internal/metrics"
	"channelfeed/backend/internal/store"
	apperrors "channelfeed/backend/pkg/errors"
	"channelfeed/backend/pkg/logger"
)

// Sweeper deletes relations whose referenced entities no longer exist.
// Each deletion is independent and idempotent, so an interrupted sweep is
// safe to rerun.
type Sweeper struct {
	store   store.Writer
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewSweeper creates a reconciliation sweeper
func NewSweeper(s store.Writer, m *metrics.Metrics, log *zap.Logger) *Sweeper {
	if log == nil {
		log = logger.Get()
	}
	return &Sweeper{store: s, metrics: m, logger: log.Named("sweeper")}
}

// references lists the (kind, id) pairs a relation points at
func references(rec domain.Record) []ref {
	switch r := rec.(type) {
	case *domain.Connection:
		return []ref{{domain.KindUser, r.AuthorID}, {domain.KindChannel, r.ChannelID}, {domain.KindFreet, r.FreetID}}
	case *domain.Follow:
		return []ref{{domain.KindUser, r.AuthorID}, {domain.KindChannel, r.ChannelID}}
	case *domain.Subscribe:
		return []ref{{domain.KindUser, r.AuthorID}, {domain.KindUser, r.SubscribingToID}}
	case *domain.Channel:
		return []ref{{domain.KindUser, r.AuthorID}}
	case *domain.Freet:
		return []ref{{domain.KindUser, r.AuthorID}}
	}
	return nil
}

type ref struct {
	kind domain.Kind
	id   string
}

// Sweep scans every relation once and removes the dangling ones. Channels
// and freets of deleted users are swept first so their relations follow
// in the same pass.
func (s *Sweeper) Sweep(ctx context.Context) (map[domain.Kind]int64, error) {
	removed := make(map[domain.Kind]int64)
	live := make(map[ref]bool)

	exists := func(r ref) (bool, error) {
		if ok, seen := live[r]; seen {
			return ok, nil
		}
		ok, err := store.Exists(ctx, s.store, r.kind, r.id)
		if err != nil {
			return false, err
		}
		live[r] = ok
		return ok, nil
	}

	for _, kind := range []domain.Kind{
		domain.KindChannel,
		domain.KindFreet,
		domain.KindConnection,
		domain.KindFollow,
		domain.KindSubscribe,
	} {
		records, err := store.FindAll[domain.Record](ctx, s.store, kind, nil)
		if err != nil {
			return removed, apperrors.Classify("sweep "+string(kind), err)
		}
		for _, rec := range records {
			dangling, err := s.dangling(rec, exists)
			if err != nil {
				return removed, apperrors.Classify("sweep "+string(kind), err)
			}
			if !dangling {
				continue
			}
			ok, err := s.store.Delete(ctx, kind, rec.GetID())
			if err != nil {
				return removed, apperrors.Classify("sweep "+string(kind), err)
			}
			if ok {
				removed[kind]++
				live[ref{kind, rec.GetID()}] = false
			}
		}
	}

	for kind, n := range removed {
		s.metrics.SweepRemoved(string(kind), n)
	}
	return removed, nil
}

func (s *Sweeper) dangling(rec domain.Record, exists func(ref) (bool, error)) (bool, error) {
	for _, r := range references(rec) {
		ok, err := exists(r)
		if err != nil {
			return false, err
		}
		if !ok {
			s.logger.Debug("Removing dangling record",
				zap.String("kind", string(rec.Kind())),
				zap.String("id", rec.GetID()),
				zap.String("missing_kind", string(r.kind)),
				zap.String("missing_id", r.id))
			return true, nil
		}
	}
	return false, nil
}

// Run sweeps every interval until ctx is cancelled. A failed sweep is
// logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Sweeper started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sweeper stopped")
			return
		case <-ticker.C:
			removed, err := s.Sweep(ctx)
			if err != nil {
				s.logger.Warn("Sweep failed", zap.Error(err), zap.Bool("retryable", apperrors.IsRetryable(err)))
				continue
			}
			var total int64
			for _, n := range removed {
				total += n
			}
			if total > 0 {
				s.logger.Info("Sweep removed dangling records", zap.Int64("count", total))
			}
		}
	}
}
