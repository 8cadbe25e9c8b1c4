package social

import (
	"context"
	"time"

	"channelfeed/backend/internal/cascade"
	"channelfeed/backend/internal/constants"
	"channelfeed/backend/internal/domain"
	"channelfeed/backend/internal/events"
	"channelfeed/backend/internal/feed"
	"channelfeed/backend/internal/guard"
	"channelfeed/backend/internal/store"
)

// ListFreets returns every freet, or those of one author, most recently
// modified first.
func (s *Service) ListFreets(ctx context.Context, author string) (views []feed.FreetView, err error) {
	defer s.track("list_freets", time.Now(), &err)

	filter, err := s.authorFilter(ctx, author)
	if err != nil {
		return nil, err
	}
	freets, err := store.FindAll[*domain.Freet](ctx, s.store, domain.KindFreet, filter)
	if err != nil {
		return nil, err
	}
	domain.SortByTime(freets, domain.NewestFirst,
		func(f *domain.Freet) time.Time { return f.ModifiedAt },
		func(f *domain.Freet) string { return f.ID })
	return s.resolver.Freets(ctx, freets)
}

func (s *Service) GetFreet(ctx context.Context, id string) (view feed.FreetView, err error) {
	defer s.track("get_freet", time.Now(), &err)

	f, err := store.GetAs[*domain.Freet](ctx, s.store, domain.KindFreet, id)
	if err != nil {
		return view, err
	}
	return s.resolver.Freet(ctx, f)
}

func (s *Service) CreateFreet(ctx context.Context, actor, content string) (view feed.FreetView, err error) {
	defer s.track("create_freet", time.Now(), &err)

	if _, err := s.guard.RequireUser(ctx, actor); err != nil {
		return view, err
	}
	content, err = guard.CheckText("Freet content", content)
	if err != nil {
		return view, err
	}
	now := s.now()
	f := &domain.Freet{ID: s.newID(), AuthorID: actor, Content: content, CreatedAt: now, ModifiedAt: now}
	if err := s.createAuthored(ctx, actor, f); err != nil {
		return view, err
	}
	return s.resolver.Freet(ctx, f)
}

func (s *Service) UpdateFreet(ctx context.Context, actor, id, content string) (view feed.FreetView, err error) {
	defer s.track("update_freet", time.Now(), &err)

	f, err := s.guard.CanModifyFreet(ctx, actor, id)
	if err != nil {
		return view, err
	}
	if f.Content, err = guard.CheckText("Freet content", content); err != nil {
		return view, err
	}
	f.ModifiedAt = s.now()
	if err := s.store.Update(ctx, f); err != nil {
		return view, err
	}
	return s.resolver.Freet(ctx, f)
}

// DeleteFreet removes the freet and every connection placing it in a channel.
func (s *Service) DeleteFreet(ctx context.Context, actor, id string) (report cascade.Report, err error) {
	defer s.track("delete_freet", time.Now(), &err)

	if _, err := s.guard.CanModifyFreet(ctx, actor, id); err != nil {
		return report, err
	}
	report, err = s.cascade.DeleteFreet(ctx, id)
	if err != nil {
		return report, err
	}
	if !report.Found {
		return report, notFound(domain.KindFreet, id)
	}
	s.publish(ctx, events.Event{
		Subject: constants.SubjectFreetDeleted,
		ID:      id,
		ActorID: actor,
		Deleted: deletedCounts(report),
	})
	return report, nil
}
