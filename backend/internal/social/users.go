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

// CreateUser registers an account. Usernames are unique.
func (s *Service) CreateUser(ctx context.Context, username string) (view feed.UserView, err error) {
	defer s.track("create_user", time.Now(), &err)

	name, err := guard.CheckUsername(username)
	if err != nil {
		return view, err
	}
	u := &domain.User{ID: s.newID(), Username: name, CreatedAt: s.now()}
	if err := s.store.Create(ctx, u); err != nil {
		return view, err
	}
	return feed.UserViewOf(u), nil
}

func (s *Service) GetUser(ctx context.Context, id string) (view feed.UserView, err error) {
	defer s.track("get_user", time.Now(), &err)

	u, err := store.GetAs[*domain.User](ctx, s.store, domain.KindUser, id)
	if err != nil {
		return view, err
	}
	return feed.UserViewOf(u), nil
}

func (s *Service) GetUserByUsername(ctx context.Context, username string) (view feed.UserView, err error) {
	defer s.track("get_user", time.Now(), &err)

	u, err := store.First[*domain.User](ctx, s.store, domain.KindUser, store.Filter{domain.FieldUsername: username}, username)
	if err != nil {
		return view, err
	}
	return feed.UserViewOf(u), nil
}

// DeleteUser removes the actor's own account with everything it owns and
// every relation pointing at it.
func (s *Service) DeleteUser(ctx context.Context, actor, userID string) (report cascade.Report, err error) {
	defer s.track("delete_user", time.Now(), &err)

	if _, err := s.guard.CanDeleteUser(ctx, actor, userID); err != nil {
		return report, err
	}
	report, err = s.cascade.DeleteUser(ctx, userID)
	if err != nil {
		return report, err
	}
	if !report.Found {
		return report, notFound(domain.KindUser, userID)
	}
	s.publish(ctx, events.Event{
		Subject: constants.SubjectUserDeleted,
		ID:      userID,
		ActorID: actor,
		Deleted: deletedCounts(report),
	})
	return report, nil
}
