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
	apperrors "channelfeed/backend/pkg/errors"
)

// ChannelPatch carries the fields to change. Nil fields are left as they are.
type ChannelPatch struct {
	Title       *string
	Description *string
}

// ListChannels returns every channel, or those of one author, most
// recently modified first.
func (s *Service) ListChannels(ctx context.Context, author string) (views []feed.ChannelView, err error) {
	defer s.track("list_channels", time.Now(), &err)

	filter, err := s.authorFilter(ctx, author)
	if err != nil {
		return nil, err
	}
	channels, err := store.FindAll[*domain.Channel](ctx, s.store, domain.KindChannel, filter)
	if err != nil {
		return nil, err
	}
	domain.SortByTime(channels, domain.NewestFirst,
		func(c *domain.Channel) time.Time { return c.ModifiedAt },
		func(c *domain.Channel) string { return c.ID })
	return s.resolver.Channels(ctx, channels)
}

func (s *Service) GetChannel(ctx context.Context, id string) (view feed.ChannelView, err error) {
	defer s.track("get_channel", time.Now(), &err)

	c, err := store.GetAs[*domain.Channel](ctx, s.store, domain.KindChannel, id)
	if err != nil {
		return view, err
	}
	return s.resolver.Channel(ctx, c)
}

func (s *Service) CreateChannel(ctx context.Context, actor, title, description string) (view feed.ChannelView, err error) {
	defer s.track("create_channel", time.Now(), &err)

	if _, err := s.guard.RequireUser(ctx, actor); err != nil {
		return view, err
	}
	title, err = guard.CheckText("Channel title", title)
	if err != nil {
		return view, err
	}
	now := s.now()
	c := &domain.Channel{
		ID:          s.newID(),
		AuthorID:    actor,
		Title:       title,
		Description: description,
		CreatedAt:   now,
		ModifiedAt:  now,
	}
	if err := s.createAuthored(ctx, actor, c); err != nil {
		return view, err
	}
	return s.resolver.Channel(ctx, c)
}

// UpdateChannel changes title and/or description. Only the author may.
func (s *Service) UpdateChannel(ctx context.Context, actor, id string, patch ChannelPatch) (view feed.ChannelView, err error) {
	defer s.track("update_channel", time.Now(), &err)

	c, err := s.guard.CanModifyChannel(ctx, actor, id)
	if err != nil {
		return view, err
	}
	if patch.Title != nil {
		if c.Title, err = guard.CheckText("Channel title", *patch.Title); err != nil {
			return view, err
		}
	}
	if patch.Description != nil {
		c.Description = *patch.Description
	}
	c.ModifiedAt = s.now()
	if err := s.store.Update(ctx, c); err != nil {
		return view, err
	}
	return s.resolver.Channel(ctx, c)
}

// DeleteChannel removes the channel with its connections and follows.
func (s *Service) DeleteChannel(ctx context.Context, actor, id string) (report cascade.Report, err error) {
	defer s.track("delete_channel", time.Now(), &err)

	if _, err := s.guard.CanModifyChannel(ctx, actor, id); err != nil {
		return report, err
	}
	report, err = s.cascade.DeleteChannel(ctx, id)
	if err != nil {
		return report, err
	}
	if !report.Found {
		return report, notFound(domain.KindChannel, id)
	}
	s.publish(ctx, events.Event{
		Subject: constants.SubjectChannelDeleted,
		ID:      id,
		ActorID: actor,
		Deleted: deletedCounts(report),
	})
	return report, nil
}

// notFound reports a root that vanished between the guard check and the write.
func notFound(kind domain.Kind, id string) error {
	return apperrors.NewNotFound(kind.Entity(), id)
}
