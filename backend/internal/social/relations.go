package social

import (
	"context"
	"time"

	"channelfeed/backend/internal/constants"
	"channelfeed/backend/internal/domain"
	"channelfeed/backend/internal/events"
	"channelfeed/backend/internal/feed"
	"channelfeed/backend/internal/store"
)

// ConnectionQuery selects connections. At most one field is expected; when
// several are set the most specific wins: channel, then freet, then author.
type ConnectionQuery struct {
	Author    string
	ChannelID string
	FreetID   string
}

// FollowQuery selects follows by author username or channel id.
type FollowQuery struct {
	Author    string
	ChannelID string
}

// SubscribeQuery selects subscribes by either side's username.
type SubscribeQuery struct {
	Author        string
	SubscribingTo string
}

// ============================================================================
// Connections
// ============================================================================

// ListConnections returns connections newest first. A referenced channel
// or freet that does not exist is NotFound.
func (s *Service) ListConnections(ctx context.Context, q ConnectionQuery) (views []feed.ConnectionView, err error) {
	defer s.track("list_connections", time.Now(), &err)

	var conns []*domain.Connection
	switch {
	case q.ChannelID != "":
		conns, err = s.feed.ChannelConnections(ctx, q.ChannelID)
	case q.FreetID != "":
		if _, err = s.store.Get(ctx, domain.KindFreet, q.FreetID); err != nil {
			return nil, err
		}
		conns, err = s.findConnections(ctx, store.Filter{domain.FieldFreetID: q.FreetID})
	default:
		var filter store.Filter
		if filter, err = s.authorFilter(ctx, q.Author); err != nil {
			return nil, err
		}
		conns, err = s.findConnections(ctx, filter)
	}
	if err != nil {
		return nil, err
	}
	return s.resolver.Connections(ctx, conns)
}

func (s *Service) findConnections(ctx context.Context, filter store.Filter) ([]*domain.Connection, error) {
	conns, err := store.FindAll[*domain.Connection](ctx, s.store, domain.KindConnection, filter)
	if err != nil {
		return nil, err
	}
	domain.SortByTime(conns, domain.NewestFirst,
		func(c *domain.Connection) time.Time { return c.CreatedAt },
		func(c *domain.Connection) string { return c.ID })
	return conns, nil
}

// CreateConnection places a freet into one of the actor's channels.
func (s *Service) CreateConnection(ctx context.Context, actor, channelID, freetID string) (view feed.ConnectionView, err error) {
	defer s.track("create_connection", time.Now(), &err)

	c := &domain.Connection{
		ID:        s.newID(),
		AuthorID:  actor,
		ChannelID: channelID,
		FreetID:   freetID,
		CreatedAt: s.now(),
	}
	// liveness checks share the transaction with the insert so a cascade
	// cannot commit in between; the unique index still rejects a twin
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx store.Writer) error {
		g := s.guard.On(tx)
		if _, err := g.RequireUser(ctx, actor); err != nil {
			return err
		}
		if _, _, err := g.CanConnect(ctx, actor, channelID, freetID); err != nil {
			return err
		}
		return tx.Create(ctx, c)
	})
	if err != nil {
		return view, err
	}
	s.publish(ctx, events.Event{
		Subject: constants.SubjectConnectionCreated,
		ID:      c.ID,
		ActorID: actor,
		Refs:    map[string]string{domain.FieldChannelID: channelID, domain.FieldFreetID: freetID},
	})
	return s.resolver.Connection(ctx, c)
}

func (s *Service) DeleteConnection(ctx context.Context, actor, id string) (view feed.ConnectionView, err error) {
	defer s.track("delete_connection", time.Now(), &err)

	c, err := s.guard.CanDeleteConnection(ctx, actor, id)
	if err != nil {
		return view, err
	}
	if err := s.deleteRelation(ctx, domain.KindConnection, id); err != nil {
		return view, err
	}
	return s.resolver.Connection(ctx, c)
}

// ============================================================================
// Follows
// ============================================================================

// ListFollows returns follows newest first.
func (s *Service) ListFollows(ctx context.Context, q FollowQuery) (views []feed.FollowView, err error) {
	defer s.track("list_follows", time.Now(), &err)

	filter := store.Filter{}
	if q.ChannelID != "" {
		if _, err := s.store.Get(ctx, domain.KindChannel, q.ChannelID); err != nil {
			return nil, err
		}
		filter[domain.FieldChannelID] = q.ChannelID
	}
	if q.Author != "" {
		id, err := s.userIDByName(ctx, q.Author)
		if err != nil {
			return nil, err
		}
		filter[domain.FieldAuthorID] = id
	}
	follows, err := store.FindAll[*domain.Follow](ctx, s.store, domain.KindFollow, filter)
	if err != nil {
		return nil, err
	}
	domain.SortByTime(follows, domain.NewestFirst,
		func(f *domain.Follow) time.Time { return f.CreatedAt },
		func(f *domain.Follow) string { return f.ID })
	return s.resolver.Follows(ctx, follows)
}

// CreateFollow adds the actor to a channel they do not author.
func (s *Service) CreateFollow(ctx context.Context, actor, channelID string) (view feed.FollowView, err error) {
	defer s.track("create_follow", time.Now(), &err)

	f := &domain.Follow{ID: s.newID(), AuthorID: actor, ChannelID: channelID, CreatedAt: s.now()}
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx store.Writer) error {
		g := s.guard.On(tx)
		if _, err := g.RequireUser(ctx, actor); err != nil {
			return err
		}
		if _, err := g.CanFollow(ctx, actor, channelID); err != nil {
			return err
		}
		return tx.Create(ctx, f)
	})
	if err != nil {
		return view, err
	}
	s.publish(ctx, events.Event{
		Subject: constants.SubjectFollowCreated,
		ID:      f.ID,
		ActorID: actor,
		Refs:    map[string]string{domain.FieldChannelID: channelID},
	})
	return s.resolver.Follow(ctx, f)
}

func (s *Service) DeleteFollow(ctx context.Context, actor, id string) (view feed.FollowView, err error) {
	defer s.track("delete_follow", time.Now(), &err)

	f, err := s.guard.CanDeleteFollow(ctx, actor, id)
	if err != nil {
		return view, err
	}
	if err := s.deleteRelation(ctx, domain.KindFollow, id); err != nil {
		return view, err
	}
	return s.resolver.Follow(ctx, f)
}

// ============================================================================
// Subscribes
// ============================================================================

// ListSubscribes returns subscribes newest first.
func (s *Service) ListSubscribes(ctx context.Context, q SubscribeQuery) (views []feed.SubscribeView, err error) {
	defer s.track("list_subscribes", time.Now(), &err)

	filter := store.Filter{}
	for field, username := range map[string]string{
		domain.FieldAuthorID:        q.Author,
		domain.FieldSubscribingToID: q.SubscribingTo,
	} {
		if username == "" {
			continue
		}
		id, err := s.userIDByName(ctx, username)
		if err != nil {
			return nil, err
		}
		filter[field] = id
	}
	subs, err := store.FindAll[*domain.Subscribe](ctx, s.store, domain.KindSubscribe, filter)
	if err != nil {
		return nil, err
	}
	domain.SortByTime(subs, domain.NewestFirst,
		func(sub *domain.Subscribe) time.Time { return sub.CreatedAt },
		func(sub *domain.Subscribe) string { return sub.ID })
	return s.resolver.Subscribes(ctx, subs)
}

// CreateSubscribe subscribes the actor to another user's freets.
func (s *Service) CreateSubscribe(ctx context.Context, actor, username string) (view feed.SubscribeView, err error) {
	defer s.track("create_subscribe", time.Now(), &err)

	var sub *domain.Subscribe
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx store.Writer) error {
		g := s.guard.On(tx)
		if _, err := g.RequireUser(ctx, actor); err != nil {
			return err
		}
		target, err := g.CanSubscribe(ctx, actor, username)
		if err != nil {
			return err
		}
		sub = &domain.Subscribe{ID: s.newID(), AuthorID: actor, SubscribingToID: target.ID, CreatedAt: s.now()}
		return tx.Create(ctx, sub)
	})
	if err != nil {
		return view, err
	}
	s.publish(ctx, events.Event{
		Subject: constants.SubjectSubscribeCreated,
		ID:      sub.ID,
		ActorID: actor,
		Refs:    map[string]string{domain.FieldSubscribingToID: sub.SubscribingToID},
	})
	return s.resolver.Subscribe(ctx, sub)
}

// DeleteSubscribe removes one of the actor's own subscribes.
func (s *Service) DeleteSubscribe(ctx context.Context, actor, id string) (view feed.SubscribeView, err error) {
	defer s.track("delete_subscribe", time.Now(), &err)

	sub, err := s.guard.CanDeleteSubscribe(ctx, actor, id)
	if err != nil {
		return view, err
	}
	if err := s.deleteRelation(ctx, domain.KindSubscribe, id); err != nil {
		return view, err
	}
	return s.resolver.Subscribe(ctx, sub)
}

// deleteRelation reports NotFound when a concurrent delete got there first.
func (s *Service) deleteRelation(ctx context.Context, kind domain.Kind, id string) error {
	removed, err := s.store.Delete(ctx, kind, id)
	if err != nil {
		return err
	}
	if !removed {
		return notFound(kind, id)
	}
	return nil
}

// ============================================================================
// Feeds
// ============================================================================

// SubscribedFeed merges the freets of everyone the actor subscribes to.
func (s *Service) SubscribedFeed(ctx context.Context, actor string, order domain.Order) (views []feed.FreetView, err error) {
	defer s.track("subscribed_feed", time.Now(), &err)

	if _, err := s.guard.RequireUser(ctx, actor); err != nil {
		return nil, err
	}
	freets, err := s.feed.SubscribedFreets(ctx, actor, order)
	if err != nil {
		return nil, err
	}
	return s.resolver.Freets(ctx, freets)
}

// FollowedFeed merges the connections of every channel the actor follows.
func (s *Service) FollowedFeed(ctx context.Context, actor string, order domain.Order) (views []feed.ConnectionView, err error) {
	defer s.track("followed_feed", time.Now(), &err)

	if _, err := s.guard.RequireUser(ctx, actor); err != nil {
		return nil, err
	}
	conns, err := s.feed.FollowedConnections(ctx, actor, order)
	if err != nil {
		return nil, err
	}
	return s.resolver.Connections(ctx, conns)
}
