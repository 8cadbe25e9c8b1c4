package feed

import (
	"context"

	"channelfeed/backend/internal/domain"
	"channelfeed/backend/internal/store"
	apperrors "channelfeed/backend/pkg/errors"
)

// Resolver turns stored records into views by looking up the records they
// reference. Lookups are memoized per call only, so a view never reflects
// state older than the call that built it.
type Resolver struct {
	store store.Reader
}

// NewResolver creates a resolver reading from r
func NewResolver(r store.Reader) *Resolver {
	return &Resolver{store: r}
}

type lookupKey struct {
	kind domain.Kind
	id   string
}

// lookup memoizes Get results, including misses, for one resolve call
type lookup struct {
	ctx   context.Context
	store store.Reader
	seen  map[lookupKey]domain.Record
}

func (r *Resolver) newLookup(ctx context.Context) *lookup {
	return &lookup{ctx: ctx, store: r.store, seen: make(map[lookupKey]domain.Record)}
}

// get returns nil without error when the record is absent.
func (l *lookup) get(kind domain.Kind, id string) (domain.Record, error) {
	key := lookupKey{kind, id}
	if rec, ok := l.seen[key]; ok {
		return rec, nil
	}
	rec, err := l.store.Get(l.ctx, kind, id)
	if err != nil {
		if !apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound) {
			return nil, err
		}
		rec = nil
	}
	l.seen[key] = rec
	return rec, nil
}

func (l *lookup) username(id string) (string, error) {
	rec, err := l.get(domain.KindUser, id)
	if err != nil || rec == nil {
		return "", err
	}
	return rec.(*domain.User).Username, nil
}

func (l *lookup) channel(id string) (*domain.Channel, error) {
	rec, err := l.get(domain.KindChannel, id)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.(*domain.Channel), nil
}

func (l *lookup) freet(id string) (*domain.Freet, error) {
	rec, err := l.get(domain.KindFreet, id)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.(*domain.Freet), nil
}

// resolveAll applies fn to every item with one shared lookup.
func resolveAll[T, V any](ctx context.Context, r *Resolver, items []T, fn func(*lookup, T) (V, error)) ([]V, error) {
	l := r.newLookup(ctx)
	out := make([]V, 0, len(items))
	for _, item := range items {
		v, err := fn(l, item)
		if err != nil {
			return nil, apperrors.Classify("resolve", err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *Resolver) Channels(ctx context.Context, channels []*domain.Channel) ([]ChannelView, error) {
	return resolveAll(ctx, r, channels, func(l *lookup, c *domain.Channel) (ChannelView, error) {
		author, err := l.username(c.AuthorID)
		return ChannelView{
			ID:           c.ID,
			Author:       author,
			Title:        c.Title,
			Description:  c.Description,
			DateCreated:  formatDate(c.CreatedAt),
			DateModified: formatDate(c.ModifiedAt),
		}, err
	})
}

func (r *Resolver) Freets(ctx context.Context, freets []*domain.Freet) ([]FreetView, error) {
	return resolveAll(ctx, r, freets, func(l *lookup, f *domain.Freet) (FreetView, error) {
		author, err := l.username(f.AuthorID)
		return FreetView{
			ID:           f.ID,
			Author:       author,
			Content:      f.Content,
			DateCreated:  formatDate(f.CreatedAt),
			DateModified: formatDate(f.ModifiedAt),
		}, err
	})
}

func (r *Resolver) Connections(ctx context.Context, conns []*domain.Connection) ([]ConnectionView, error) {
	return resolveAll(ctx, r, conns, func(l *lookup, c *domain.Connection) (ConnectionView, error) {
		v := ConnectionView{ID: c.ID, DateCreated: formatDate(c.CreatedAt)}
		var err error
		if v.Author, err = l.username(c.AuthorID); err != nil {
			return v, err
		}
		if v.Channel, err = l.channel(c.ChannelID); err != nil {
			return v, err
		}
		v.Freet, err = l.freet(c.FreetID)
		return v, err
	})
}

func (r *Resolver) Follows(ctx context.Context, follows []*domain.Follow) ([]FollowView, error) {
	return resolveAll(ctx, r, follows, func(l *lookup, f *domain.Follow) (FollowView, error) {
		v := FollowView{ID: f.ID, DateCreated: formatDate(f.CreatedAt)}
		var err error
		if v.Author, err = l.username(f.AuthorID); err != nil {
			return v, err
		}
		v.Channel, err = l.channel(f.ChannelID)
		return v, err
	})
}

func (r *Resolver) Subscribes(ctx context.Context, subs []*domain.Subscribe) ([]SubscribeView, error) {
	return resolveAll(ctx, r, subs, func(l *lookup, s *domain.Subscribe) (SubscribeView, error) {
		v := SubscribeView{
			ID:              s.ID,
			AuthorID:        s.AuthorID,
			SubscribingToID: s.SubscribingToID,
			DateCreated:     formatDate(s.CreatedAt),
		}
		var err error
		if v.Author, err = l.username(s.AuthorID); err != nil {
			return v, err
		}
		v.SubscribingTo, err = l.username(s.SubscribingToID)
		return v, err
	})
}

// Channel resolves a single channel.
func (r *Resolver) Channel(ctx context.Context, c *domain.Channel) (ChannelView, error) {
	return one(r.Channels(ctx, []*domain.Channel{c}))
}

func (r *Resolver) Freet(ctx context.Context, f *domain.Freet) (FreetView, error) {
	return one(r.Freets(ctx, []*domain.Freet{f}))
}

func (r *Resolver) Connection(ctx context.Context, c *domain.Connection) (ConnectionView, error) {
	return one(r.Connections(ctx, []*domain.Connection{c}))
}

func (r *Resolver) Follow(ctx context.Context, f *domain.Follow) (FollowView, error) {
	return one(r.Follows(ctx, []*domain.Follow{f}))
}

func (r *Resolver) Subscribe(ctx context.Context, s *domain.Subscribe) (SubscribeView, error) {
	return one(r.Subscribes(ctx, []*domain.Subscribe{s}))
}

func one[V any](views []V, err error) (V, error) {
	var zero V
	if err != nil {
		return zero, err
	}
	return views[0], nil
}
