// Package guard holds the relation invariants checked before any mutation
// commits. The duplicate scans give callers a friendly early rejection; the
// store's unique constraints remain the enforcement.
package guard

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"channelfeed/backend/internal/constants"
	"channelfeed/backend/internal/domain"
	"channelfeed/backend/internal/store"
	apperrors "channelfeed/backend/pkg/errors"
	"channelfeed/backend/pkg/logger"
)

// Guard evaluates authorization and uniqueness predicates against a store
type Guard struct {
	store  store.Reader
	logger *zap.Logger
}

// New creates a guard reading from r
func New(r store.Reader, log *zap.Logger) *Guard {
	if log == nil {
		log = logger.Get()
	}
	return &Guard{store: r, logger: log}
}

// On returns a guard reading through r, typically a transaction's writer,
// so checks and the write that follows see the same snapshot.
func (g *Guard) On(r store.Reader) *Guard {
	return &Guard{store: r, logger: g.logger}
}

// ============================================================================
// Pure checks
// ============================================================================

// RequireActor rejects anonymous calls.
func RequireActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return apperrors.NewNotAuthorized("", "auth", "You must be signed in to complete this action.")
	}
	return nil
}

// RequireUser resolves actor to a live account.
func (g *Guard) RequireUser(ctx context.Context, actor string) (*domain.User, error) {
	if err := RequireActor(actor); err != nil {
		return nil, err
	}
	user, err := store.GetAs[*domain.User](ctx, g.store, domain.KindUser, actor)
	if apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound) {
		return nil, apperrors.NewNotAuthorized(actor, "auth", "You must be signed in to complete this action.")
	}
	return user, err
}

// CheckText trims text and rejects it when empty or longer than the limit.
// field is the display name used in the message, e.g. "Channel title".
func CheckText(field, text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", apperrors.NewValidation(field, "must be at least one character long.")
	}
	if utf8.RuneCountInString(trimmed) > constants.MaxTextLength {
		return "", apperrors.NewTooLong(field, constants.MaxTextLength)
	}
	return trimmed, nil
}

// CheckUsername validates a username for account creation.
func CheckUsername(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", apperrors.NewValidation("Username", "must be at least one character long.")
	}
	if utf8.RuneCountInString(trimmed) > constants.MaxUsernameLength {
		return "", apperrors.NewTooLong("Username", constants.MaxUsernameLength)
	}
	if strings.ContainsFunc(trimmed, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' }) {
		return "", apperrors.NewValidation("Username", "must not contain whitespace.")
	}
	return trimmed, nil
}

// ============================================================================
// Relation creation
// ============================================================================

// CanConnect checks that actor authors the channel, both ends are live and
// the freet is not already in the channel.
func (g *Guard) CanConnect(ctx context.Context, actor, channelID, freetID string) (*domain.Channel, *domain.Freet, error) {
	if err := RequireActor(actor); err != nil {
		return nil, nil, err
	}
	channel, err := store.GetAs[*domain.Channel](ctx, g.store, domain.KindChannel, channelID)
	if err != nil {
		return nil, nil, err
	}
	freet, err := store.GetAs[*domain.Freet](ctx, g.store, domain.KindFreet, freetID)
	if err != nil {
		return nil, nil, err
	}
	if channel.AuthorID != actor {
		return nil, nil, apperrors.NewNotAuthorized(actor, "connection", "Cannot connect to other users' channels.")
	}

	for rec, err := range g.store.Find(ctx, domain.KindConnection, store.Filter{domain.FieldFreetID: freetID}) {
		if err != nil {
			return nil, nil, err
		}
		if c := rec.(*domain.Connection); c.ChannelID == channelID {
			return nil, nil, store.DuplicateError(c)
		}
	}
	return channel, freet, nil
}

// CanFollow checks that the channel is live, actor is not its author and
// does not already follow it.
func (g *Guard) CanFollow(ctx context.Context, actor, channelID string) (*domain.Channel, error) {
	if err := RequireActor(actor); err != nil {
		return nil, err
	}
	channel, err := store.GetAs[*domain.Channel](ctx, g.store, domain.KindChannel, channelID)
	if err != nil {
		return nil, err
	}
	if channel.AuthorID == actor {
		return nil, apperrors.NewNotAuthorized(actor, "follow", "Cannot follow own channels.")
	}

	for rec, err := range g.store.Find(ctx, domain.KindFollow, store.Filter{domain.FieldAuthorID: actor}) {
		if err != nil {
			return nil, err
		}
		if f := rec.(*domain.Follow); f.ChannelID == channelID {
			return nil, store.DuplicateError(f)
		}
	}
	return channel, nil
}

// CanSubscribe resolves the target by username and checks that actor is
// neither the target nor already subscribed.
func (g *Guard) CanSubscribe(ctx context.Context, actor, username string) (*domain.User, error) {
	if err := RequireActor(actor); err != nil {
		return nil, err
	}
	target, err := store.First[*domain.User](ctx, g.store, domain.KindUser, store.Filter{domain.FieldUsername: username}, username)
	if err != nil {
		return nil, err
	}
	if target.ID == actor {
		return nil, apperrors.NewNotAuthorized(actor, "subscribe", "Cannot subscribe to yourself.")
	}

	for rec, err := range g.store.Find(ctx, domain.KindSubscribe, store.Filter{domain.FieldAuthorID: actor}) {
		if err != nil {
			return nil, err
		}
		if s := rec.(*domain.Subscribe); s.SubscribingToID == target.ID {
			return nil, store.DuplicateError(s)
		}
	}
	return target, nil
}

// ============================================================================
// Ownership
// ============================================================================

// CanModifyChannel returns the channel when actor authored it.
func (g *Guard) CanModifyChannel(ctx context.Context, actor, channelID string) (*domain.Channel, error) {
	return owned[*domain.Channel](ctx, g, actor, domain.KindChannel, channelID, "Cannot modify other users' Channels.")
}

// CanModifyFreet returns the freet when actor authored it.
func (g *Guard) CanModifyFreet(ctx context.Context, actor, freetID string) (*domain.Freet, error) {
	return owned[*domain.Freet](ctx, g, actor, domain.KindFreet, freetID, "Cannot modify other users' freets.")
}

func (g *Guard) CanDeleteConnection(ctx context.Context, actor, id string) (*domain.Connection, error) {
	return owned[*domain.Connection](ctx, g, actor, domain.KindConnection, id, "Cannot delete other user's connections.")
}

func (g *Guard) CanDeleteFollow(ctx context.Context, actor, id string) (*domain.Follow, error) {
	return owned[*domain.Follow](ctx, g, actor, domain.KindFollow, id, "Cannot delete other user's follows.")
}

func (g *Guard) CanDeleteSubscribe(ctx context.Context, actor, id string) (*domain.Subscribe, error) {
	return owned[*domain.Subscribe](ctx, g, actor, domain.KindSubscribe, id, "Cannot delete other user's subscribes.")
}

// CanDeleteUser allows an account to be removed only by itself.
func (g *Guard) CanDeleteUser(ctx context.Context, actor, userID string) (*domain.User, error) {
	if err := RequireActor(actor); err != nil {
		return nil, err
	}
	user, err := store.GetAs[*domain.User](ctx, g.store, domain.KindUser, userID)
	if err != nil {
		return nil, err
	}
	if user.ID != actor {
		return nil, apperrors.NewNotAuthorized(actor, "user", "Cannot delete other users' accounts.")
	}
	return user, nil
}

// owned checks sign-in, then existence, then authorship.
func owned[T domain.Record](ctx context.Context, g *Guard, actor string, kind domain.Kind, id, reason string) (T, error) {
	var zero T
	if err := RequireActor(actor); err != nil {
		return zero, err
	}
	rec, err := store.GetAs[T](ctx, g.store, kind, id)
	if err != nil {
		return zero, err
	}
	author, _ := rec.Field(domain.FieldAuthorID)
	if author != actor {
		g.logger.Debug("Ownership check rejected",
			zap.String("kind", string(kind)),
			zap.String("id", id),
			zap.String("actor", actor))
		return zero, apperrors.NewNotAuthorized(actor, kind.Entity(), reason)
	}
	return rec, nil
}
