package cascade

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"channelfeed/backend/internal/domain"
	"channelfeed/backend/internal/store"
	"channelfeed/backend/internal/store/memory"
	apperrors "channelfeed/backend/pkg/errors"
)

func seed(t *testing.T, s store.Writer, recs ...domain.Record) {
	t.Helper()
	for _, rec := range recs {
		require.NoError(t, s.Create(context.Background(), rec))
	}
}

func world(t *testing.T) *memory.Store {
	s := memory.New()
	seed(t, s,
		&domain.User{ID: "alice", Username: "alice"},
		&domain.User{ID: "bob", Username: "bob"},
		&domain.Channel{ID: "news", AuthorID: "alice", Title: "news"},
		&domain.Channel{ID: "pets", AuthorID: "alice", Title: "pets"},
		&domain.Freet{ID: "f1", AuthorID: "alice", Content: "one"},
		&domain.Freet{ID: "f2", AuthorID: "bob", Content: "two"},
		&domain.Connection{ID: "c1", AuthorID: "alice", ChannelID: "news", FreetID: "f1"},
		&domain.Connection{ID: "c2", AuthorID: "alice", ChannelID: "news", FreetID: "f2"},
		&domain.Connection{ID: "c3", AuthorID: "alice", ChannelID: "pets", FreetID: "f2"},
		&domain.Follow{ID: "fo1", AuthorID: "bob", ChannelID: "news"},
		&domain.Follow{ID: "fo2", AuthorID: "bob", ChannelID: "pets"},
		&domain.Subscribe{ID: "s1", AuthorID: "bob", SubscribingToID: "alice"},
		&domain.Subscribe{ID: "s2", AuthorID: "alice", SubscribingToID: "bob"},
	)
	return s
}

func count(t *testing.T, s store.Reader, kind domain.Kind, filter store.Filter) int {
	t.Helper()
	all, err := store.FindAll[domain.Record](context.Background(), s, kind, filter)
	require.NoError(t, err)
	return len(all)
}

func TestManager_DeleteChannel(t *testing.T) {
	ctx := context.Background()
	s := world(t)
	m := NewManager(s, nil, zap.NewNop())

	report, err := m.DeleteChannel(ctx, "news")
	require.NoError(t, err)
	assert.True(t, report.Found)
	assert.Equal(t, int64(2), report.Deleted[domain.KindConnection])
	assert.Equal(t, int64(1), report.Deleted[domain.KindFollow])
	assert.Equal(t, int64(4), report.Total())

	assert.Zero(t, count(t, s, domain.KindConnection, store.Filter{domain.FieldChannelID: "news"}))
	assert.Zero(t, count(t, s, domain.KindFollow, store.Filter{domain.FieldChannelID: "news"}))
	assert.Equal(t, 1, count(t, s, domain.KindConnection, nil))

	// second delete is a no-op
	report, err = m.DeleteChannel(ctx, "news")
	require.NoError(t, err)
	assert.False(t, report.Found)
	assert.Zero(t, report.Total())
}

func TestManager_DeleteFreet(t *testing.T) {
	ctx := context.Background()
	s := world(t)
	m := NewManager(s, nil, zap.NewNop())

	report, err := m.DeleteFreet(ctx, "f2")
	require.NoError(t, err)
	assert.True(t, report.Found)
	assert.Equal(t, int64(2), report.Deleted[domain.KindConnection])

	assert.Zero(t, count(t, s, domain.KindConnection, store.Filter{domain.FieldFreetID: "f2"}))
	assert.Equal(t, 1, count(t, s, domain.KindConnection, nil))
}

func TestManager_DeleteUser(t *testing.T) {
	ctx := context.Background()
	s := world(t)
	m := NewManager(s, nil, zap.NewNop())

	report, err := m.DeleteUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, report.Found)

	assert.Zero(t, count(t, s, domain.KindChannel, nil))
	assert.Zero(t, count(t, s, domain.KindConnection, nil))
	assert.Zero(t, count(t, s, domain.KindFollow, nil))
	assert.Zero(t, count(t, s, domain.KindSubscribe, nil))
	assert.Equal(t, 1, count(t, s, domain.KindFreet, nil))
	assert.Equal(t, 1, count(t, s, domain.KindUser, nil))
}

// failingStore fails follow deletion after the connections are already gone
type failingStore struct {
	*memory.Store
}

func (f failingStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Writer) error) error {
	return f.Store.RunInTx(ctx, func(ctx context.Context, tx store.Writer) error {
		return fn(ctx, failingWriter{tx})
	})
}

type failingWriter struct {
	store.Writer
}

func (w failingWriter) DeleteWhere(ctx context.Context, kind domain.Kind, filter store.Filter) (int64, error) {
	if kind == domain.KindFollow {
		return 0, errors.New("connection reset")
	}
	return w.Writer.DeleteWhere(ctx, kind, filter)
}

func TestManager_FailedCascadeLeavesNothingPartial(t *testing.T) {
	ctx := context.Background()
	s := world(t)
	m := NewManager(failingStore{s}, nil, zap.NewNop())

	_, err := m.DeleteChannel(ctx, "news")
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeStore))

	assert.Equal(t, 2, count(t, s, domain.KindConnection, store.Filter{domain.FieldChannelID: "news"}))
	ok, err := store.Exists(ctx, s, domain.KindChannel, "news")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSweeper_RemovesDanglingRelations(t *testing.T) {
	ctx := context.Background()
	s := world(t)

	// simulate a crash between cascade steps
	_, err := s.Delete(ctx, domain.KindChannel, "news")
	require.NoError(t, err)
	_, err = s.Delete(ctx, domain.KindFreet, "f2")
	require.NoError(t, err)

	removed, err := NewSweeper(s, nil, zap.NewNop()).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed[domain.KindConnection])
	assert.Equal(t, int64(1), removed[domain.KindFollow])

	assert.Zero(t, count(t, s, domain.KindConnection, nil))
	assert.Equal(t, 1, count(t, s, domain.KindFollow, nil))
	assert.Equal(t, 2, count(t, s, domain.KindSubscribe, nil))
}

func TestSweeper_RemovesOrphansOfDeletedUser(t *testing.T) {
	ctx := context.Background()
	s := world(t)

	_, err := s.Delete(ctx, domain.KindUser, "bob")
	require.NoError(t, err)

	sw := NewSweeper(s, nil, zap.NewNop())
	removed, err := sw.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed[domain.KindFreet])
	assert.Equal(t, int64(2), removed[domain.KindConnection])
	assert.Equal(t, int64(2), removed[domain.KindFollow])
	assert.Equal(t, int64(2), removed[domain.KindSubscribe])

	// nothing left to do
	removed, err = sw.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, removed)
}
