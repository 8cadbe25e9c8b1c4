package mongostore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"channelfeed/backend/internal/domain"
	"channelfeed/backend/internal/store"
	apperrors "channelfeed/backend/pkg/errors"
)

// openTestStore connects to MONGO_URI (default localhost) in a throwaway
// database, skipping when no server answers.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	s, err := Open(ctx, uri, "channelfeed_test_"+uuid.NewString()[:8], os.Getenv("MONGO_TRANSACTIONS") == "true", zap.NewNop())
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.db.Drop(ctx)
		_ = s.Close(ctx)
	})
	require.NoError(t, s.EnsureSchema(ctx))
	return s
}

func TestMongoStore_CRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	ch := &domain.Channel{ID: "c1", AuthorID: "alice", Title: "news", CreatedAt: now, ModifiedAt: now}
	require.NoError(t, s.Create(ctx, ch))

	got, err := store.GetAs[*domain.Channel](ctx, s, domain.KindChannel, "c1")
	require.NoError(t, err)
	assert.Equal(t, "news", got.Title)
	assert.True(t, now.Equal(got.CreatedAt))

	got.Title = "updates"
	require.NoError(t, s.Update(ctx, got))
	again, err := store.GetAs[*domain.Channel](ctx, s, domain.KindChannel, "c1")
	require.NoError(t, err)
	assert.Equal(t, "updates", again.Title)

	err = s.Update(ctx, &domain.Channel{ID: "missing"})
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))

	removed, err := s.Delete(ctx, domain.KindChannel, "c1")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.Delete(ctx, domain.KindChannel, "c1")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = s.Get(ctx, domain.KindChannel, "c1")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
}

func TestMongoStore_CompoundUniqueness(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &domain.Follow{ID: "f1", AuthorID: "bob", ChannelID: "c1"}))
	err := s.Create(ctx, &domain.Follow{ID: "f2", AuthorID: "bob", ChannelID: "c1"})
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeDuplicate))

	require.NoError(t, s.Create(ctx, &domain.Follow{ID: "f3", AuthorID: "carol", ChannelID: "c1"}))

	follows, err := store.FindAll[*domain.Follow](ctx, s, domain.KindFollow, store.Filter{domain.FieldChannelID: "c1"})
	require.NoError(t, err)
	require.Len(t, follows, 2)
	assert.Equal(t, "f1", follows[0].ID)

	n, err := s.DeleteWhere(ctx, domain.KindFollow, store.Filter{domain.FieldChannelID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestMongoStore_RunInTx(t *testing.T) {
	s := openTestStore(t)
	if !s.useTransactions {
		t.Skip("MONGO_TRANSACTIONS not enabled")
	}
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &domain.Follow{ID: "f1", AuthorID: "bob", ChannelID: "c1"}))

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Writer) error {
		if _, err := tx.Delete(ctx, domain.KindFollow, "f1"); err != nil {
			return err
		}
		return boom
	})
	require.Error(t, err)

	ok, err := store.Exists(ctx, s, domain.KindFollow, "f1")
	require.NoError(t, err)
	assert.True(t, ok)
}
