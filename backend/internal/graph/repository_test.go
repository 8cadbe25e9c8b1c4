package graph

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"channelfeed/backend/internal/domain"
	"channelfeed/backend/internal/store"
	apperrors "channelfeed/backend/pkg/errors"
)

// Integration tests require a running Neo4j instance.
// Set NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD to point elsewhere.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Skipf("Neo4j not available: %v", err)
	}
	repo := NewRepository(driver)
	require.NoError(t, repo.EnsureSchema(ctx))

	t.Cleanup(func() {
		session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)
		for _, kind := range domain.Kinds {
			_, _ = session.Run(ctx, "MATCH (n:"+kind.Label()+") WHERE n.id STARTS WITH 'test-' DETACH DELETE n", nil)
		}
		_ = repo.Close(ctx)
	})
	return repo
}

func TestRepository_CreateGetUpdate(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	freet := &domain.Freet{ID: "test-f1", AuthorID: "test-alice", Content: "hello", CreatedAt: now, ModifiedAt: now}
	require.NoError(t, repo.Create(ctx, freet))

	got, err := store.GetAs[*domain.Freet](ctx, repo, domain.KindFreet, "test-f1")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, "test-alice", got.AuthorID)
	assert.True(t, now.Equal(got.CreatedAt))

	got.Content = "edited"
	require.NoError(t, repo.Update(ctx, got))
	again, err := store.GetAs[*domain.Freet](ctx, repo, domain.KindFreet, "test-f1")
	require.NoError(t, err)
	assert.Equal(t, "edited", again.Content)

	err = repo.Update(ctx, &domain.Freet{ID: "test-missing"})
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
}

func TestRepository_GetNotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Get(context.Background(), domain.KindChannel, "test-non-existent")
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
}

func TestRepository_CompoundUniqueness(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Subscribe{ID: "test-s1", AuthorID: "test-bob", SubscribingToID: "test-alice"}))
	err := repo.Create(ctx, &domain.Subscribe{ID: "test-s2", AuthorID: "test-bob", SubscribingToID: "test-alice"})
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeDuplicate))

	subs, err := store.FindAll[*domain.Subscribe](ctx, repo, domain.KindSubscribe, store.Filter{domain.FieldAuthorID: "test-bob"})
	require.NoError(t, err)
	require.Len(t, subs, 1)

	removed, err := repo.Delete(ctx, domain.KindSubscribe, "test-s1")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.Delete(ctx, domain.KindSubscribe, "test-s1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRepository_RunInTxRollsBack(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.Follow{ID: "test-fo1", AuthorID: "test-bob", ChannelID: "test-c1"}))
	require.NoError(t, repo.Create(ctx, &domain.Follow{ID: "test-fo2", AuthorID: "test-carol", ChannelID: "test-c1"}))

	boom := errors.New("boom")
	err := repo.RunInTx(ctx, func(ctx context.Context, tx store.Writer) error {
		n, err := tx.DeleteWhere(ctx, domain.KindFollow, store.Filter{domain.FieldChannelID: "test-c1"})
		if err != nil {
			return err
		}
		assert.Equal(t, int64(2), n)
		return boom
	})
	require.Error(t, err)

	left, err := store.FindAll[*domain.Follow](ctx, repo, domain.KindFollow, store.Filter{domain.FieldChannelID: "test-c1"})
	require.NoError(t, err)
	assert.Len(t, left, 2)
}

func TestWhere(t *testing.T) {
	assert.Equal(t, "", where(nil))
	assert.Equal(t, " WHERE n.authorId = $authorId AND n.channelId = $channelId",
		where(store.Filter{domain.FieldChannelID: "c", domain.FieldAuthorID: "a"}))
}

func TestToProps(t *testing.T) {
	props := toProps(&domain.Connection{ID: "c1", AuthorID: "a", ChannelID: "ch", FreetID: "f"})
	assert.Equal(t, "c1", props[propID])
	assert.Equal(t, "ch", props[domain.FieldChannelID])
	assert.Equal(t, "ch\x1ff", props[propUnique])

	_, hasUniq := toProps(&domain.Freet{ID: "f1"})[propUnique]
	assert.False(t, hasUniq)
}

func createTestDriver() (neo4j.DriverWithContext, error) {
	uri := envOr("NEO4J_URI", "bolt://localhost:7687")
	user := envOr("NEO4J_USER", "neo4j")
	password := envOr("NEO4J_PASSWORD", "password")

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, err
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, err
	}

	return driver, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
