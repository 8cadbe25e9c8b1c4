// Package memory is an in-process store backend. It honours the same
// uniqueness and transaction contract as the database backends.
package memory

import (
	"context"
	"iter"
	"sort"
	"sync"

	"channelfeed/backend/internal/domain"
	"channelfeed/backend/internal/store"
	apperrors "channelfeed/backend/pkg/errors"
)

// Store keeps every collection in maps guarded by one lock
type Store struct {
	mu sync.RWMutex
	t  *tables
}

var _ store.Store = (*Store)(nil)

// New creates an empty memory store
func New() *Store {
	return &Store{t: newTables()}
}

type tables struct {
	rows   map[domain.Kind]map[string]domain.Record
	unique map[domain.Kind]map[string]string // compound key -> id
}

func newTables() *tables {
	t := &tables{
		rows:   make(map[domain.Kind]map[string]domain.Record, len(domain.Kinds)),
		unique: make(map[domain.Kind]map[string]string, len(domain.Kinds)),
	}
	for _, k := range domain.Kinds {
		t.rows[k] = make(map[string]domain.Record)
		t.unique[k] = make(map[string]string)
	}
	return t
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, rows := range t.rows {
		for id, rec := range rows {
			c.rows[k][id] = rec
		}
	}
	for k, keys := range t.unique {
		for key, id := range keys {
			c.unique[k][key] = id
		}
	}
	return c
}

func (t *tables) get(kind domain.Kind, id string) (domain.Record, error) {
	rows, ok := t.rows[kind]
	if !ok {
		return nil, apperrors.NewStoreFailed("get", errUnknownKind(kind))
	}
	rec, ok := rows[id]
	if !ok {
		return nil, apperrors.NewNotFound(kind.Entity(), id)
	}
	return domain.Clone(rec), nil
}

func (t *tables) find(kind domain.Kind, filter store.Filter) ([]domain.Record, error) {
	if err := filter.Validate(kind); err != nil {
		return nil, apperrors.NewStoreFailed("find", err)
	}
	var out []domain.Record
	for _, rec := range t.rows[kind] {
		if filter.Matches(rec) {
			out = append(out, domain.Clone(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetID() < out[j].GetID() })
	return out, nil
}

func (t *tables) create(rec domain.Record) error {
	kind := rec.Kind()
	rows, ok := t.rows[kind]
	if !ok {
		return apperrors.NewStoreFailed("create", errUnknownKind(kind))
	}
	if _, exists := rows[rec.GetID()]; exists {
		return apperrors.NewDuplicate(kind.Entity(), rec.GetID(), "Record with this ID already exists.")
	}
	if key, ok := domain.UniqueKey(rec); ok {
		if _, taken := t.unique[kind][key]; taken {
			return store.DuplicateError(rec)
		}
		t.unique[kind][key] = rec.GetID()
	}
	rows[rec.GetID()] = domain.Clone(rec)
	return nil
}

func (t *tables) update(rec domain.Record) error {
	kind := rec.Kind()
	old, ok := t.rows[kind][rec.GetID()]
	if !ok {
		return apperrors.NewNotFound(kind.Entity(), rec.GetID())
	}
	oldKey, hasKey := domain.UniqueKey(old)
	newKey, _ := domain.UniqueKey(rec)
	if hasKey && oldKey != newKey {
		if _, taken := t.unique[kind][newKey]; taken {
			return store.DuplicateError(rec)
		}
		delete(t.unique[kind], oldKey)
		t.unique[kind][newKey] = rec.GetID()
	}
	t.rows[kind][rec.GetID()] = domain.Clone(rec)
	return nil
}

func (t *tables) delete(kind domain.Kind, id string) bool {
	rec, ok := t.rows[kind][id]
	if !ok {
		return false
	}
	if key, hasKey := domain.UniqueKey(rec); hasKey {
		delete(t.unique[kind], key)
	}
	delete(t.rows[kind], id)
	return true
}

func (t *tables) deleteWhere(kind domain.Kind, filter store.Filter) (int64, error) {
	matched, err := t.find(kind, filter)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, rec := range matched {
		if t.delete(kind, rec.GetID()) {
			n++
		}
	}
	return n, nil
}

// ============================================================================
// Store
// ============================================================================

func (s *Store) Get(ctx context.Context, kind domain.Kind, id string) (domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStoreFailed("get", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t.get(kind, id)
}

func (s *Store) Find(ctx context.Context, kind domain.Kind, filter store.Filter) iter.Seq2[domain.Record, error] {
	return func(yield func(domain.Record, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(nil, apperrors.NewStoreFailed("find", err))
			return
		}
		s.mu.RLock()
		matched, err := s.t.find(kind, filter)
		s.mu.RUnlock()
		yieldAll(matched, err, yield)
	}
}

func (s *Store) Create(ctx context.Context, rec domain.Record) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewStoreFailed("create", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.create(rec)
}

func (s *Store) Update(ctx context.Context, rec domain.Record) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewStoreFailed("update", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.update(rec)
}

func (s *Store) Delete(ctx context.Context, kind domain.Kind, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, apperrors.NewStoreFailed("delete", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.delete(kind, id), nil
}

func (s *Store) DeleteWhere(ctx context.Context, kind domain.Kind, filter store.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, apperrors.NewStoreFailed("delete where", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.deleteWhere(kind, filter)
}

// RunInTx runs fn on a private copy of the tables and publishes the copy
// only when fn succeeds. fn must use tx, not s: the write lock is held.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewStoreFailed("transaction", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txWriter{t: s.t.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperrors.NewStoreFailed("commit", err)
	}
	s.t = tx.t
	return nil
}

func (s *Store) EnsureSchema(context.Context) error { return nil }

func (s *Store) Close(context.Context) error { return nil }

// Len returns the number of live records of a kind.
func (s *Store) Len(kind domain.Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.t.rows[kind])
}

// ============================================================================
// Transaction view
// ============================================================================

type txWriter struct {
	t *tables
}

func (w *txWriter) Get(ctx context.Context, kind domain.Kind, id string) (domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStoreFailed("get", err)
	}
	return w.t.get(kind, id)
}

func (w *txWriter) Find(ctx context.Context, kind domain.Kind, filter store.Filter) iter.Seq2[domain.Record, error] {
	return func(yield func(domain.Record, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(nil, apperrors.NewStoreFailed("find", err))
			return
		}
		matched, err := w.t.find(kind, filter)
		yieldAll(matched, err, yield)
	}
}

func (w *txWriter) Create(ctx context.Context, rec domain.Record) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewStoreFailed("create", err)
	}
	return w.t.create(rec)
}

func (w *txWriter) Update(ctx context.Context, rec domain.Record) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewStoreFailed("update", err)
	}
	return w.t.update(rec)
}

func (w *txWriter) Delete(ctx context.Context, kind domain.Kind, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, apperrors.NewStoreFailed("delete", err)
	}
	return w.t.delete(kind, id), nil
}

func (w *txWriter) DeleteWhere(ctx context.Context, kind domain.Kind, filter store.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, apperrors.NewStoreFailed("delete where", err)
	}
	return w.t.deleteWhere(kind, filter)
}

func yieldAll(recs []domain.Record, err error, yield func(domain.Record, error) bool) {
	if err != nil {
		yield(nil, err)
		return
	}
	for _, rec := range recs {
		if !yield(rec, nil) {
			return
		}
	}
}

type errUnknownKind domain.Kind

func (e errUnknownKind) Error() string {
	return "unknown kind " + string(e)
}
