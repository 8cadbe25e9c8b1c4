// Package store defines the typed CRUD contract every persistence backend
// implements. Backends hold no business logic and never cascade on read.
package store

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"strings"

	"channelfeed/backend/internal/domain"
	apperrors "channelfeed/backend/pkg/errors"
)

// Filter selects records whose fields equal the given values. An empty
// filter selects every record of a kind.
type Filter map[string]string

// Reader is the read half of the store
type Reader interface {
	// Get returns the record or an *errors.ErrNotFound.
	Get(ctx context.Context, kind domain.Kind, id string) (domain.Record, error)
	// Find returns a lazy sequence. Each range over it re-runs the scan.
	Find(ctx context.Context, kind domain.Kind, filter Filter) iter.Seq2[domain.Record, error]
}

// Writer mutates the store. Implementations enforce compound-key uniqueness
// atomically and report collisions as *errors.ErrDuplicate.
type Writer interface {
	Reader
	Create(ctx context.Context, rec domain.Record) error
	Update(ctx context.Context, rec domain.Record) error
	// Delete reports whether a record was removed. Deleting an absent id is not an error.
	Delete(ctx context.Context, kind domain.Kind, id string) (bool, error)
	DeleteWhere(ctx context.Context, kind domain.Kind, filter Filter) (int64, error)
}

// Store is a complete backend
type Store interface {
	Writer
	// RunInTx runs fn against a transactional writer. Backends that cannot
	// provide atomicity run fn directly; callers keep every step idempotent.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Writer) error) error
	// EnsureSchema creates the unique constraints and lookup indexes.
	EnsureSchema(ctx context.Context) error
	Close(ctx context.Context) error
}

// Validate rejects filters naming fields the kind does not have.
func (f Filter) Validate(kind domain.Kind) error {
	for name := range f {
		if !kind.HasField(name) {
			return fmt.Errorf("kind %s has no filterable field %q", kind, name)
		}
	}
	return nil
}

// Matches reports whether rec satisfies every equality in the filter.
func (f Filter) Matches(rec domain.Record) bool {
	for name, want := range f {
		got, ok := rec.Field(name)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Keys returns the filter's field names in a stable order.
func (f Filter) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f Filter) String() string {
	parts := make([]string, 0, len(f))
	for _, k := range f.Keys() {
		parts = append(parts, k+"="+f[k])
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// ============================================================================
// Typed helpers
// ============================================================================

// GetAs fetches a record and asserts its concrete type.
func GetAs[T domain.Record](ctx context.Context, r Reader, kind domain.Kind, id string) (T, error) {
	var zero T
	rec, err := r.Get(ctx, kind, id)
	if err != nil {
		return zero, err
	}
	typed, ok := rec.(T)
	if !ok {
		return zero, apperrors.NewStoreFailed("get "+string(kind), fmt.Errorf("unexpected record type %T", rec))
	}
	return typed, nil
}

// Collect drains a Find sequence into a typed slice.
func Collect[T domain.Record](seq iter.Seq2[domain.Record, error]) ([]T, error) {
	out := []T{}
	for rec, err := range seq {
		if err != nil {
			return nil, err
		}
		typed, ok := rec.(T)
		if !ok {
			return nil, apperrors.NewStoreFailed("collect", fmt.Errorf("unexpected record type %T", rec))
		}
		out = append(out, typed)
	}
	return out, nil
}

// FindAll is Collect over r.Find.
func FindAll[T domain.Record](ctx context.Context, r Reader, kind domain.Kind, filter Filter) ([]T, error) {
	return Collect[T](r.Find(ctx, kind, filter))
}

// First returns the first record matching filter, or an *errors.ErrNotFound
// naming notFoundID when nothing matches.
func First[T domain.Record](ctx context.Context, r Reader, kind domain.Kind, filter Filter, notFoundID string) (T, error) {
	var zero T
	for rec, err := range r.Find(ctx, kind, filter) {
		if err != nil {
			return zero, err
		}
		typed, ok := rec.(T)
		if !ok {
			return zero, apperrors.NewStoreFailed("first", fmt.Errorf("unexpected record type %T", rec))
		}
		return typed, nil
	}
	return zero, apperrors.NewNotFound(kind.Entity(), notFoundID)
}

// Exists reports whether a record is live. Store failures are returned as errors.
func Exists(ctx context.Context, r Reader, kind domain.Kind, id string) (bool, error) {
	_, err := r.Get(ctx, kind, id)
	if err == nil {
		return true, nil
	}
	if apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound) {
		return false, nil
	}
	return false, err
}

// DuplicateError builds the error a backend returns for a compound-key collision.
func DuplicateError(rec domain.Record) error {
	key, _ := domain.UniqueKey(rec)
	return apperrors.NewDuplicate(rec.Kind().Entity(), key, duplicateMessage(rec.Kind()))
}

func duplicateMessage(kind domain.Kind) string {
	switch kind {
	case domain.KindConnection:
		return "Already connected freet to this channel."
	case domain.KindFollow:
		return "Already following this channel."
	case domain.KindSubscribe:
		return "Already subscribing to this user."
	case domain.KindUser:
		return "An account with this username already exists."
	}
	return "Record already exists."
}

// ErrorSeq yields a single error, for backends that fail before scanning.
func ErrorSeq(err error) iter.Seq2[domain.Record, error] {
	return func(yield func(domain.Record, error) bool) {
		yield(nil, err)
	}
}
