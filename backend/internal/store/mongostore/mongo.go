// Package mongostore is the MongoDB backend. One collection holds each
// kind; compound unique indexes enforce relation uniqueness.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	b "go.mongodb.org/mongo-driver/bson"
	mdb "go.mongodb.org/mongo-driver/mongo"
	mdbopts "go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"channelfeed/backend/internal/domain"
	"channelfeed/backend/internal/store"
	apperrors "channelfeed/backend/pkg/errors"
	"channelfeed/backend/pkg/logger"
)

// Store holds the MongoDB connection
type Store struct {
	client          *mdb.Client
	db              *mdb.Database
	useTransactions bool
	logger          *zap.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects to uri and verifies the server answers. Transactions need a
// replica set; enable them only when the deployment has one.
func Open(ctx context.Context, uri, database string, useTransactions bool, log *zap.Logger) (*Store, error) {
	client, err := mdb.Connect(ctx, mdbopts.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to verify MongoDB connectivity: %w", err)
	}
	return New(client, database, useTransactions, log), nil
}

// New wraps an existing client
func New(client *mdb.Client, database string, useTransactions bool, log *zap.Logger) *Store {
	if log == nil {
		log = logger.Get()
	}
	log = log.Named("mongostore")
	if !useTransactions {
		log.Info("MongoDB transactions disabled; cascades rely on idempotent steps and the sweeper")
	}
	return &Store{
		client:          client,
		db:              client.Database(database),
		useTransactions: useTransactions,
		logger:          log,
	}
}

func (s *Store) coll(kind domain.Kind) *mdb.Collection {
	return s.db.Collection(string(kind))
}

// EnsureSchema creates the compound unique indexes and one lookup index per
// reference field.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, kind := range domain.Kinds {
		var models []mdb.IndexModel

		unique := kind.UniqueFields()
		if len(unique) > 0 {
			keys := b.D{}
			for _, f := range unique {
				keys = append(keys, b.E{Key: f, Value: 1})
			}
			models = append(models, mdb.IndexModel{
				Keys:    keys,
				Options: mdbopts.Index().SetUnique(true).SetName("uniq_" + strings.Join(unique, "_")),
			})
		}
		for _, f := range kind.Fields() {
			if len(unique) > 0 && unique[0] == f {
				// covered by the compound index prefix
				continue
			}
			models = append(models, mdb.IndexModel{Keys: b.D{{Key: f, Value: 1}}})
		}
		if len(models) == 0 {
			continue
		}
		if _, err := s.coll(kind).Indexes().CreateMany(ctx, models); err != nil {
			return apperrors.NewStoreFailed("create indexes on "+string(kind), err)
		}
	}
	s.logger.Info("MongoDB indexes ensured")
	return nil
}

func (s *Store) Get(ctx context.Context, kind domain.Kind, id string) (domain.Record, error) {
	rec, err := domain.New(kind)
	if err != nil {
		return nil, apperrors.NewStoreFailed("get", err)
	}
	err = s.coll(kind).FindOne(ctx, b.M{"_id": id}).Decode(rec)
	if errors.Is(err, mdb.ErrNoDocuments) {
		return nil, apperrors.NewNotFound(kind.Entity(), id)
	}
	if err != nil {
		return nil, apperrors.NewStoreFailed("get "+string(kind), err)
	}
	return rec, nil
}

// Find opens a fresh cursor on every range.
func (s *Store) Find(ctx context.Context, kind domain.Kind, filter store.Filter) iter.Seq2[domain.Record, error] {
	if err := filter.Validate(kind); err != nil {
		return store.ErrorSeq(apperrors.NewStoreFailed("find", err))
	}
	return func(yield func(domain.Record, error) bool) {
		opts := mdbopts.Find().SetSort(b.D{{Key: "_id", Value: 1}})
		cur, err := s.coll(kind).Find(ctx, toBson(filter), opts)
		if err != nil {
			yield(nil, apperrors.NewStoreFailed("find "+string(kind), err))
			return
		}
		defer cur.Close(ctx)

		for cur.Next(ctx) {
			rec, err := domain.New(kind)
			if err == nil {
				err = cur.Decode(rec)
			}
			if err != nil {
				yield(nil, apperrors.NewStoreFailed("decode "+string(kind), err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(nil, apperrors.NewStoreFailed("find "+string(kind), err))
		}
	}
}

func (s *Store) Create(ctx context.Context, rec domain.Record) error {
	if _, err := s.coll(rec.Kind()).InsertOne(ctx, rec); err != nil {
		if isDuplicateErr(err) {
			return store.DuplicateError(rec)
		}
		return apperrors.NewStoreFailed("insert "+string(rec.Kind()), err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, rec domain.Record) error {
	res, err := s.coll(rec.Kind()).ReplaceOne(ctx, b.M{"_id": rec.GetID()}, rec)
	if err != nil {
		if isDuplicateErr(err) {
			return store.DuplicateError(rec)
		}
		return apperrors.NewStoreFailed("replace "+string(rec.Kind()), err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NewNotFound(rec.Kind().Entity(), rec.GetID())
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, kind domain.Kind, id string) (bool, error) {
	res, err := s.coll(kind).DeleteOne(ctx, b.M{"_id": id})
	if err != nil {
		return false, apperrors.NewStoreFailed("delete "+string(kind), err)
	}
	return res.DeletedCount > 0, nil
}

func (s *Store) DeleteWhere(ctx context.Context, kind domain.Kind, filter store.Filter) (int64, error) {
	if err := filter.Validate(kind); err != nil {
		return 0, apperrors.NewStoreFailed("delete where", err)
	}
	res, err := s.coll(kind).DeleteMany(ctx, toBson(filter))
	if err != nil {
		return 0, apperrors.NewStoreFailed("delete many "+string(kind), err)
	}
	return res.DeletedCount, nil
}

// RunInTx runs fn inside a session transaction when transactions are
// enabled. Otherwise fn runs directly and each step stands on its own.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Writer) error) error {
	if !s.useTransactions {
		return fn(ctx, s)
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return apperrors.NewStoreFailed("start session", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mdb.SessionContext) (interface{}, error) {
		return nil, fn(sc, s)
	})
	return apperrors.Classify("transaction", err)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func toBson(filter store.Filter) b.M {
	m := b.M{}
	for k, v := range filter {
		m[k] = v
	}
	return m
}

func isDuplicateErr(err error) bool {
	if err == nil {
		return false
	}
	if mdb.IsDuplicateKeyError(err) {
		return true
	}
	return strings.Contains(err.Error(), "duplicate key error")
}
