// Package graph is the Neo4j store backend. Each record is a node labelled
// by its kind; compound keys are folded into a uniq property that carries a
// uniqueness constraint.
package graph

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"channelfeed/backend/internal/domain"
	"channelfeed/backend/internal/store"
	apperrors "channelfeed/backend/pkg/errors"
	"channelfeed/backend/pkg/logger"
)

// Repository handles all Neo4j database operations
type Repository struct {
	writer
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

var _ store.Store = (*Repository)(nil)

// Open creates a driver for uri and verifies connectivity
func Open(ctx context.Context, uri, user, password string) (*Repository, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify Neo4j connectivity: %w", err)
	}
	return NewRepository(driver), nil
}

// NewRepository creates a new graph repository
func NewRepository(driver neo4j.DriverWithContext) *Repository {
	r := &Repository{
		driver: driver,
		logger: logger.Named("graph"),
	}
	r.writer = writer{
		read:  r.session(neo4j.AccessModeRead),
		write: r.session(neo4j.AccessModeWrite),
	}
	return r
}

// Close closes the Neo4j driver connection
func (r *Repository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

// session returns a runner that executes each statement in its own managed
// transaction.
func (r *Repository) session(mode neo4j.AccessMode) runner {
	return func(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
		session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode})
		defer session.Close(ctx)

		work := func(tx neo4j.ManagedTransaction) (any, error) {
			return collect(ctx, tx, cypher, params)
		}
		var (
			out any
			err error
		)
		if mode == neo4j.AccessModeRead {
			out, err = session.ExecuteRead(ctx, work)
		} else {
			out, err = session.ExecuteWrite(ctx, work)
		}
		if err != nil {
			return nil, err
		}
		return out.([]*neo4j.Record), nil
	}
}

// RunInTx runs fn inside one write transaction. The driver may retry fn on
// transient failures, so fn must be safe to repeat.
func (r *Repository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Writer) error) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		run := func(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
			return collect(ctx, tx, cypher, params)
		}
		return nil, fn(ctx, writer{read: run, write: run})
	})
	return apperrors.Classify("transaction", err)
}

// EnsureSchema creates id and compound-key constraints plus one index per
// reference field.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	var statements []string
	for _, kind := range domain.Kinds {
		label := kind.Label()
		name := string(kind)
		statements = append(statements,
			fmt.Sprintf("CREATE CONSTRAINT %s_id IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE", name, label))
		if len(kind.UniqueFields()) > 0 {
			statements = append(statements,
				fmt.Sprintf("CREATE CONSTRAINT %s_uniq IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE", name, label, propUnique))
		}
		for _, f := range kind.Fields() {
			statements = append(statements,
				fmt.Sprintf("CREATE INDEX %s_%s IF NOT EXISTS FOR (n:%s) ON (n.%s)", name, f, label, f))
		}
	}

	for _, stmt := range statements {
		result, err := session.Run(ctx, stmt, nil)
		if err == nil {
			_, err = result.Consume(ctx)
		}
		if err != nil {
			return apperrors.NewStoreFailed("ensure schema", fmt.Errorf("%s: %w", stmt, err))
		}
	}
	r.logger.Info("Neo4j constraints ensured", zap.Int("statements", len(statements)))
	return nil
}

// ============================================================================
// Writer
// ============================================================================

type runner func(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error)

// writer issues the CRUD statements through a runner, either one managed
// transaction per call or a shared transaction inside RunInTx.
type writer struct {
	read  runner
	write runner
}

func (w writer) Get(ctx context.Context, kind domain.Kind, id string) (domain.Record, error) {
	query := fmt.Sprintf("MATCH (n:%s {id: $id}) RETURN n", kind.Label())
	records, err := w.read(ctx, query, map[string]any{"id": id})
	if err != nil {
		return nil, apperrors.NewStoreFailed("get "+string(kind), err)
	}
	if len(records) == 0 {
		return nil, apperrors.NewNotFound(kind.Entity(), id)
	}
	return recordFromNode(kind, records[0])
}

func (w writer) Find(ctx context.Context, kind domain.Kind, filter store.Filter) iter.Seq2[domain.Record, error] {
	if err := filter.Validate(kind); err != nil {
		return store.ErrorSeq(apperrors.NewStoreFailed("find", err))
	}
	query := fmt.Sprintf("MATCH (n:%s)%s RETURN n ORDER BY n.id", kind.Label(), where(filter))

	return func(yield func(domain.Record, error) bool) {
		records, err := w.read(ctx, query, params(filter))
		if err != nil {
			yield(nil, apperrors.NewStoreFailed("find "+string(kind), err))
			return
		}
		for _, row := range records {
			rec, err := recordFromNode(kind, row)
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

func (w writer) Create(ctx context.Context, rec domain.Record) error {
	query := fmt.Sprintf("CREATE (n:%s) SET n = $props", rec.Kind().Label())
	_, err := w.write(ctx, query, map[string]any{"props": toProps(rec)})
	if err != nil {
		if isConstraintErr(err) {
			return store.DuplicateError(rec)
		}
		return apperrors.NewStoreFailed("create "+string(rec.Kind()), err)
	}
	return nil
}

func (w writer) Update(ctx context.Context, rec domain.Record) error {
	query := fmt.Sprintf("MATCH (n:%s {id: $id}) SET n = $props RETURN count(n) AS matched", rec.Kind().Label())
	records, err := w.write(ctx, query, map[string]any{"id": rec.GetID(), "props": toProps(rec)})
	if err != nil {
		if isConstraintErr(err) {
			return store.DuplicateError(rec)
		}
		return apperrors.NewStoreFailed("update "+string(rec.Kind()), err)
	}
	if len(records) == 0 || getInt64FromRecord(records[0], "matched") == 0 {
		return apperrors.NewNotFound(rec.Kind().Entity(), rec.GetID())
	}
	return nil
}

func (w writer) Delete(ctx context.Context, kind domain.Kind, id string) (bool, error) {
	query := fmt.Sprintf("MATCH (n:%s {id: $id}) DETACH DELETE n RETURN count(*) AS removed", kind.Label())
	records, err := w.write(ctx, query, map[string]any{"id": id})
	if err != nil {
		return false, apperrors.NewStoreFailed("delete "+string(kind), err)
	}
	return len(records) > 0 && getInt64FromRecord(records[0], "removed") > 0, nil
}

func (w writer) DeleteWhere(ctx context.Context, kind domain.Kind, filter store.Filter) (int64, error) {
	if err := filter.Validate(kind); err != nil {
		return 0, apperrors.NewStoreFailed("delete where", err)
	}
	query := fmt.Sprintf("MATCH (n:%s)%s DETACH DELETE n RETURN count(*) AS removed", kind.Label(), where(filter))
	records, err := w.write(ctx, query, params(filter))
	if err != nil {
		return 0, apperrors.NewStoreFailed("delete where "+string(kind), err)
	}
	if len(records) == 0 {
		return 0, nil
	}
	return getInt64FromRecord(records[0], "removed"), nil
}

// ============================================================================
// Query building
// ============================================================================

func collect(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	result, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return result.Collect(ctx)
}

// where renders a WHERE clause for an already validated filter.
func where(filter store.Filter) string {
	if len(filter) == 0 {
		return ""
	}
	clauses := make([]string, 0, len(filter))
	for _, k := range filter.Keys() {
		clauses = append(clauses, fmt.Sprintf("n.%s = $%s", k, k))
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

func params(filter store.Filter) map[string]any {
	p := make(map[string]any, len(filter))
	for k, v := range filter {
		p[k] = v
	}
	return p
}

func isConstraintErr(err error) bool {
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		return neoErr.Code == "Neo.ClientError.Schema.ConstraintValidationFailed"
	}
	return strings.Contains(err.Error(), "ConstraintValidationFailed")
}
