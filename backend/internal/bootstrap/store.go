// Package bootstrap opens the configured persistence backend for the
// server and the seed script.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"channelfeed/backend/internal/graph"
	"channelfeed/backend/internal/store"
	"channelfeed/backend/internal/store/memory"
	"channelfeed/backend/internal/store/mongostore"
	"channelfeed/backend/pkg/config"
)

// DialTimeout bounds connecting to a database backend
const DialTimeout = 10 * time.Second

// OpenStore selects the backend named by cfg.StoreDriver and verifies it is reachable.
func OpenStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	dialCtx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()

	switch cfg.StoreDriver {
	case config.DriverMongo:
		s, err := mongostore.Open(dialCtx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoUseTransactions, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverNeo4j:
		r, err := graph.Open(dialCtx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			return nil, err
		}
		return r, nil
	case config.DriverMemory:
		log.Warn("Using in-memory store; data is lost on restart")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
