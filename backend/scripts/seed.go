package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"

	"go.uber.org/zap"

	"channelfeed/backend/internal/bootstrap"
	"channelfeed/backend/internal/domain"
	"channelfeed/backend/internal/social"
	"channelfeed/backend/internal/store"
	"channelfeed/backend/pkg/config"
	"channelfeed/backend/pkg/logger"
)

type demoChannel struct {
	author      string
	title       string
	description string
	freets      []int // indexes into the author's freets
}

var (
	demoUsers  = []string{"alice", "bob", "carol"}
	demoFreets = map[string][]string{
		"alice": {
			"Shipped the new feed merge today.",
			"Graph databases make cascades pleasant.",
			"Coffee first, cascades second.",
		},
		"bob": {
			"Reading about bounded fan-out.",
			"Anyone else following the Go release notes?",
		},
		"carol": {
			"Trying out channels for curated reading lists.",
		},
	}
	demoChannels = []demoChannel{
		{author: "alice", title: "Engineering", description: "Notes from the build", freets: []int{0, 1}},
		{author: "alice", title: "Mornings", description: "", freets: []int{2}},
		{author: "bob", title: "Reading list", description: "Things worth reading", freets: []int{0, 1}},
	}
	demoFollows    = [][2]string{{"bob", "Engineering"}, {"carol", "Engineering"}, {"alice", "Reading list"}}
	demoSubscribes = [][2]string{{"bob", "alice"}, {"carol", "alice"}, {"carol", "bob"}, {"alice", "carol"}}
)

func main() {
	reset := flag.Bool("reset", false, "Delete every record before seeding")
	force := flag.Bool("force", false, "Seed even if demo users already exist")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting database seeding...", zap.String("store", cfg.StoreDriver))

	ctx := context.Background()
	st, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}
	defer st.Close(ctx)

	log.Info("Creating constraints and indexes...")
	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatal("Failed to ensure schema", zap.Error(err))
	}

	if *reset {
		if err := wipe(ctx, st, log); err != nil {
			log.Fatal("Failed to reset store", zap.Error(err))
		}
	}

	svc := social.NewService(st, social.Options{Logger: log})

	if _, err := svc.GetUserByUsername(ctx, demoUsers[0]); err == nil && !*force {
		log.Info("Demo users already exist, skipping (use -force or -reset)")
		os.Exit(0)
	}

	if err := seed(ctx, svc, log); err != nil {
		log.Fatal("Seeding failed", zap.Error(err))
	}
	log.Info("Seeding complete")
}

// wipe deletes every record, relations before the entities they reference.
func wipe(ctx context.Context, st store.Store, log *zap.Logger) error {
	kinds := slices.Clone(domain.Kinds)
	slices.Reverse(kinds)
	for _, kind := range kinds {
		n, err := st.DeleteWhere(ctx, kind, nil)
		if err != nil {
			return err
		}
		log.Info("Deleted records", zap.String("kind", string(kind)), zap.Int64("count", n))
	}
	return nil
}

func seed(ctx context.Context, svc *social.Service, log *zap.Logger) error {
	userIDs := make(map[string]string, len(demoUsers))
	for _, name := range demoUsers {
		u, err := svc.CreateUser(ctx, name)
		if err != nil {
			return fmt.Errorf("create user %s: %w", name, err)
		}
		userIDs[name] = u.ID
		log.Info("Created user", zap.String("username", name), zap.String("id", u.ID))
	}

	freetIDs := make(map[string][]string)
	for _, name := range demoUsers {
		for _, content := range demoFreets[name] {
			f, err := svc.CreateFreet(ctx, userIDs[name], content)
			if err != nil {
				return fmt.Errorf("create freet for %s: %w", name, err)
			}
			freetIDs[name] = append(freetIDs[name], f.ID)
		}
	}

	channelIDs := make(map[string]string, len(demoChannels))
	for _, dc := range demoChannels {
		ch, err := svc.CreateChannel(ctx, userIDs[dc.author], dc.title, dc.description)
		if err != nil {
			return fmt.Errorf("create channel %s: %w", dc.title, err)
		}
		channelIDs[dc.title] = ch.ID
		for _, i := range dc.freets {
			if _, err := svc.CreateConnection(ctx, userIDs[dc.author], ch.ID, freetIDs[dc.author][i]); err != nil {
				return fmt.Errorf("connect freet to %s: %w", dc.title, err)
			}
		}
		log.Info("Created channel", zap.String("title", dc.title), zap.Int("connections", len(dc.freets)))
	}

	for _, f := range demoFollows {
		if _, err := svc.CreateFollow(ctx, userIDs[f[0]], channelIDs[f[1]]); err != nil {
			return fmt.Errorf("%s follow %s: %w", f[0], f[1], err)
		}
	}
	for _, s := range demoSubscribes {
		if _, err := svc.CreateSubscribe(ctx, userIDs[s[0]], s[1]); err != nil {
			return fmt.Errorf("%s subscribe %s: %w", s[0], s[1], err)
		}
	}
	log.Info("Created relations",
		zap.Int("follows", len(demoFollows)),
		zap.Int("subscribes", len(demoSubscribes)))
	return nil
}
