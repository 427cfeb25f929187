package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/Udit004/alumni-networking-sub003/src/connections"
	"github.com/Udit004/alumni-networking-sub003/src/graph"
	"github.com/Udit004/alumni-networking-sub003/src/lib"
	"github.com/Udit004/alumni-networking-sub003/src/notifications"
	"github.com/Udit004/alumni-networking-sub003/src/recommend"
	"github.com/Udit004/alumni-networking-sub003/src/routes"
)

func main() {
	cfg, err := lib.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := lib.InitLogger(cfg.Env); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer lib.SyncLogger()
	log := lib.Log()

	ctx := context.Background()
	var closers []func(context.Context) error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](context.Background()); err != nil {
				log.Warn("Failed to close backend", zap.Error(err))
			}
		}
	}()

	var mongoDB *mongo.Database
	if cfg.UsesMongo() {
		client, db, err := lib.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			log.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		closers = append(closers, client.Disconnect)
		mongoDB = db
	}

	users, err := openGraphStore(ctx, cfg, mongoDB, &closers)
	if err != nil {
		log.Fatal("Failed to open profile store", zap.Error(err))
	}
	store, err := openNotificationStore(ctx, cfg, mongoDB)
	if err != nil {
		log.Fatal("Failed to open notification store", zap.Error(err))
	}

	notificationLog := notifications.NewLog(store)
	machine := connections.NewMachine(graph.NewAdapter(users), notificationLog, connections.Options{
		MutationAttempts: cfg.MutationAttempts,
		Backoff:          50 * time.Millisecond,
		CacheTTL:         cfg.ConnectionsCacheTTL,
	})
	recommender := recommend.NewRecommender(users,
		recommend.NewScorer(recommend.WithMutualWeight(cfg.MutualWeight)), cfg.SuggestionLimit)

	app := fiber.New(fiber.Config{
		AppName:               "alumni-network",
		DisableStartupMessage: cfg.IsProduction(),
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins(),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	routes.Setup(app, cfg.JWTSecret, routes.Services{
		Users:         users,
		Connections:   machine,
		Notifications: notificationLog,
		Recommender:   recommender,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("graph_backend", cfg.GraphBackend),
		zap.String("notification_backend", cfg.NotificationBackend))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited")
}

func openGraphStore(ctx context.Context, cfg *lib.Config, db *mongo.Database, closers *[]func(context.Context) error) (graph.Store, error) {
	switch cfg.GraphBackend {
	case "mongo":
		return graph.NewMongoStore(db), nil
	case "neo4j":
		driver, err := lib.ConnectNeo4j(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, driver.Close)
		store := graph.NewNeo4jStore(driver)
		if err := store.EnsureConstraints(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		lib.Log().Warn("Using in-memory profile store; data is lost on restart")
		return graph.NewMemoryStore(), nil
	}
}

func openNotificationStore(ctx context.Context, cfg *lib.Config, db *mongo.Database) (notifications.Store, error) {
	switch cfg.NotificationBackend {
	case "mongo":
		store := notifications.NewMongoStore(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			// ordered queries fall back to client-side sorting
			lib.Log().Warn("Failed to create notification indexes", zap.Error(err))
		}
		return store, nil
	case "sqlite":
		gdb, err := lib.ConnectSQLite(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return notifications.NewGormStore(gdb)
	default:
		lib.Log().Warn("Using in-memory notification store; data is lost on restart")
		return notifications.NewMemoryStore(), nil
	}
}
