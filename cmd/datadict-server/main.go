package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/datadict/datadict/pkg/dictionary"
	"github.com/datadict/datadict/pkg/server"
)

func main() {
	flags := pflag.NewFlagSet("datadict-server", pflag.ExitOnError)
	flags.String("listen-addr", "", "address to listen on (e.g. :8080)")
	flags.String("database-dialect", "", "relational database dialect (sqlite or postgres)")
	flags.String("database-dsn", "", "relational database DSN")
	flags.String("mongo-uri", "", "MongoDB connection URI (empty for in-memory documents)")
	flags.String("mongo-database", "", "MongoDB database name")
	flags.Bool("debug", false, "enable debug mode (verbose errors in responses)")
	_ = flags.Parse(os.Args[1:])

	v := viper.New()
	_ = v.BindPFlag("listen_addr", flags.Lookup("listen-addr"))
	_ = v.BindPFlag("database_dialect", flags.Lookup("database-dialect"))
	_ = v.BindPFlag("database_dsn", flags.Lookup("database-dsn"))
	_ = v.BindPFlag("mongo_uri", flags.Lookup("mongo-uri"))
	_ = v.BindPFlag("mongo_database", flags.Lookup("mongo-database"))
	_ = v.BindPFlag("debug", flags.Lookup("debug"))

	cfg, err := server.LoadConfig(v)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Error("failed to open database", "dialect", cfg.DatabaseDialect, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	documents, cleanup, err := openDocumentStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to document store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	srv := server.New(cfg, db, documents, logger)
	if err := srv.Init(); err != nil {
		logger.Error("server initialization failed", "error", err)
		os.Exit(1)
	}
	srv.MountRoutes()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}
	logger.Info("server stopped")
}

// openDatabase opens the relational version index. TranslateError is required
// so unique-index violations surface as gorm.ErrDuplicatedKey across dialects.
func openDatabase(cfg server.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	}
	switch cfg.DatabaseDialect {
	case "postgres":
		return gorm.Open(postgres.Open(cfg.DatabaseDSN), gormCfg)
	default:
		return gorm.Open(sqlite.Open(cfg.DatabaseDSN), gormCfg)
	}
}

// openDocumentStore connects to MongoDB when a URI is configured, and falls
// back to the in-memory store for development.
func openDocumentStore(ctx context.Context, cfg server.Config, logger *slog.Logger) (dictionary.DocumentStore, func(), error) {
	if cfg.MongoURI == "" {
		logger.Warn("no mongo URI configured, using in-memory document store")
		return dictionary.NewMemoryDocumentStore(), func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, errors.Join(err, errors.New("mongo ping failed"))
	}

	cleanup := func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}
	logger.Info("connected to mongo", "database", cfg.MongoDatabase)
	return dictionary.NewMongoDocumentStore(client, cfg.MongoDatabase), cleanup, nil
}
