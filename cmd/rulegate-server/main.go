package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rulegate/rulegate/engine/validator"
	"github.com/rulegate/rulegate/internal/config"
	"github.com/rulegate/rulegate/internal/server"
	"github.com/rulegate/rulegate/internal/store"
)

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx := context.Background()
	registry := validator.NewRegistry()

	var st *store.Store
	if cfg.DatabaseDSN != "" {
		db, err := sql.Open("postgres", cfg.DatabaseDSN)
		if err != nil {
			logger.Fatal("open db", zap.Error(err))
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
		if err := db.Ping(); err != nil {
			logger.Fatal("ping db", zap.Error(err))
		}
		st = store.New(db)
		if err := st.InitSchema(ctx); err != nil {
			logger.Fatal("init schema", zap.Error(err))
		}
	}

	srv := server.New(logger, registry, st, cfg.ParallelCompile, cfg.Prefilter)

	if st != nil {
		if restored, err := srv.RestoreFromStore(ctx); err != nil {
			logger.Fatal("restore publications", zap.Error(err))
		} else if restored > 0 {
			logger.Info("validators restored", zap.Int("count", restored))
		}
	}
	if cfg.RulesPath != "" {
		loaded, skipped, err := srv.LoadRulesFromDir(ctx, cfg.RulesPath)
		if err != nil {
			logger.Fatal("load rules", zap.String("path", cfg.RulesPath), zap.Error(err))
		}
		logger.Info("rules loaded",
			zap.String("path", cfg.RulesPath),
			zap.Int("loaded", loaded),
			zap.Int("skipped", skipped))
	}

	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	logger.Info("listening", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		logger.Fatal("listen", zap.Error(err))
	}
}
