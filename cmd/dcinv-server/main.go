package main

import (
	"flag"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"dcinv/internal/server"
	"dcinv/internal/shared"
	"dcinv/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to server config json (optional)")
	flag.Parse()

	cfg, err := shared.LoadServerConfig(*configPath)
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	if dir := filepath.Dir(cfg.DBPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			logger.Fatal().Err(err).Str("dir", dir).Msg("create db dir")
		}
	}

	db, err := store.OpenDB(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open db")
	}
	defer db.Close()

	if err := store.RunMigrations(db); err != nil {
		logger.Fatal().Err(err).Msg("migrations")
	}

	api := server.New(store.New(db), cfg.JWTSecret, logger)

	logger.Info().Str("addr", cfg.Addr).Str("db", cfg.DBPath).
		Bool("auth", cfg.JWTSecret != "").Msg("dcinv-server listening")

	if err := http.ListenAndServe(cfg.Addr, api.Routes()); err != nil {
		logger.Fatal().Err(err).Msg("serve")
	}
}
