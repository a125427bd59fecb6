package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"cyoa-editor/api"
	"cyoa-editor/auth"
	"cyoa-editor/compiler"
	"cyoa-editor/store"
)

// runServe avvia il backend. Senza DSN usa il repository in memoria.
func runServe(ctx context.Context, a *app, args []string) error {
	fs := newFlags("serve")
	migrateFirst := fs.Bool("migrate", true, "applica le migrazioni prima di partire")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, log := a.cfg, a.logger

	var repo store.Repository
	if cfg.DatabaseDSN == "" {
		log.Warn("⚠️  CYOA_DATABASE_DSN not set, using in-memory storage")
		repo = store.NewMemoryRepository()
	} else {
		if *migrateFirst {
			if err := migrateUp(cfg.DatabaseDSN, log); err != nil {
				return err
			}
		}
		gormRepo, err := store.OpenGorm(ctx, cfg.DatabaseDSN, log)
		if err != nil {
			return err
		}
		defer gormRepo.Close()
		repo = gormRepo
		log.Info("🗄️  Database connected")
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL)
	if err != nil {
		return err
	}

	srvCfg := api.ServerConfig{
		Addr:           cfg.Addr(),
		Repo:           repo,
		Tokens:         tokens,
		AllowedOrigins: cfg.AllowedOrigins(),
		Debug:          !cfg.IsProduction(),
		Logger:         log,
	}
	tw, err := compiler.NewTweegoWrapper(cfg.TweegoPath, cfg.OutputDir, log)
	switch {
	case err == nil:
		srvCfg.Compiler = tw
		if v, verr := tw.GetVersion(ctx); verr == nil {
			log.Info("✓ Tweego available", zap.String("version", v))
		}
	case errors.Is(err, compiler.ErrTweegoNotFound):
		log.Warn("⚠️  Tweego not found, compile endpoints disabled")
	default:
		return err
	}

	server, err := api.NewServer(srvCfg)
	if err != nil {
		return err
	}
	return server.Start(ctx)
}

// runMigrate applica (up) o annulla (down) le migrazioni
func runMigrate(_ context.Context, a *app, args []string) error {
	fs := newFlags("migrate")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.cfg.DatabaseDSN == "" {
		return errors.New("CYOA_DATABASE_DSN is required")
	}
	direction := fs.Arg(0)
	if direction == "" {
		direction = "up"
	}

	switch direction {
	case "up":
		if err := migrateUp(a.cfg.DatabaseDSN, a.logger); err != nil {
			return err
		}
	case "down":
		m, err := store.NewMigrator(a.cfg.DatabaseDSN, a.logger)
		if err != nil {
			return err
		}
		if err := m.Down(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown migration direction %q (use up or down)", direction)
	}
	fmt.Printf("✅ Migrations %s completed\n", direction)
	return nil
}

func migrateUp(dsn string, log *zap.Logger) error {
	m, err := store.NewMigrator(dsn, log)
	if err != nil {
		return err
	}
	return m.Up()
}
