package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/panyam/wardwatch/client"
	fsstore "github.com/panyam/wardwatch/client/stores/fs"
	"github.com/panyam/wardwatch/client/stores/gae"
	gormstore "github.com/panyam/wardwatch/client/stores/gorm"
	"github.com/panyam/wardwatch/internal/config"
)

func noop() {}

// openStorage returns the session storage for the configured backend, scoped
// to the configured server
func openStorage(ctx context.Context, cfg *config.Config) (client.Storage, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreSQLite:
		return openSQLite(cfg)
	case config.StoreDatastore:
		dsClient, err := gae.NewClient(ctx, cfg.Store.ProjectID, cfg.Store.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		storage := gae.NewStorage(dsClient, cfg.Store.Namespace, cfg.Server.BaseURL).WithContext(ctx)
		return storage, func() { dsClient.Close() }, nil
	default:
		store, err := fsstore.NewFSSessionStore(cfg.Store.Path, "wardwatch")
		if err != nil {
			return nil, nil, err
		}
		storage, err := store.Storage(cfg.Server.BaseURL)
		if err != nil {
			return nil, nil, err
		}
		return storage, noop, nil
	}
}

func openSQLite(cfg *config.Config) (client.Storage, func(), error) {
	path := cfg.Store.Path
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, nil, fmt.Errorf("could not determine config directory: %w", err)
		}
		path = filepath.Join(dir, "wardwatch", "sessions.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open session database: %w", err)
	}
	if err := gormstore.AutoMigrate(db); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate session database: %w", err)
	}

	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	return gormstore.NewStorage(db, cfg.Server.BaseURL), closeDB, nil
}
