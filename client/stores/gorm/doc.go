//go:build !wasm
// +build !wasm

// Package gorm provides a GORM-backed client.Storage. It works with any
// database GORM supports; the wardwatch CLI uses it with SQLite so several
// machines can share one session database.
//
// # Database Schema
//
// The package auto-migrates a single table:
//   - client_sessions: one row per (server, key) pair
//
// # Usage
//
//	db, _ := gorm.Open(sqlite.Open("wardwatch.db"), &gorm.Config{})
//	gormstore.AutoMigrate(db)
//	session := client.NewSession(gormstore.NewStorage(db, "https://ward.example.com"))
package gorm
