//go:build !wasm
// +build !wasm

// Package gorm provides GORM-based implementations of the recipeauth stores.
// It supports any database GORM supports; the CLI uses PostgreSQL and the
// tests use SQLite.
//
// # Database Schema
//
// The package auto-migrates the following tables:
//   - profiles: per-account profile documents, item collections as JSON
//   - accounts: credential records used by identity.LocalClient
//   - auth_tokens: verification and password reset tokens
//
// # Usage
//
//	db, _ := gorm.Open(postgres.Open(dsn), &gorm.Config{})
//	_ = gormstore.AutoMigrate(db)
//	profiles := gormstore.NewProfileStore(db)
//	accounts := gormstore.NewAccountStore(db)
package gorm
