package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	ra "github.com/panyam/recipeauth"
	"github.com/panyam/recipeauth/identity"
	"github.com/panyam/recipeauth/internal/config"
	"github.com/panyam/recipeauth/oauth2"
	"github.com/panyam/recipeauth/stores/fs"
	"github.com/panyam/recipeauth/stores/gae"
	gormstore "github.com/panyam/recipeauth/stores/gorm"
	"github.com/panyam/recipeauth/stores/sqlite"
)

// app is everything a command needs, wired from configuration
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer

	local    ra.LocalStore
	profiles ra.ProfileStore
	client   *identity.LocalClient
	coord    *ra.Coordinator

	closers []func() error
}

func storagePath(cfg *config.Config) (string, error) {
	if cfg.Storage.Path != "" {
		return cfg.Storage.Path, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not determine config directory: %w", err)
	}
	return filepath.Join(dir, "recipeauth"), nil
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) (*app, error) {
	a := &app{cfg: cfg, logger: logger, out: &lockedWriter{w: out}}
	path, err := storagePath(cfg)
	if err != nil {
		return nil, err
	}

	if err := a.openLocal(ctx, path); err != nil {
		a.Close()
		return nil, err
	}
	accounts, tokens, err := a.openProfiles(ctx, path)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.client = &identity.LocalClient{
		Accounts:          accounts,
		Tokens:            tokens,
		Local:             a.local,
		EmailSender:       &identity.ConsoleEmailSender{Logger: logger},
		BaseURL:           cfg.BaseURL,
		SessionSecret:     []byte(cfg.Session.Secret),
		SessionIssuer:     cfg.Session.Issuer,
		SessionExpiry:     cfg.Session.Lifetime,
		MinPasswordLength: cfg.Signup.MinPasswordLength,
		Providers:         map[string]identity.FederatedProvider{},
		OpenURL: func(ctx context.Context, url string) error {
			_, err := fmt.Fprintf(a.out, "Open this URL in your browser to continue:\n\n  %s\n\n", url)
			return err
		},
		Logger: logger,
	}
	if cfg.Google.ClientID != "" {
		a.client.Providers[ra.ProviderGoogle] = oauth2.NewGoogleProvider(
			cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CallbackURL)
	}

	a.coord = &ra.Coordinator{
		Identity: a.client,
		Profiles: a.profiles,
		Local:    a.local,
		Notifier: ra.NotifierFunc(a.printNotification),
		SignupPolicy: &ra.SignupPolicy{
			AllowedDomains:    cfg.Signup.AllowedDomains,
			MinPasswordLength: cfg.Signup.MinPasswordLength,
		},
		Logger: logger,
	}
	a.coord.EnsureDefaults()
	a.closers = append(a.closers, a.coord.Close)
	return a, nil
}

func (a *app) openLocal(ctx context.Context, path string) error {
	switch a.cfg.Storage.LocalBackend {
	case config.BackendSQLite:
		store, err := sqlite.Open(ctx, filepath.Join(path, "local.db"))
		if err != nil {
			return err
		}
		a.local = store
		a.closers = append(a.closers, store.Close)
	default:
		store, err := fs.NewLocalStore(filepath.Join(path, "local.json"), "recipeauth")
		if err != nil {
			return err
		}
		a.local = store
	}
	return nil
}

func (a *app) openProfiles(ctx context.Context, path string) (identity.AccountStore, identity.TokenStore, error) {
	switch a.cfg.Storage.ProfileBackend {
	case config.BackendDatastore:
		client, err := gae.NewClient(ctx, a.cfg.Datastore.Project, a.cfg.Datastore.EmulatorHost)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, client.Close)
		ns := a.cfg.Datastore.Namespace
		a.profiles = gae.NewProfileStore(client, ns)
		return gae.NewAccountStore(client, ns), gae.NewTokenStore(client, ns), nil

	case config.BackendPostgres:
		db, err := gorm.Open(postgres.Open(a.cfg.Postgres.DSN), &gorm.Config{})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, sqlDB.Close)
		}
		if err := gormstore.AutoMigrate(db.WithContext(ctx)); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate: %w", err)
		}
		a.profiles = gormstore.NewProfileStore(db)
		return gormstore.NewAccountStore(db), gormstore.NewTokenStore(db), nil

	default:
		a.profiles = fs.NewProfileStore(path)
		return fs.NewAccountStore(path), fs.NewTokenStore(path), nil
	}
}

// start runs the coordinator and waits for the restored session to settle
func (a *app) start(ctx context.Context) (ra.Snapshot, error) {
	if err := a.coord.Start(ctx); err != nil {
		return ra.Snapshot{}, err
	}
	return a.coord.AwaitResolved(ctx)
}

// lockedWriter serializes output from commands and from coordinator
// notifications, which arrive on other goroutines
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func (a *app) printNotification(_ context.Context, n ra.Notification) {
	prefix := "*"
	if n.Error {
		prefix = "!"
	}
	fmt.Fprintf(a.out, "%s %s\n", prefix, n.Message)
}

// Close releases resources in reverse order of acquisition. The coordinator
// goes first so queued events drain before stores close.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "err", err)
		}
	}
	a.closers = nil
}
