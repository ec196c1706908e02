package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/Veraticus/bates-must-flow/internal/box"
	"github.com/Veraticus/bates-must-flow/internal/config"
	"github.com/Veraticus/bates-must-flow/internal/engine"
	"github.com/Veraticus/bates-must-flow/internal/notify"
	"github.com/Veraticus/bates-must-flow/internal/routing"
	"github.com/Veraticus/bates-must-flow/internal/storage"
)

// backend is a document store that can also list folders, which is all the
// resolver needs.
type backend interface {
	engine.DocumentStore
	routing.FolderLister
}

func openStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := config.DatabasePath(viper.GetViper())
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func newBoxClient(ctx context.Context) (*box.Client, error) {
	cfg, err := config.LoadBoxConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return box.NewClient(ctx, cfg, slog.Default())
}

// newNotifier mails through Gmail when credentials are configured and
// otherwise logs each notice.
func newNotifier(ctx context.Context, directory notify.UserDirectory, logOnly bool) (*notify.Service, error) {
	cfg := config.LoadNotifyConfig(viper.GetViper())

	var sender notify.Sender
	switch {
	case logOnly || !cfg.HasCredentials():
		if !logOnly {
			slog.Warn("Gmail credentials not configured; failure notices will only be logged")
		}
		sender = notify.LogSender{Logger: slog.Default()}
	default:
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid notify config: %w", err)
		}
		gmail, err := notify.NewGmailSender(ctx, cfg)
		if err != nil {
			return nil, err
		}
		sender = gmail
	}
	return notify.NewService(sender, directory, cfg, slog.Default()), nil
}

// newCoordinator assembles the pipeline over be. recorder may be nil.
func newCoordinator(be backend, notifier engine.Notifier, recorder engine.RunRecorder) (*engine.Coordinator, error) {
	v := viper.GetViper()

	engineCfg, err := config.LoadEngineConfig(v)
	if err != nil {
		return nil, err
	}
	routingCfg, err := config.LoadRoutingConfig(v)
	if err != nil {
		return nil, err
	}
	resolver, err := routing.NewResolverWithConfig(be, routingCfg, slog.Default())
	if err != nil {
		return nil, err
	}

	return engine.NewWithConfig(engine.Collaborators{
		Store:    be,
		Resolver: resolver,
		Notifier: notifier,
		Recorder: recorder,
	}, engineCfg, slog.Default())
}
