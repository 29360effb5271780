package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/callaudit/callaudit/internal/archive"
	"github.com/callaudit/callaudit/internal/audit"
	"github.com/callaudit/callaudit/internal/config"
	"github.com/callaudit/callaudit/internal/llm"
	"github.com/callaudit/callaudit/internal/orchestration"
	"github.com/callaudit/callaudit/internal/store"
	"github.com/spf13/afero"
)

// app owns the long-lived collaborators. The entry point creates one and
// closes it; nothing else reaches for them.
type app struct {
	cfg         *config.Config
	docs        store.DocumentStore
	audits      store.AuditStore
	coordinator *orchestration.Coordinator
}

func newApp(ctx context.Context, cfg *config.Config, fs afero.Fs) (*app, error) {
	docs, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	provider, err := newProvider(cfg)
	if err != nil {
		_ = docs.Close(ctx)
		return nil, err
	}

	arch, err := newArchive(ctx, cfg, fs)
	if err != nil {
		_ = docs.Close(ctx)
		return nil, err
	}

	client := llm.NewClient(provider, &llm.ClientOptions{
		Temperature: cfg.Temperature(),
		Timeout:     cfg.ModelTimeout(),
	})

	audits := store.NewAuditStore(docs)
	coordinator := orchestration.NewCoordinator(audits, audit.NewAll(client),
		orchestration.WithArchive(arch),
		orchestration.WithTaskTimeout(cfg.AuditTimeout()),
	)

	slog.Debug("Application ready",
		"store", cfg.Store.Driver,
		"provider", provider.Name(),
		"model", cfg.Model.Name,
		"archive", cfg.Archive.Kind)

	return &app{
		cfg:         cfg,
		docs:        docs,
		audits:      audits,
		coordinator: coordinator,
	}, nil
}

// Close waits for running audits, then closes the store.
func (a *app) Close(ctx context.Context) error {
	return errors.Join(a.coordinator.Shutdown(ctx), a.docs.Close(ctx))
}

func openStore(ctx context.Context, cfg *config.Config) (store.DocumentStore, error) {
	switch cfg.Store.Driver {
	case config.StoreMongo:
		return store.NewMongoStore(ctx, cfg.Store.URI, cfg.Store.Database)
	case config.StoreSQLite:
		return store.NewSQLiteStore(ctx, cfg.Store.Path)
	case config.StoreMemory:
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func newProvider(cfg *config.Config) (llm.Provider, error) {
	switch cfg.Model.Provider {
	case config.ProviderOpenAI:
		return llm.NewOpenAIProvider(llm.OpenAIOptions{
			APIKey:  cfg.Model.APIKey,
			Model:   cfg.Model.Name,
			BaseURL: cfg.Model.BaseURL,
		})
	case config.ProviderCopilot:
		return llm.NewCopilotProvider(&llm.CopilotOptions{Model: cfg.Model.Name}), nil
	case config.ProviderStub:
		return llm.NewStubProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Model.Provider)
	}
}

func newArchive(ctx context.Context, cfg *config.Config, fs afero.Fs) (archive.Archive, error) {
	switch cfg.Archive.Kind {
	case config.ArchiveNone:
		return archive.Noop{}, nil
	case config.ArchiveDir:
		return archive.NewFSArchive(fs, cfg.Archive.Dir), nil
	case config.ArchiveAzure:
		return archive.NewBlobArchive(ctx, cfg.Archive.AccountURL, cfg.Archive.Container)
	default:
		return nil, fmt.Errorf("unknown archive kind %q", cfg.Archive.Kind)
	}
}
