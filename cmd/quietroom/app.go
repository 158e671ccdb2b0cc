package main

import (
	"context"
	"fmt"

	"github.com/PabloGalante/quiet-room/internal/adapters/llm"
	memstore "github.com/PabloGalante/quiet-room/internal/adapters/storage/memory"
	sqlitestore "github.com/PabloGalante/quiet-room/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/quiet-room/internal/app/conversation"
	"github.com/PabloGalante/quiet-room/internal/app/protocol"
	"github.com/PabloGalante/quiet-room/internal/app/session"
	"github.com/PabloGalante/quiet-room/internal/config"
	"github.com/PabloGalante/quiet-room/internal/domain"
	"github.com/PabloGalante/quiet-room/internal/observability"
)

// app bundles the wired service with whatever needs closing on exit.
type app struct {
	svc   *conversation.Service
	close func() error
}

func openCredentials(ctx context.Context, c *config.Config, vendor llm.Vendor) (domain.CredentialStore, func() error, error) {
	slot := llm.SlotName(vendor)
	switch c.CredentialBackend {
	case config.CredentialMemory:
		return memstore.NewCredentialStore(slot), func() error { return nil }, nil
	default:
		store, err := sqlitestore.Open(ctx, c.CredentialPath, slot)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
}

func buildApp(ctx context.Context, c *config.Config) (*app, error) {
	vendor, err := llm.ParseVendor(c.Vendor)
	if err != nil {
		return nil, err
	}

	creds, closeCreds, err := openCredentials(ctx, c, vendor)
	if err != nil {
		return nil, fmt.Errorf("opening credential store: %w", err)
	}

	transport, err := llm.New(ctx, llm.Options{
		Vendor:    vendor,
		Model:     c.Model,
		BaseURL:   c.BaseURL,
		Timeout:   c.RequestTimeout,
		MaxTokens: c.MaxTokens,
	}, creds)
	if err != nil {
		closeCreds()
		return nil, fmt.Errorf("initializing %s transport: %w", vendor, err)
	}

	observability.Logger().Info("room wired",
		"vendor", vendor,
		"model", c.Model,
		"credential_backend", c.CredentialBackend,
		"history_limit", c.HistoryLimit,
	)

	svc := conversation.NewService(
		session.New(protocol.InitialDocument),
		transport,
		creds,
		conversation.Options{Temperature: c.Temperature, HistoryLimit: c.HistoryLimit},
	)
	return &app{svc: svc, close: closeCreds}, nil
}
