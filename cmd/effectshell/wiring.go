package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Mindburn-Labs/effectshell/pkg/capabilities"
	"github.com/Mindburn-Labs/effectshell/pkg/conduit"
	"github.com/Mindburn-Labs/effectshell/pkg/config"
	"github.com/Mindburn-Labs/effectshell/pkg/keystore"
	"github.com/Mindburn-Labs/effectshell/pkg/kv"
	"github.com/Mindburn-Labs/effectshell/pkg/objectstore"
	"github.com/Mindburn-Labs/effectshell/pkg/shell"
)

// openCore is a variable to allow substituting a scripted core in tests
var openCore = openWasmCore

func openWasmCore(ctx context.Context, cfg config.CoreConfig) (conduit.Conduit, func(context.Context) error, error) {
	if cfg.Path == "" {
		return nil, nil, errors.New("no core module configured (core.path or --core)")
	}
	//nolint:gosec // G304: operator-supplied module path
	wasm, err := os.ReadFile(cfg.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("read core: %w", err)
	}
	core, err := conduit.NewWasmCore(ctx, wasm, conduit.WasmConfig{
		MemoryLimitBytes:  uint64(cfg.MemoryLimitMB) << 20,
		VersionConstraint: cfg.VersionConstraint,
	})
	if err != nil {
		return nil, nil, err
	}
	return core, core.Close, nil
}

// buildCapabilities opens every configured backend. The returned close
// function releases them all and is never nil.
func buildCapabilities(ctx context.Context, cfg *config.Config, logger *slog.Logger) (shell.Capabilities, func() error, error) {
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (shell.Capabilities, func() error, error) {
		_ = closeAll()
		return shell.Capabilities{}, func() error { return nil }, err
	}

	egress, err := capabilities.NewEgress(cfg.HTTP.Egress)
	if err != nil {
		return fail(err)
	}

	objects, closeObjects, err := objectstore.Open(ctx, cfg.Store)
	if err != nil {
		return fail(fmt.Errorf("open store: %w", err))
	}
	closers = append(closers, closeObjects)

	kvStore, closeKV, err := kv.Open(ctx, cfg.KV)
	if err != nil {
		return fail(fmt.Errorf("open kv: %w", err))
	}
	closers = append(closers, closeKV)

	caps := shell.Capabilities{
		HTTP: capabilities.NewHTTPClient(capabilities.HTTPConfig{
			Timeout:      cfg.HTTP.Timeout,
			MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
			UserAgent:    cfg.HTTP.UserAgent,
			Egress:       egress,
			Logger:       logger.With("component", "http"),
		}),
		SSE: capabilities.NewSSEClient(capabilities.SSEConfig{
			MaxLineBytes: cfg.SSE.MaxLineBytes,
			Egress:       egress,
			Logger:       logger.With("component", "sse"),
		}),
		Store:    capabilities.NewStoreAdapter(objects),
		KeyValue: capabilities.NewKeyValueAdapter(kvStore),
	}

	key, err := cfg.KeyStore.Key()
	if err != nil {
		return fail(err)
	}
	if key != nil {
		sealed, err := keystore.New(objects, key)
		if err != nil {
			return fail(err)
		}
		caps.KeyStore = capabilities.NewKeyStoreAdapter(sealed)
	} else {
		logger.WarnContext(ctx, "keystore disabled: no master key configured")
	}

	return caps, closeAll, nil
}
