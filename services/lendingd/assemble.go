package main

import (
	"fmt"
	"log/slog"

	"vstreet/config"
	"vstreet/core/events"
	"vstreet/core/state"
	nativecommon "vstreet/native/common"
	"vstreet/native/lending"
	"vstreet/native/token"
	"vstreet/native/vault"
	lendingdconfig "vstreet/services/lendingd/config"
	"vstreet/services/lendingd/tokenclient"
)

type settlement interface {
	nativecommon.TokenTransfer
	nativecommon.ValueSender
	nativecommon.ValueReceiver
}

type services struct {
	lending *lending.Engine
	vault   *vault.Engine
}

// assemble restores the persisted pool and vault, falling back to the
// genesis file on first start, and wires both engines to the settlement
// backend and the event sink.
func assemble(cfg lendingdconfig.Config, manager *state.Manager, emitter events.Emitter, logger *slog.Logger) (*services, error) {
	genesis, err := config.LoadGenesis(cfg.GenesisFile)
	if err != nil {
		return nil, err
	}
	poolAddr, err := genesis.Pool()
	if err != nil {
		return nil, fmt.Errorf("genesis PoolAddress: %w", err)
	}

	pool, ok, err := manager.LendingPool()
	if err != nil {
		return nil, fmt.Errorf("load lending pool: %w", err)
	}
	if !ok {
		params, err := genesis.LendingParams()
		if err != nil {
			return nil, err
		}
		pool = lending.NewPoolState(params)
		logger.Info("lending pool initialised from genesis", slog.String("pool", poolAddr.String()))
	}
	vaultState, ok, err := manager.Vault()
	if err != nil {
		return nil, fmt.Errorf("load vault: %w", err)
	}
	if !ok {
		if vaultState, err = genesis.VaultState(); err != nil {
			return nil, err
		}
		logger.Info("vault initialised from genesis")
	}

	backend, err := newSettlement(cfg.TokenService, genesis, logger)
	if err != nil {
		return nil, err
	}
	pauses := nativecommon.NewPauses(genesis.Pauses.Modules()...)

	lendingEngine := lending.NewEngine(poolAddr, pool)
	lendingEngine.SetTokenTransfer(backend)
	lendingEngine.SetValueSender(backend)
	lendingEngine.SetValueReceiver(backend)
	lendingEngine.SetStore(manager)
	lendingEngine.SetEmitter(emitter)
	lendingEngine.SetPauses(pauses)
	lendingEngine.SetLogger(logger.With(slog.String("module", lending.ModuleName)))

	vaultEngine := vault.NewEngine(poolAddr, vaultState)
	vaultEngine.SetTokenTransfer(backend)
	vaultEngine.SetStore(manager)
	vaultEngine.SetEmitter(emitter)
	vaultEngine.SetPauses(pauses)
	vaultEngine.SetLogger(logger.With(slog.String("module", vault.ModuleName)))

	return &services{lending: lendingEngine, vault: vaultEngine}, nil
}

// newSettlement dials the token service or, when none is configured, builds
// an in-process ledger funded from the genesis Ledger section.
func newSettlement(cfg lendingdconfig.TokenService, genesis *config.Genesis, logger *slog.Logger) (settlement, error) {
	if cfg.URL == "" {
		pool, err := genesis.Pool()
		if err != nil {
			return nil, err
		}
		ledger := token.NewLedger(pool)
		if err := genesis.SeedLedger(ledger); err != nil {
			return nil, fmt.Errorf("genesis Ledger: %w", err)
		}
		logger.Warn("no token service configured; settling against the in-process ledger",
			slog.Int("funded_accounts", len(genesis.Ledger.Accounts)))
		return ledger, nil
	}
	client, err := tokenclient.New(tokenclient.Config{
		URL:         cfg.URL,
		BearerToken: cfg.Bearer,
		Timeout:     cfg.Timeout,
		RetryMax:    cfg.RetryMax,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
