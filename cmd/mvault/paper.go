package main

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/mvault/internal/bank"
	"github.com/elys-network/mvault/internal/events"
	"github.com/elys-network/mvault/internal/simulations"
	"github.com/elys-network/mvault/internal/strategy"
	"github.com/elys-network/mvault/internal/types"
	"github.com/elys-network/mvault/internal/utils"
	"github.com/elys-network/mvault/internal/vault"
)

// Paper mode accounts and sizing.
const (
	paperCounterDenom = "upaper"
	paperFeeTier      = 3000

	paperMarketMaker types.Address = "paper-market-maker"
	paperDepositor   types.Address = "paper-depositor"
	paperVenue       types.Address = "paper-venue"
	paperAmm         types.Address = "paper-amm"
	paperLending     types.Address = "paper-lending"

	paperAmmWeightBps     = 4_000
	paperLendingWeightBps = 6_000

	// yield credited to each backend per cycle, relative to its holdings
	paperYieldBps = 2
)

var (
	paperMarketMakerFunds = sdkmath.NewInt(1_000_000_000_000)
	paperSeedDeposit      = sdkmath.NewInt(1_000_000_000)
)

type paperConfig struct {
	Asset  string
	Vault  types.Address
	Admin  types.Address
	Params types.VaultParameters
	Events events.Sink
}

// paperDeployment is a vault wired to in-process simulated backends.
type paperDeployment struct {
	ledger  *bank.Ledger
	vault   *vault.Vault
	venue   *simulations.ConstantProductVenue
	amm     *simulations.DualAmmBackend
	lending *simulations.LendingPool
	asset   string
}

func newPaperDeployment(ctx context.Context, cfg paperConfig) (*paperDeployment, error) {
	ledger := bank.NewLedger()
	for _, denom := range []string{cfg.Asset, paperCounterDenom} {
		if err := ledger.Mint(paperMarketMaker, sdk.NewCoin(denom, paperMarketMakerFunds)); err != nil {
			return nil, fmt.Errorf("fund market maker: %w", err)
		}
	}

	// counter token priced at 5 units of the asset
	venue := simulations.NewConstantProductVenue(paperVenue, ledger, paperCounterDenom, cfg.Asset, paperFeeTier)
	if err := venue.AddLiquidity(paperMarketMaker, sdkmath.NewInt(10_000_000_000), sdkmath.NewInt(50_000_000_000)); err != nil {
		return nil, fmt.Errorf("seed venue: %w", err)
	}
	amm := simulations.NewDualAmmBackend(paperAmm, ledger, paperCounterDenom, cfg.Asset)
	if _, _, _, err := amm.Deposit(ctx, paperMarketMaker, paperMarketMaker,
		sdkmath.NewInt(100_000_000), sdkmath.NewInt(500_000_000), sdkmath.ZeroInt(), sdkmath.ZeroInt()); err != nil {
		return nil, fmt.Errorf("seed dual-token backend: %w", err)
	}
	lending := simulations.NewLendingPool(paperLending, ledger, cfg.Asset)

	v, err := vault.New(vault.Config{
		Address:    cfg.Vault,
		Admin:      cfg.Admin,
		AssetDenom: cfg.Asset,
		Ledger:     ledger,
		Params:     cfg.Params,
		Events:     cfg.Events,
	})
	if err != nil {
		return nil, err
	}

	backends := []struct {
		id        string
		weightBps uint32
		backend   strategy.Backend
	}{
		{
			id:        "dual-amm",
			weightBps: paperAmmWeightBps,
			backend: strategy.Backend{
				Kind: types.BackendDualTokenAmm,
				Dual: &strategy.DualTokenBackendConfig{
					Backend: amm,
					Venue:   venue,
					Price:   simulations.NewVenuePriceReference(venue),
					FeeTier: paperFeeTier,
				},
			},
		},
		{
			id:        "lending",
			weightBps: paperLendingWeightBps,
			backend: strategy.Backend{
				Kind:    types.BackendSingleTokenLending,
				Lending: &strategy.LendingBackendConfig{Backend: lending},
			},
		},
	}
	for _, b := range backends {
		adapter, err := strategy.New(strategy.Config{
			ID:             b.id,
			Address:        types.Address("adapter-" + b.id),
			Vault:          cfg.Vault,
			Admin:          cfg.Admin,
			Asset:          cfg.Asset,
			MaxSlippageBps: cfg.Params.DefaultMaxSlippageBps,
			Ledger:         ledger,
			Events:         cfg.Events,
			Backend:        b.backend,
		})
		if err != nil {
			return nil, fmt.Errorf("build strategy %s: %w", b.id, err)
		}
		if err := v.AddStrategy(ctx, cfg.Admin, adapter, b.weightBps); err != nil {
			return nil, fmt.Errorf("add strategy %s: %w", b.id, err)
		}
	}

	if err := ledger.Mint(paperDepositor, sdk.NewCoin(cfg.Asset, paperSeedDeposit)); err != nil {
		return nil, fmt.Errorf("fund depositor: %w", err)
	}
	if _, err := v.Deposit(ctx, paperDepositor, paperDepositor, paperSeedDeposit); err != nil {
		return nil, fmt.Errorf("seed deposit: %w", err)
	}

	return &paperDeployment{
		ledger:  ledger,
		vault:   v,
		venue:   venue,
		amm:     amm,
		lending: lending,
		asset:   cfg.Asset,
	}, nil
}

// accrue credits one cycle of simulated yield to both backends.
func (d *paperDeployment) accrue(ctx context.Context) error {
	poolAssets, err := d.lending.TotalAssets(ctx)
	if err != nil {
		return err
	}
	if err := d.lending.Accrue(utils.ApplyBps(poolAssets, paperYieldBps)); err != nil {
		return fmt.Errorf("accrue lending yield: %w", err)
	}
	amount0, amount1, err := d.amm.GetTotalAmounts(ctx)
	if err != nil {
		return err
	}
	if err := d.amm.Accrue(utils.ApplyBps(amount0, paperYieldBps), utils.ApplyBps(amount1, paperYieldBps)); err != nil {
		return fmt.Errorf("accrue trading fees: %w", err)
	}
	return nil
}
