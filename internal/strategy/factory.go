package strategy

import (
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/mvault/internal/events"
	"github.com/elys-network/mvault/internal/logger"
	"github.com/elys-network/mvault/internal/types"
	"github.com/elys-network/mvault/internal/utils"
	"github.com/elys-network/mvault/internal/vaulterrors"
)

// DefaultTwapWindow is used when a dual-token backend is configured without a window.
const DefaultTwapWindow = 30 * time.Minute

// Backend is the tagged backend variant an adapter is built over. Exactly the payload matching
// Kind must be set.
type Backend struct {
	Kind    types.BackendKind
	Dual    *DualTokenBackendConfig
	Lending *LendingBackendConfig
}

type DualTokenBackendConfig struct {
	Backend    DualTokenBackend
	Venue      SwapVenue
	Price      PriceReference
	FeeTier    uint32
	TwapWindow time.Duration
}

type LendingBackendConfig struct {
	Backend LendingBackend
}

// Config binds an adapter to its vault account and backend.
type Config struct {
	ID             string
	Address        types.Address // the adapter's own account
	Vault          types.Address
	Admin          types.Address
	Asset          string
	MaxSlippageBps uint32
	Ledger         TokenLedger
	Events         events.Sink
	Backend        Backend
}

// New builds the adapter for cfg.Backend.Kind.
func New(cfg Config) (Adapter, error) {
	switch cfg.Backend.Kind {
	case types.BackendDualTokenAmm:
		a, err := NewDualToken(cfg)
		if err != nil {
			return nil, err
		}
		return a, nil
	case types.BackendSingleTokenLending:
		a, err := NewLending(cfg)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, errors.Join(vaulterrors.ErrStrategyNotInitialized, fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind))
	}
}

// NewDualToken builds a ratio-matching adapter. The asset must be one of the backend's two tokens.
func NewDualToken(cfg Config) (*DualTokenAdapter, error) {
	if cfg.Backend.Kind != types.BackendDualTokenAmm {
		return nil, fmt.Errorf("%w: backend kind %q is not %s", vaulterrors.ErrStrategyNotInitialized, cfg.Backend.Kind, types.BackendDualTokenAmm)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	dual := cfg.Backend.Dual
	tokenA, tokenB := dual.Backend.Token0(), dual.Backend.Token1()
	if cfg.Asset != tokenA && cfg.Asset != tokenB {
		return nil, fmt.Errorf("%w: asset %s is neither %s nor %s", vaulterrors.ErrAssetMismatch, cfg.Asset, tokenA, tokenB)
	}
	window := dual.TwapWindow
	if window == 0 {
		window = DefaultTwapWindow
	}
	a := &DualTokenAdapter{
		backend:        dual.Backend,
		venue:          dual.Venue,
		price:          dual.Price,
		tokenA:         tokenA,
		tokenB:         tokenB,
		feeTier:        dual.FeeTier,
		twapWindow:     window,
		maxSlippageBps: cfg.MaxSlippageBps,
	}
	a.bind(cfg)
	return a, nil
}

// NewLending builds a money-market adapter.
func NewLending(cfg Config) (*LendingAdapter, error) {
	if cfg.Backend.Kind != types.BackendSingleTokenLending {
		return nil, fmt.Errorf("%w: backend kind %q is not %s", vaulterrors.ErrStrategyNotInitialized, cfg.Backend.Kind, types.BackendSingleTokenLending)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	a := &LendingAdapter{backend: cfg.Backend.Lending.Backend}
	a.bind(cfg)
	return a, nil
}

func (b *base) bind(cfg Config) {
	b.id = cfg.ID
	b.kind = cfg.Backend.Kind
	b.addr = cfg.Address
	b.vault = cfg.Vault
	b.admin = cfg.Admin
	b.asset = cfg.Asset
	b.ledger = cfg.Ledger
	b.sink = cfg.Events
	if b.sink == nil {
		b.sink = events.Nop{}
	}
	b.active = true
	b.principal = sdkmath.ZeroInt()
	b.log = logger.GetForComponent("strategy_adapter").With().
		Str("strategy", cfg.ID).
		Str("kind", string(cfg.Backend.Kind)).
		Logger()
}

func validateConfig(cfg Config) error {
	var errs []error
	if cfg.ID == "" {
		errs = append(errs, errors.New("strategy id is empty"))
	}
	if cfg.Address.IsZero() || cfg.Vault.IsZero() {
		errs = append(errs, vaulterrors.ErrZeroAddress)
	}
	if cfg.Address == cfg.Vault && !cfg.Address.IsZero() {
		errs = append(errs, errors.New("adapter account must differ from the vault account"))
	}
	if cfg.Asset == "" {
		errs = append(errs, errors.New("asset denom is empty"))
	}
	if cfg.Ledger == nil {
		errs = append(errs, errors.New("token ledger is nil"))
	}
	if cfg.MaxSlippageBps >= utils.BpsDenominator {
		errs = append(errs, fmt.Errorf("%w: max slippage %d bps", utils.ErrInvalidBps, cfg.MaxSlippageBps))
	}

	switch cfg.Backend.Kind {
	case types.BackendDualTokenAmm:
		d := cfg.Backend.Dual
		switch {
		case d == nil || cfg.Backend.Lending != nil:
			errs = append(errs, errors.New("dual-token backend needs exactly the dual payload"))
		case d.Backend == nil || d.Venue == nil || d.Price == nil:
			errs = append(errs, errors.New("dual-token backend needs backend, venue and price reference"))
		case int64(d.FeeTier) >= feeTierDenominator:
			errs = append(errs, fmt.Errorf("fee tier %d out of range", d.FeeTier))
		}
	case types.BackendSingleTokenLending:
		l := cfg.Backend.Lending
		switch {
		case l == nil || cfg.Backend.Dual != nil:
			errs = append(errs, errors.New("lending backend needs exactly the lending payload"))
		case l.Backend == nil:
			errs = append(errs, errors.New("lending backend is nil"))
		case l.Backend.Denom() != cfg.Asset:
			errs = append(errs, fmt.Errorf("%w: lending denom %s, asset %s", vaulterrors.ErrAssetMismatch, l.Backend.Denom(), cfg.Asset))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind))
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{vaulterrors.ErrStrategyNotInitialized}, errs...)...)
	}
	return nil
}
