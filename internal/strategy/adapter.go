package strategy

import (
	"context"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"

	"github.com/elys-network/mvault/internal/events"
	"github.com/elys-network/mvault/internal/reentrancy"
	"github.com/elys-network/mvault/internal/types"
	"github.com/elys-network/mvault/internal/vaulterrors"
)

// base carries the binding, lifecycle and settlement logic shared by every adapter.
type base struct {
	id     string
	kind   types.BackendKind
	addr   types.Address
	vault  types.Address
	admin  types.Address
	asset  string
	ledger TokenLedger
	sink   events.Sink
	log    zerolog.Logger

	mu            sync.Mutex
	active        bool
	principal     sdkmath.Int
	lastRebalance time.Time
}

func (b *base) ID() string              { return b.id }
func (b *base) Kind() types.BackendKind { return b.kind }
func (b *base) Address() types.Address  { return b.addr }
func (b *base) Vault() types.Address    { return b.vault }
func (b *base) Asset() string           { return b.asset }

func (b *base) IsActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

func (b *base) LastRebalance() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastRebalance
}

// Principal is the asset value deployed and not yet recalled.
func (b *base) Principal() sdkmath.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.principal
}

// enter rejects nested calls carrying this adapter's frame, and any call made while another
// operation holds the adapter, whatever context it carries.
func (b *base) enter(ctx context.Context, entry string) (context.Context, func(), error) {
	ctx, err := reentrancy.Enter(ctx, b, entry)
	if err != nil {
		b.log.Warn().Str("entry", entry).Msg("Rejected re-entrant adapter call")
		return ctx, nil, err
	}
	if !b.mu.TryLock() {
		b.log.Warn().Str("entry", entry).Msg("Rejected adapter call during another operation")
		return ctx, nil, errorsmod.Wrapf(vaulterrors.ErrReentrantCall, "%s: strategy %s is busy", entry, b.id)
	}
	return ctx, b.mu.Unlock, nil
}

func (b *base) authorize(caller types.Address) error {
	if caller.IsZero() {
		return vaulterrors.ErrZeroAddress
	}
	if caller != b.vault && caller != b.admin {
		return errorsmod.Wrapf(vaulterrors.ErrNotAuthorizedCaller, "%s may not administer strategy %s", caller, b.id)
	}
	return nil
}

func (b *base) Pause(ctx context.Context, caller types.Address) error {
	return b.setActive(ctx, caller, false)
}

func (b *base) Resume(ctx context.Context, caller types.Address) error {
	return b.setActive(ctx, caller, true)
}

func (b *base) setActive(ctx context.Context, caller types.Address, active bool) error {
	if err := b.authorize(caller); err != nil {
		return err
	}
	if reentrancy.Inside(ctx, b) || !b.mu.TryLock() {
		return errorsmod.Wrap(vaulterrors.ErrReentrantCall, "pause/resume")
	}
	defer b.mu.Unlock()
	b.active = active
	b.log.Info().Bool("active", active).Str("caller", caller.String()).Msg("Strategy activity changed")
	return nil
}

// pull moves amount of denom from the vault into the adapter account.
func (b *base) pull(denom string, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsZero() {
		return nil
	}
	return b.ledger.Transfer(b.vault, b.addr, sdk.NewCoin(denom, amount))
}

// forward sends the adapter's whole balance of denom to the vault and returns the amount sent.
func (b *base) forward(denom string) (sdkmath.Int, error) {
	held := b.ledger.Balance(b.addr, denom)
	if held.IsZero() {
		return held, nil
	}
	if err := b.ledger.Transfer(b.addr, b.vault, sdk.NewCoin(denom, held)); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return held, nil
}

// reducePrincipal scales principal by the fraction of backend shares that remain.
func (b *base) reducePrincipal(burned, before sdkmath.Int) {
	if before.IsZero() || burned.GTE(before) {
		b.principal = sdkmath.ZeroInt()
		return
	}
	b.principal = b.principal.Mul(before.Sub(burned)).Quo(before)
}

func (b *base) emit(eventType types.EventType, amounts map[string]sdkmath.Int, shares sdkmath.Int, msg string) {
	if b.sink == nil {
		return
	}
	e := events.New(eventType, b.id)
	e.Account = b.addr
	for denom, amt := range amounts {
		e.Amounts[denom] = amt
	}
	if !shares.IsNil() {
		e.Shares = shares
	}
	e.Message = msg
	b.sink.Emit(e)
}

// proportionalShares returns the backend shares to burn for value out of ourValue:
// ceil(ourShares * min(value, ourValue) / ourValue), never more than ourShares.
func proportionalShares(ourShares, value, ourValue sdkmath.Int) sdkmath.Int {
	if ourValue.IsZero() || ourShares.IsZero() {
		return sdkmath.ZeroInt()
	}
	if value.GTE(ourValue) {
		return ourShares
	}
	num := ourShares.Mul(value)
	shares := num.Quo(ourValue)
	if !num.Mod(ourValue).IsZero() {
		shares = shares.AddRaw(1)
	}
	if shares.GT(ourShares) {
		return ourShares
	}
	return shares
}
