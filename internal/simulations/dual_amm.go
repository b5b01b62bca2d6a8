package simulations

import (
	"context"
	"sync"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/mvault/internal/bank"
	"github.com/elys-network/mvault/internal/types"
	"github.com/elys-network/mvault/internal/vaulterrors"
)

// DualAmmBackend is a shared two-token liquidity position that issues shares pro rata to the
// contributed fraction of its holdings. Deposits are only accepted at the current holding ratio;
// the unused part of the limiting-side surplus stays with the depositor.
type DualAmmBackend struct {
	mu     sync.Mutex
	addr   types.Address
	ledger *bank.Ledger
	token0 string
	token1 string

	shares      map[types.Address]sdkmath.Int
	totalShares sdkmath.Int
	inRange     bool
	failure     error
	onDeposit   Hook
	rebalances  int
}

func NewDualAmmBackend(addr types.Address, ledger *bank.Ledger, token0, token1 string) *DualAmmBackend {
	return &DualAmmBackend{
		addr:        addr,
		ledger:      ledger,
		token0:      token0,
		token1:      token1,
		shares:      make(map[types.Address]sdkmath.Int),
		totalShares: sdkmath.ZeroInt(),
		inRange:     true,
	}
}

func (b *DualAmmBackend) Address() types.Address { return b.addr }
func (b *DualAmmBackend) Token0() string         { return b.token0 }
func (b *DualAmmBackend) Token1() string         { return b.token1 }

// SetInRange moves the position in or out of its operating range.
func (b *DualAmmBackend) SetInRange(inRange bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inRange = inRange
}

// SetFailure makes every state-changing call fail with err until cleared with nil.
func (b *DualAmmBackend) SetFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failure = err
}

func (b *DualAmmBackend) SetOnDeposit(h Hook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDeposit = h
}

// Accrue mints trading fees into the position, raising the value of every share.
func (b *DualAmmBackend) Accrue(amount0, amount1 sdkmath.Int) error {
	if err := b.ledger.Mint(b.addr, sdk.NewCoin(b.token0, amount0)); err != nil {
		return err
	}
	return b.ledger.Mint(b.addr, sdk.NewCoin(b.token1, amount1))
}

func (b *DualAmmBackend) InRange(context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inRange, nil
}

func (b *DualAmmBackend) GetTotalAmounts(context.Context) (sdkmath.Int, sdkmath.Int, error) {
	return b.ledger.Balance(b.addr, b.token0), b.ledger.Balance(b.addr, b.token1), nil
}

func (b *DualAmmBackend) BalanceOf(_ context.Context, account types.Address) (sdkmath.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balanceOf(account), nil
}

func (b *DualAmmBackend) TotalSupply(context.Context) (sdkmath.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalShares, nil
}

// Rebalances returns how many times the position was asked to rebalance itself.
func (b *DualAmmBackend) Rebalances() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rebalances
}

func (b *DualAmmBackend) Rebalance(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failure != nil {
		return b.failure
	}
	b.rebalances++
	return nil
}

// Deposit pulls the used amounts from `from` and credits shares to `to`.
func (b *DualAmmBackend) Deposit(
	ctx context.Context,
	from, to types.Address,
	amount0Desired, amount1Desired, amount0Min, amount1Min sdkmath.Int,
) (shares, used0, used1 sdkmath.Int, err error) {
	zero := sdkmath.ZeroInt()

	b.mu.Lock()
	hook := b.onDeposit
	b.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return zero, zero, zero, err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failure != nil {
		return zero, zero, zero, b.failure
	}
	if !b.inRange {
		return zero, zero, zero, vaulterrors.ErrBackendOutOfRange
	}

	total0 := b.ledger.Balance(b.addr, b.token0)
	total1 := b.ledger.Balance(b.addr, b.token1)

	switch {
	case b.totalShares.IsZero() || (total0.IsZero() && total1.IsZero()):
		used0, used1 = amount0Desired, amount1Desired
		shares = amount0Desired.Add(amount1Desired)
	case total1.IsZero():
		used0, used1 = amount0Desired, zero
		shares = amount0Desired.Mul(b.totalShares).Quo(total0)
	case total0.IsZero():
		used0, used1 = zero, amount1Desired
		shares = amount1Desired.Mul(b.totalShares).Quo(total1)
	case amount0Desired.Mul(total1).LTE(amount1Desired.Mul(total0)):
		// token0 limits; the token1 counterpart rounds up in the position's favour
		used0 = amount0Desired
		used1 = ceilDiv(amount0Desired.Mul(total1), total0)
		shares = amount0Desired.Mul(b.totalShares).Quo(total0)
	default:
		used1 = amount1Desired
		used0 = ceilDiv(amount1Desired.Mul(total0), total1)
		shares = amount1Desired.Mul(b.totalShares).Quo(total1)
	}

	if used0.LT(amount0Min) {
		return zero, zero, zero, vaulterrors.SlippageExceeded(amount0Min, used0)
	}
	if used1.LT(amount1Min) {
		return zero, zero, zero, vaulterrors.SlippageExceeded(amount1Min, used1)
	}
	if !shares.IsPositive() {
		return zero, zero, zero, errorsmod.Wrap(vaulterrors.ErrZeroAmount, "insufficient liquidity minted")
	}

	if err := b.ledger.Transfer(from, b.addr, sdk.NewCoin(b.token0, used0)); err != nil {
		return zero, zero, zero, err
	}
	if err := b.ledger.Transfer(from, b.addr, sdk.NewCoin(b.token1, used1)); err != nil {
		// return the first leg so the call has no partial effect
		_ = b.ledger.Transfer(b.addr, from, sdk.NewCoin(b.token0, used0))
		return zero, zero, zero, err
	}
	b.shares[to] = b.balanceOf(to).Add(shares)
	b.totalShares = b.totalShares.Add(shares)
	return shares, used0, used1, nil
}

// Withdraw burns owner's shares and pays the proportional holdings to `to`.
func (b *DualAmmBackend) Withdraw(
	_ context.Context,
	owner, to types.Address,
	shares, amount0Min, amount1Min sdkmath.Int,
) (sdkmath.Int, sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failure != nil {
		return zero, zero, b.failure
	}
	if !shares.IsPositive() {
		return zero, zero, vaulterrors.ErrZeroAmount
	}
	held := b.balanceOf(owner)
	if held.LT(shares) {
		return zero, zero, errorsmod.Wrapf(vaulterrors.ErrInsufficientBalance, "%s holds %s shares, requested %s", owner, held, shares)
	}

	total0 := b.ledger.Balance(b.addr, b.token0)
	total1 := b.ledger.Balance(b.addr, b.token1)
	amount0 := total0.Mul(shares).Quo(b.totalShares)
	amount1 := total1.Mul(shares).Quo(b.totalShares)
	if amount0.LT(amount0Min) {
		return zero, zero, vaulterrors.SlippageExceeded(amount0Min, amount0)
	}
	if amount1.LT(amount1Min) {
		return zero, zero, vaulterrors.SlippageExceeded(amount1Min, amount1)
	}

	b.shares[owner] = held.Sub(shares)
	b.totalShares = b.totalShares.Sub(shares)
	if err := b.ledger.Transfer(b.addr, to, sdk.NewCoin(b.token0, amount0)); err != nil {
		return zero, zero, err
	}
	if err := b.ledger.Transfer(b.addr, to, sdk.NewCoin(b.token1, amount1)); err != nil {
		return zero, zero, err
	}
	return amount0, amount1, nil
}

func (b *DualAmmBackend) balanceOf(account types.Address) sdkmath.Int {
	if s, ok := b.shares[account]; ok {
		return s
	}
	return sdkmath.ZeroInt()
}

func ceilDiv(num, den sdkmath.Int) sdkmath.Int {
	q := num.Quo(den)
	if !num.Mod(den).IsZero() {
		q = q.AddRaw(1)
	}
	return q
}
