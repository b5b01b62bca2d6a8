// Package vault implements the vault ledger: share accounting over a single deposit asset and the
// orchestration of the strategies the pooled capital is deployed to.
package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elys-network/mvault/internal/events"
	"github.com/elys-network/mvault/internal/logger"
	"github.com/elys-network/mvault/internal/reentrancy"
	"github.com/elys-network/mvault/internal/types"
	"github.com/elys-network/mvault/internal/utils"
	"github.com/elys-network/mvault/internal/vaulterrors"
)

// Config holds the configuration for creating a new Vault instance
type Config struct {
	Address    types.Address
	Admin      types.Address
	AssetDenom string
	Ledger     TokenLedger
	Params     types.VaultParameters
	Events     events.Sink
}

type strategyEntry struct {
	strategy  Strategy
	weightBps uint32
}

// configuration is replaced as a whole on every administrative change and never mutated in place,
// so an operation that loaded it sees one consistent strategy table.
type configuration struct {
	params     types.VaultParameters
	strategies []strategyEntry
}

func (c *configuration) find(id string) (int, bool) {
	for i, e := range c.strategies {
		if e.strategy.ID() == id {
			return i, true
		}
	}
	return -1, false
}

func (c *configuration) clone() *configuration {
	out := &configuration{params: c.params, strategies: make([]strategyEntry, len(c.strategies))}
	copy(out.strategies, c.strategies)
	return out
}

// holdings is one valuation pass: idle plus each strategy's stake, aligned with configuration.strategies.
type holdings struct {
	idle       sdkmath.Int
	strategies []sdkmath.Int
	total      sdkmath.Int
}

func (h holdings) deployed() sdkmath.Int {
	return h.total.Sub(h.idle)
}

// Vault is the ledger. Every public operation runs under one lock so operations apply in a single
// global order; nested calls from strategies or collaborators carrying the vault's frame are rejected.
type Vault struct {
	addr   types.Address
	admin  types.Address
	asset  string
	ledger TokenLedger
	sink   events.Sink
	log    zerolog.Logger

	opMu   sync.Mutex // held for a whole operation, only ever tried
	mu     sync.Mutex // shared by operations and views
	cfg    atomic.Pointer[configuration]
	paused atomic.Bool

	sharesMu    sync.RWMutex
	shares      map[types.Address]sdkmath.Int
	totalShares sdkmath.Int
}

// New creates a vault with no strategies.
func New(cfg Config) (*Vault, error) {
	if err := validateVaultConfig(cfg); err != nil {
		return nil, fmt.Errorf("vault configuration validation failed: %w", err)
	}
	v := &Vault{
		addr:        cfg.Address,
		admin:       cfg.Admin,
		asset:       cfg.AssetDenom,
		ledger:      cfg.Ledger,
		sink:        cfg.Events,
		log:         logger.GetForComponent("vault_ledger"),
		shares:      make(map[types.Address]sdkmath.Int),
		totalShares: sdkmath.ZeroInt(),
	}
	if v.sink == nil {
		v.sink = events.Nop{}
	}
	v.cfg.Store(&configuration{params: cfg.Params})

	v.log.Info().
		Str("address", v.addr.String()).
		Str("asset", v.asset).
		Str("idleReserveTarget", cfg.Params.IdleReserveTarget.String()).
		Str("depositCap", cfg.Params.DepositCap.String()).
		Msg("Vault created")
	return v, nil
}

func validateVaultConfig(cfg Config) error {
	if cfg.Address.IsZero() || cfg.Admin.IsZero() {
		return errorsmod.Wrap(vaulterrors.ErrZeroAddress, "vault and admin addresses are required")
	}
	if cfg.AssetDenom == "" {
		return errors.New("asset denom cannot be empty")
	}
	if cfg.Ledger == nil {
		return errors.New("token ledger cannot be nil")
	}
	return ValidateParameters(cfg.Params)
}

// ValidateParameters checks a parameter set before it is installed.
func ValidateParameters(p types.VaultParameters) error {
	var errs []error
	if p.IdleReserveTarget.IsNil() || p.IdleReserveTarget.IsNegative() {
		errs = append(errs, errors.New("idle reserve target must be non-negative"))
	}
	if p.DepositCap.IsNil() || p.DepositCap.IsNegative() {
		errs = append(errs, errors.New("deposit cap must be non-negative"))
	}
	if p.MinActionAmount.IsNil() || p.MinActionAmount.IsNegative() {
		errs = append(errs, errors.New("minimum action amount must be non-negative"))
	}
	if p.RebalanceThresholdBps > utils.BpsDenominator {
		errs = append(errs, fmt.Errorf("rebalance threshold %d bps exceeds 100%%", p.RebalanceThresholdBps))
	}
	if p.MaxRebalanceBpsPerCycle == 0 || p.MaxRebalanceBpsPerCycle > utils.BpsDenominator {
		errs = append(errs, fmt.Errorf("max rebalance per cycle %d bps must be in (0, 10000]", p.MaxRebalanceBpsPerCycle))
	}
	if p.DefaultMaxSlippageBps >= utils.BpsDenominator {
		errs = append(errs, fmt.Errorf("default max slippage %d bps must be below 100%%", p.DefaultMaxSlippageBps))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{vaulterrors.ErrInvalidParameters}, errs...)...)
	}
	return nil
}

// --- Guards ---

// enter marks ctx with the vault's frame and takes the operation locks. Operations never queue: a
// call arriving while another operation runs is rejected, so a callback that dropped the frame
// fails instead of deadlocking. Views only wait on mu.
func (v *Vault) enter(ctx context.Context, entry string) (context.Context, func(), zerolog.Logger, error) {
	ctx, err := reentrancy.Enter(ctx, v, entry)
	if err != nil {
		v.log.Warn().Str("entry", entry).Msg("Rejected re-entrant vault call")
		return ctx, nil, v.log, err
	}
	if !v.opMu.TryLock() {
		v.log.Warn().Str("entry", entry).Msg("Rejected vault call during another operation")
		return ctx, nil, v.log, errorsmod.Wrapf(vaulterrors.ErrReentrantCall, "%s: vault operation in progress", entry)
	}
	v.mu.Lock()
	opLog := v.log.With().Str("op", entry).Str("op_id", uuid.New().String()).Logger()
	return ctx, func() {
		v.mu.Unlock()
		v.opMu.Unlock()
	}, opLog, nil
}

// view takes the state lock for a read unless ctx is already inside a vault operation.
func (v *Vault) view(ctx context.Context) func() {
	if reentrancy.Inside(ctx, v) {
		return func() {}
	}
	v.mu.Lock()
	return v.mu.Unlock
}

func (v *Vault) requireAdmin(caller types.Address) error {
	if caller.IsZero() {
		return vaulterrors.ErrZeroAddress
	}
	if caller != v.admin {
		return errorsmod.Wrapf(vaulterrors.ErrNotAuthorizedCaller, "%s is not the vault administrator", caller)
	}
	return nil
}

// --- Accounting ---

func (v *Vault) idle() sdkmath.Int {
	return v.ledger.Balance(v.addr, v.asset)
}

// valuate reads idle and every bound strategy's stake. A strategy that cannot be valued fails the
// whole pass; the returned holdings then count it as zero, a floor only withdrawals paid from idle
// may price against.
func (v *Vault) valuate(ctx context.Context, cfg *configuration) (holdings, error) {
	h := holdings{idle: v.idle(), strategies: make([]sdkmath.Int, len(cfg.strategies))}
	h.total = h.idle
	var errs []error
	for i, e := range cfg.strategies {
		h.strategies[i] = sdkmath.ZeroInt()
		assets, err := e.strategy.GetTotalAssets(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("value strategy %s: %w", e.strategy.ID(), err))
			continue
		}
		h.strategies[i] = assets
		h.total = h.total.Add(assets)
	}
	return h, errors.Join(errs...)
}

func (v *Vault) supply() sdkmath.Int {
	v.sharesMu.RLock()
	defer v.sharesMu.RUnlock()
	return v.totalShares
}

func (v *Vault) balanceOf(addr types.Address) sdkmath.Int {
	v.sharesMu.RLock()
	defer v.sharesMu.RUnlock()
	if s, ok := v.shares[addr]; ok {
		return s
	}
	return sdkmath.ZeroInt()
}

func (v *Vault) mint(to types.Address, amount sdkmath.Int) {
	v.sharesMu.Lock()
	defer v.sharesMu.Unlock()
	held, ok := v.shares[to]
	if !ok {
		held = sdkmath.ZeroInt()
	}
	v.shares[to] = held.Add(amount)
	v.totalShares = v.totalShares.Add(amount)
}

func (v *Vault) burn(from types.Address, amount sdkmath.Int) error {
	v.sharesMu.Lock()
	defer v.sharesMu.Unlock()
	held, ok := v.shares[from]
	if !ok || held.LT(amount) {
		return errorsmod.Wrapf(vaulterrors.ErrInsufficientBalance, "%s holds %s shares, requested %s", from, v.balanceOfLocked(from), amount)
	}
	remaining := held.Sub(amount)
	if remaining.IsZero() {
		delete(v.shares, from)
	} else {
		v.shares[from] = remaining
	}
	v.totalShares = v.totalShares.Sub(amount)
	return nil
}

func (v *Vault) balanceOfLocked(addr types.Address) sdkmath.Int {
	if s, ok := v.shares[addr]; ok {
		return s
	}
	return sdkmath.ZeroInt()
}

// convertToShares prices a deposit: 1:1 into an empty vault, otherwise amount*totalShares/totalAssets.
func convertToShares(amount, totalShares, totalAssets sdkmath.Int) (sdkmath.Int, error) {
	if totalShares.IsZero() {
		return amount, nil
	}
	if totalAssets.IsZero() {
		return sdkmath.ZeroInt(), errorsmod.Wrap(vaulterrors.ErrInsufficientBalance, "vault has shares outstanding but no assets")
	}
	return amount.Mul(totalShares).Quo(totalAssets), nil
}

// convertToAssets prices a redemption: shares*totalAssets/totalShares.
func convertToAssets(shares, totalShares, totalAssets sdkmath.Int) sdkmath.Int {
	if totalShares.IsZero() {
		return sdkmath.ZeroInt()
	}
	return shares.Mul(totalAssets).Quo(totalShares)
}

func (v *Vault) emit(eventType types.EventType, strategyID string, account types.Address, amount, shares sdkmath.Int, msg string) {
	e := events.New(eventType, strategyID)
	e.Account = account
	if !amount.IsNil() {
		e.Amounts[v.asset] = amount
	}
	if !shares.IsNil() {
		e.Shares = shares
	}
	e.Message = msg
	v.sink.Emit(e)
}

func (v *Vault) strategyFailed(opLog zerolog.Logger, id, action string, amount sdkmath.Int, err error) {
	opLog.Warn().Err(err).Str("strategy", id).Str("action", action).Str("amount", amount.String()).
		Msg("Strategy call failed, funds stay with the vault")
	v.emit(types.EventStrategyFailed, id, v.addr, amount, sdkmath.Int{}, fmt.Sprintf("%s: %v", action, err))
}

// --- Deposit / Withdraw ---

// Deposit pulls amount of the asset from `from`, mints shares to receiver and pushes idle above the
// reserve target to active strategies by weight. A failing strategy leaves its portion idle.
func (v *Vault) Deposit(ctx context.Context, from, receiver types.Address, amount sdkmath.Int) (sdkmath.Int, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), vaulterrors.ErrZeroAmount
	}
	if from.IsZero() || receiver.IsZero() {
		return sdkmath.ZeroInt(), vaulterrors.ErrZeroAddress
	}
	ctx, unlock, opLog, err := v.enter(ctx, "deposit")
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer unlock()

	if v.paused.Load() {
		return sdkmath.ZeroInt(), vaulterrors.ErrPaused
	}
	cfg := v.cfg.Load()

	h, err := v.valuate(ctx, cfg)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if depositCap := cfg.params.DepositCap; depositCap.IsPositive() && h.total.Add(amount).GT(depositCap) {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(vaulterrors.ErrCapExceeded,
			"total assets %s + deposit %s exceed cap %s", h.total, amount, depositCap)
	}
	shares, err := convertToShares(amount, v.supply(), h.total)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if shares.IsZero() {
		return sdkmath.ZeroInt(), errorsmod.Wrap(vaulterrors.ErrZeroAmount, "deposit too small to mint shares")
	}

	if err := v.ledger.Transfer(from, v.addr, sdk.NewCoin(v.asset, amount)); err != nil {
		return sdkmath.ZeroInt(), err
	}
	v.mint(receiver, shares)
	v.emit(types.EventDeposit, "", receiver, amount, shares, "")

	opLog.Info().
		Str("receiver", receiver.String()).
		Str("amount", amount.String()).
		Str("shares", shares.String()).
		Str("totalAssetsBefore", h.total.String()).
		Msg("Deposit accepted")

	v.distribute(ctx, cfg, opLog)
	return shares, nil
}

// distribute splits idle above the reserve across active strategies by weight.
func (v *Vault) distribute(ctx context.Context, cfg *configuration, opLog zerolog.Logger) {
	surplus := v.idle().Sub(cfg.params.IdleReserveTarget)
	if !surplus.IsPositive() {
		return
	}
	for _, e := range cfg.strategies {
		if e.weightBps == 0 || !e.strategy.IsActive() {
			continue
		}
		portion := utils.ApplyBps(surplus, e.weightBps)
		if portion.IsZero() {
			continue
		}
		deposited, err := e.strategy.Deposit(ctx, portion)
		if err != nil {
			v.strategyFailed(opLog, e.strategy.ID(), "deposit", portion, err)
			continue
		}
		opLog.Debug().Str("strategy", e.strategy.ID()).Str("deposited", deposited.String()).Msg("Surplus deployed")
	}
}

// Withdraw burns shares from owner and delivers their value to receiver, drawing idle first and then
// recalling the shortfall from strategies in proportion to what each holds. If less than
// minAssetsOut can be delivered the shares are restored and SlippageExceeded is returned; assets
// already recalled stay idle. While a strategy cannot be valued, only withdrawals idle covers go
// through, priced as if that strategy held nothing.
func (v *Vault) Withdraw(ctx context.Context, owner, receiver types.Address, shares, minAssetsOut sdkmath.Int) (sdkmath.Int, error) {
	if shares.IsNil() || !shares.IsPositive() {
		return sdkmath.ZeroInt(), vaulterrors.ErrZeroAmount
	}
	if owner.IsZero() || receiver.IsZero() {
		return sdkmath.ZeroInt(), vaulterrors.ErrZeroAddress
	}
	if minAssetsOut.IsNil() {
		minAssetsOut = sdkmath.ZeroInt()
	}
	ctx, unlock, opLog, err := v.enter(ctx, "withdraw")
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer unlock()

	if held := v.balanceOf(owner); held.LT(shares) {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(vaulterrors.ErrInsufficientBalance, "%s holds %s shares, requested %s", owner, held, shares)
	}
	cfg := v.cfg.Load()
	h, valErr := v.valuate(ctx, cfg)
	owed := convertToAssets(shares, v.supply(), h.total)
	if valErr != nil {
		if owed.IsZero() || h.idle.LT(owed) {
			return sdkmath.ZeroInt(), valErr
		}
		opLog.Warn().Err(valErr).Str("owed", owed.String()).Msg("Valuation incomplete, withdrawal paid from idle at the floor price")
	}
	if owed.IsZero() {
		return sdkmath.ZeroInt(), errorsmod.Wrap(vaulterrors.ErrZeroAmount, "shares redeem for nothing")
	}

	// burn before any strategy is called
	if err := v.burn(owner, shares); err != nil {
		return sdkmath.ZeroInt(), err
	}

	if h.idle.LT(owed) {
		v.recall(ctx, cfg, h, owed.Sub(h.idle), opLog)
	}
	delivered := utils.MinInt(owed, v.idle())

	if delivered.LT(minAssetsOut) {
		v.mint(owner, shares)
		opLog.Warn().
			Str("owed", owed.String()).
			Str("deliverable", delivered.String()).
			Str("minAssetsOut", minAssetsOut.String()).
			Msg("Withdraw aborted, shares restored")
		return sdkmath.ZeroInt(), vaulterrors.SlippageExceeded(minAssetsOut, delivered)
	}
	if delivered.IsZero() {
		v.mint(owner, shares)
		opLog.Warn().Str("owed", owed.String()).Msg("Withdraw aborted, nothing could be recalled")
		return sdkmath.ZeroInt(), errorsmod.Wrapf(vaulterrors.ErrInsufficientBalance, "none of %s owed could be recalled", owed)
	}

	if err := v.ledger.Transfer(v.addr, receiver, sdk.NewCoin(v.asset, delivered)); err != nil {
		v.mint(owner, shares)
		return sdkmath.ZeroInt(), err
	}
	v.emit(types.EventWithdraw, "", owner, delivered, shares, "")

	opLog.Info().
		Str("owner", owner.String()).
		Str("receiver", receiver.String()).
		Str("shares", shares.String()).
		Str("owed", owed.String()).
		Str("delivered", delivered.String()).
		Msg("Withdraw completed")
	return delivered, nil
}

// recall pulls shortfall from strategies, each asked for its pro-rata part of what strategies hold.
// Whatever a failing strategy could not supply is requested again from those that succeeded.
func (v *Vault) recall(ctx context.Context, cfg *configuration, h holdings, shortfall sdkmath.Int, opLog zerolog.Logger) sdkmath.Int {
	deployed := h.deployed()
	recalled := sdkmath.ZeroInt()
	if !deployed.IsPositive() {
		return recalled
	}

	remainingCap := make([]sdkmath.Int, len(cfg.strategies))
	healthy := make([]bool, len(cfg.strategies))
	for i, e := range cfg.strategies {
		held := h.strategies[i]
		remainingCap[i] = held
		if !held.IsPositive() {
			continue
		}
		request, _ := utils.MulDivUp(shortfall, held, deployed)
		request = utils.MinInt(request, held)
		if request.IsZero() {
			continue
		}
		got, err := e.strategy.Withdraw(ctx, request)
		if err != nil {
			v.strategyFailed(opLog, e.strategy.ID(), "withdraw", request, err)
			continue
		}
		healthy[i] = true
		recalled = recalled.Add(got)
		remainingCap[i] = held.Sub(utils.MinInt(got, held))
	}

	for i, e := range cfg.strategies {
		missing := shortfall.Sub(recalled)
		if !missing.IsPositive() {
			break
		}
		if !healthy[i] || !remainingCap[i].IsPositive() {
			continue
		}
		request := utils.MinInt(missing, remainingCap[i])
		got, err := e.strategy.Withdraw(ctx, request)
		if err != nil {
			v.strategyFailed(opLog, e.strategy.ID(), "withdraw", request, err)
			continue
		}
		recalled = recalled.Add(got)
	}

	opLog.Debug().Str("shortfall", shortfall.String()).Str("recalled", recalled.String()).Msg("Recall finished")
	return recalled
}

// --- Reads ---

func (v *Vault) Address() types.Address { return v.addr }
func (v *Vault) Admin() types.Address   { return v.admin }
func (v *Vault) Asset() string          { return v.asset }
func (v *Vault) Paused() bool           { return v.paused.Load() }

// Parameters returns the active parameter set.
func (v *Vault) Parameters() types.VaultParameters {
	return v.cfg.Load().params
}

// TotalAssets is idle plus every bound strategy's reported stake.
func (v *Vault) TotalAssets(ctx context.Context) (sdkmath.Int, error) {
	defer v.view(ctx)()
	h, err := v.valuate(ctx, v.cfg.Load())
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return h.total, nil
}

func (v *Vault) TotalSupply() sdkmath.Int {
	return v.supply()
}

func (v *Vault) BalanceOf(addr types.Address) sdkmath.Int {
	return v.balanceOf(addr)
}

// Idle is the asset held directly by the vault.
func (v *Vault) Idle() sdkmath.Int {
	return v.idle()
}

// PreviewDeposit returns the shares a deposit of amount would mint now.
func (v *Vault) PreviewDeposit(ctx context.Context, amount sdkmath.Int) (sdkmath.Int, error) {
	defer v.view(ctx)()
	h, err := v.valuate(ctx, v.cfg.Load())
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return convertToShares(amount, v.supply(), h.total)
}

// PreviewWithdraw returns the assets shares are worth now, before any recall slippage.
func (v *Vault) PreviewWithdraw(ctx context.Context, shares sdkmath.Int) (sdkmath.Int, error) {
	defer v.view(ctx)()
	h, err := v.valuate(ctx, v.cfg.Load())
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return convertToAssets(shares, v.supply(), h.total), nil
}

// SharePrice is total assets per share; zero for an empty vault.
func (v *Vault) SharePrice(ctx context.Context) (sdkmath.LegacyDec, error) {
	total, err := v.TotalAssets(ctx)
	if err != nil {
		return sdkmath.LegacyZeroDec(), err
	}
	return sharePrice(total, v.supply()), nil
}

func sharePrice(total, supply sdkmath.Int) sdkmath.LegacyDec {
	if supply.IsZero() {
		return sdkmath.LegacyZeroDec()
	}
	return sdkmath.LegacyNewDecFromInt(total).QuoInt(supply)
}

// Strategies returns the status of every bound strategy in table order.
func (v *Vault) Strategies(ctx context.Context) ([]types.StrategyStatus, error) {
	defer v.view(ctx)()
	cfg := v.cfg.Load()
	h, err := v.valuate(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return statuses(cfg, h), nil
}

func statuses(cfg *configuration, h holdings) []types.StrategyStatus {
	out := make([]types.StrategyStatus, 0, len(cfg.strategies))
	for i, e := range cfg.strategies {
		st := types.StrategyStatus{
			ID:                   e.strategy.ID(),
			Kind:                 e.strategy.Kind(),
			WeightBps:            e.weightBps,
			Active:               e.strategy.IsActive(),
			TotalAssets:          h.strategies[i],
			CurrentAllocationBps: utils.ShareOfBps(h.strategies[i], h.total),
		}
		if ts := e.strategy.LastRebalance(); !ts.IsZero() {
			st.LastRebalanceTimestamp = ts.Unix()
		}
		out = append(out, st)
	}
	return out
}

// Summary is the headline accounting view.
func (v *Vault) Summary(ctx context.Context) (types.VaultSummary, error) {
	defer v.view(ctx)()
	cfg := v.cfg.Load()
	h, err := v.valuate(ctx, cfg)
	if err != nil {
		return types.VaultSummary{}, err
	}
	supply := v.supply()
	return types.VaultSummary{
		AssetDenom:  v.asset,
		TotalAssets: h.total,
		TotalShares: supply,
		Idle:        h.idle,
		SharePrice:  sharePrice(h.total, supply),
		Paused:      v.paused.Load(),
		Strategies:  statuses(cfg, h),
	}, nil
}
