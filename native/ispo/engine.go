package ispo

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/DEGAorg/DEGA-ETH-ISPO/core/events"
	nativecommon "github.com/DEGAorg/DEGA-ETH-ISPO/native/common"
)

var (
	ErrNilState             = errors.New("ispo engine: state not configured")
	ErrNilVault             = errors.New("ispo engine: vault not configured")
	ErrInvalidAmount        = errors.New("ispo engine: amount must be positive")
	ErrZeroAddress          = errors.New("ispo engine: zero address")
	ErrDepositCapExceeded   = errors.New("ispo engine: deposit cap exceeded")
	ErrDepositFailed        = errors.New("ispo engine: vault transfer returned zero shares")
	ErrNothingToWithdraw    = errors.New("ispo engine: nothing to withdraw")
	ErrNotEnoughBalance     = errors.New("ispo engine: amount exceeds proportional claim")
	ErrInsufficientShares   = errors.New("ispo engine: insufficient shares")
	ErrInvalidCap           = errors.New("ispo engine: cap must be positive")
	ErrCapBelowPoolValue    = errors.New("ispo engine: cap below current pool value")
	ErrNotPaused            = errors.New("ispo engine: pool not suspended")
	ErrInsufficientTreasury = errors.New("ispo engine: amount exceeds treasury shares")
	ErrInconsistentState    = errors.New("ispo engine: scaled balance and shares out of sync")
)

const moduleName = "ispo"

type engineState interface {
	GetPool() (*PoolState, error)
	PutPool(pool *PoolState) error
	GetUserAccount(addr common.Address) (*UserAccount, error)
	PutUserAccount(account *UserAccount) error
	GetParams() (*Params, error)
	PutParams(params *Params) error
}

// Engine orchestrates the state transitions of the ISPO pool ledger. Every
// public operation runs under a single pool-wide lock: all aggregates are read
// and written together, and the lock doubles as the non-reentrancy guard
// around the external vault calls.
type Engine struct {
	mu          sync.Mutex
	state       engineState
	vault       StakedAssetVault
	poolAddress common.Address
	emitter     events.Emitter
	now         func() uint64
}

// NewEngine constructs an engine holding its vault shares under poolAddr.
func NewEngine(poolAddr common.Address) *Engine {
	return &Engine{
		poolAddress: poolAddr,
		emitter:     events.NoopEmitter{},
		now:         func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetVault wires the engine to the rebasing asset vault.
func (e *Engine) SetVault(vault StakedAssetVault) { e.vault = vault }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNow overrides the timestamp source.
func (e *Engine) SetNow(now func() uint64) {
	if e == nil || now == nil {
		return
	}
	e.now = now
}

// paramsPause adapts the persisted operating mode to the shared pause guard.
type paramsPause struct {
	params *Params
}

func (p paramsPause) IsPaused(string) bool { return p.params != nil && p.params.Paused }

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

// AssignRewards measures the yield accrued since the last synchronisation
// point and skims it into the treasury share balance. Callable by anyone
// while the pool operates normally.
func (e *Engine) AssignRewards() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	params, err := e.ensureParams()
	if err != nil {
		return err
	}
	if err := nativecommon.Guard(paramsPause{params}, moduleName); err != nil {
		return err
	}
	pool, err := e.ensurePool()
	if err != nil {
		return err
	}
	if err := e.assignRewards(pool); err != nil {
		return err
	}
	return e.state.PutPool(pool)
}

// assignRewards skims positive yield from the user-owned share pool into the
// treasury before any individual accounting runs. Losses need no action: the
// next PoolValue recomputation reflects them for all holders proportionally.
// Individual user records are never touched; the dilution is implicit because
// AccumulatedScaledBalance stays fixed while TotalShares/PoolValue shrink
// relative to it.
func (e *Engine) assignRewards(pool *PoolState) error {
	if e.vault == nil {
		return ErrNilVault
	}
	if pool.PoolValue.Sign() == 0 {
		return nil
	}
	currentValue, err := e.vault.ValueForShares(pool.TotalShares)
	if err != nil {
		return err
	}
	yield := new(big.Int).Sub(currentValue, pool.PoolValue)
	if yield.Sign() <= 0 {
		return nil
	}
	sharesYield, err := e.vault.SharesForValue(yield)
	if err != nil {
		return err
	}
	if sharesYield.Cmp(pool.TotalShares) > 0 {
		return ErrInconsistentState
	}
	pool.TotalShares = new(big.Int).Sub(pool.TotalShares, sharesYield)
	pool.TreasuryShares = new(big.Int).Add(pool.TreasuryShares, sharesYield)
	pool.PoolValue, err = e.vault.ValueForShares(pool.TotalShares)
	if err != nil {
		return err
	}
	pool.LastRewardTimestamp = e.now()
	e.emit(events.RewardsAssigned{
		SharesYield: new(big.Int).Set(sharesYield),
		TotalShares: new(big.Int).Set(pool.TotalShares),
		Timestamp:   pool.LastRewardTimestamp,
	})
	return nil
}

// Deposit pulls vault shares worth amount from the depositor into the pool
// and credits the depositor's scaled balance at the prevailing
// scaled-to-value ratio. The value the vault actually registers for the
// converted shares is returned.
func (e *Engine) Deposit(from common.Address, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if e.vault == nil {
		return nil, ErrNilVault
	}
	if from == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	params, err := e.ensureParams()
	if err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(paramsPause{params}, moduleName); err != nil {
		return nil, err
	}
	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	if err := e.assignRewards(pool); err != nil {
		return nil, err
	}

	// Round-trip through the vault's conversion so the credited value is
	// exactly what the vault will register for that many shares, avoiding
	// drift between requested and credited amounts.
	depositShares, err := e.vault.SharesForValue(amount)
	if err != nil {
		return nil, err
	}
	finalAmount, err := e.vault.ValueForShares(depositShares)
	if err != nil {
		return nil, err
	}

	if params.MaxTotalDeposit != nil && params.MaxTotalDeposit.Sign() > 0 {
		projected := new(big.Int).Add(pool.PoolValue, finalAmount)
		if projected.Cmp(params.MaxTotalDeposit) > 0 {
			return nil, ErrDepositCapExceeded
		}
	}

	// The first depositor establishes a 1:1 scaled-to-value ratio; everyone
	// after buys in at the prevailing AccumulatedScaledBalance/PoolValue
	// ratio so deposits into a pool that already accrued yield are not
	// diluted relative to earlier depositors.
	multiplier := big.NewInt(1)
	if pool.AccumulatedScaledBalance.Sign() > 0 {
		multiplier = pool.AccumulatedScaledBalance
	}
	divisor := big.NewInt(1)
	if pool.PoolValue.Sign() > 0 {
		divisor = pool.PoolValue
	}
	scaledAmount := new(big.Int).Mul(finalAmount, multiplier)
	scaledAmount = scaledAmount.Quo(scaledAmount, divisor)

	user, err := e.ensureUserAccount(from)
	if err != nil {
		return nil, err
	}
	user.ScaledBalance = new(big.Int).Add(user.ScaledBalance, scaledAmount)
	user.Shares = new(big.Int).Add(user.Shares, depositShares)
	pool.TotalShares = new(big.Int).Add(pool.TotalShares, depositShares)
	pool.AccumulatedScaledBalance = new(big.Int).Add(pool.AccumulatedScaledBalance, scaledAmount)

	// Nothing has been persisted yet, so a rejected transfer aborts the
	// operation without state mutation.
	received, err := e.vault.TransferSharesFrom(from, e.poolAddress, depositShares)
	if err != nil {
		return nil, err
	}
	if received == nil || received.Sign() == 0 {
		return nil, ErrDepositFailed
	}

	pool.PoolValue, err = e.vault.ValueForShares(pool.TotalShares)
	if err != nil {
		return nil, err
	}

	if err := e.state.PutUserAccount(user); err != nil {
		return nil, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}

	e.emit(events.Deposited{
		User:   from,
		Amount: new(big.Int).Set(finalAmount),
		Shares: new(big.Int).Set(depositShares),
	})
	return finalAmount, nil
}

// Withdraw releases vault shares worth amount back to the caller, bounded by
// their current proportional claim. The value actually released is returned.
func (e *Engine) Withdraw(from common.Address, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if e.vault == nil {
		return nil, ErrNilVault
	}
	if from == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	params, err := e.ensureParams()
	if err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(paramsPause{params}, moduleName); err != nil {
		return nil, err
	}
	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	if err := e.assignRewards(pool); err != nil {
		return nil, err
	}

	user, err := e.ensureUserAccount(from)
	if err != nil {
		return nil, err
	}

	// The user's current proportional claim, reflecting any yield or loss
	// accrued since deposit.
	userMaxAmount := new(big.Int)
	if pool.AccumulatedScaledBalance.Sign() > 0 {
		userMaxAmount.Mul(user.ScaledBalance, pool.PoolValue)
		userMaxAmount.Quo(userMaxAmount, pool.AccumulatedScaledBalance)
	}
	if userMaxAmount.Sign() == 0 {
		return nil, ErrNothingToWithdraw
	}
	if amount.Cmp(userMaxAmount) > 0 {
		return nil, ErrNotEnoughBalance
	}

	sharesToWithdraw, err := e.vault.SharesForValue(amount)
	if err != nil {
		return nil, err
	}
	finalAmount, err := e.vault.ValueForShares(sharesToWithdraw)
	if err != nil {
		return nil, err
	}
	if sharesToWithdraw.Cmp(user.Shares) > 0 {
		return nil, ErrInsufficientShares
	}
	if pool.PoolValue.Sign() == 0 || user.ScaledBalance.Sign() == 0 {
		// A nonzero claim with a zero divisor means the ledger is corrupt;
		// fail closed instead of dividing by zero.
		return nil, ErrInconsistentState
	}

	// Inverse of the deposit scaling: convert the value-unit withdrawal back
	// into scaled units.
	amountToDebit := new(big.Int).Mul(finalAmount, pool.AccumulatedScaledBalance)
	amountToDebit = amountToDebit.Quo(amountToDebit, pool.PoolValue)
	if amountToDebit.Cmp(user.ScaledBalance) > 0 {
		amountToDebit = new(big.Int).Set(user.ScaledBalance)
	}

	// Reduce the share bound in the same proportion as the scaled balance.
	shareReduction := new(big.Int).Mul(user.Shares, amountToDebit)
	shareReduction = shareReduction.Quo(shareReduction, user.ScaledBalance)
	if shareReduction.Cmp(user.Shares) > 0 {
		shareReduction = new(big.Int).Set(user.Shares)
	}

	if sharesToWithdraw.Cmp(pool.TotalShares) > 0 {
		return nil, ErrInconsistentState
	}
	pool.TotalShares = new(big.Int).Sub(pool.TotalShares, sharesToWithdraw)
	pool.AccumulatedScaledBalance = new(big.Int).Sub(pool.AccumulatedScaledBalance, amountToDebit)
	user.Shares = new(big.Int).Sub(user.Shares, shareReduction)
	user.ScaledBalance = new(big.Int).Sub(user.ScaledBalance, amountToDebit)

	if _, err := e.vault.TransferShares(from, sharesToWithdraw); err != nil {
		return nil, err
	}

	pool.PoolValue, err = e.vault.ValueForShares(pool.TotalShares)
	if err != nil {
		return nil, err
	}

	if err := e.state.PutUserAccount(user); err != nil {
		return nil, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}

	e.emit(events.Withdrawn{
		User:   from,
		Amount: new(big.Int).Set(finalAmount),
		Shares: new(big.Int).Set(sharesToWithdraw),
	})
	return finalAmount, nil
}

// EmergencyWithdraw releases the caller's entire claim while the pool is
// suspended. No reward skim runs and PoolValue is not refreshed: the vault's
// conversions are pure read-time lookups, so the claim reflects the live
// rate, but treasury shares stay untouched until the pool resumes. The value
// actually transferred and the shares withdrawn are returned.
func (e *Engine) EmergencyWithdraw(from common.Address) (*big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, ErrNilState
	}
	if e.vault == nil {
		return nil, nil, ErrNilVault
	}
	if from == (common.Address{}) {
		return nil, nil, ErrZeroAddress
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	params, err := e.ensureParams()
	if err != nil {
		return nil, nil, err
	}
	if !params.Paused {
		return nil, nil, ErrNotPaused
	}
	pool, err := e.ensurePool()
	if err != nil {
		return nil, nil, err
	}
	if pool.AccumulatedScaledBalance.Sign() == 0 {
		return nil, nil, ErrInvalidAmount
	}

	user, err := e.ensureUserAccount(from)
	if err != nil {
		return nil, nil, err
	}

	pooledValue, err := e.vault.ValueForShares(pool.TotalShares)
	if err != nil {
		return nil, nil, err
	}
	currentAmount := new(big.Int).Mul(user.ScaledBalance, pooledValue)
	currentAmount = currentAmount.Quo(currentAmount, pool.AccumulatedScaledBalance)
	if currentAmount.Sign() == 0 {
		return nil, nil, ErrNothingToWithdraw
	}

	sharesToWithdraw, err := e.vault.SharesForValue(currentAmount)
	if err != nil {
		return nil, nil, err
	}
	if sharesToWithdraw.Cmp(pool.TotalShares) > 0 {
		sharesToWithdraw = new(big.Int).Set(pool.TotalShares)
	}

	pool.AccumulatedScaledBalance = new(big.Int).Sub(pool.AccumulatedScaledBalance, user.ScaledBalance)
	pool.TotalShares = new(big.Int).Sub(pool.TotalShares, sharesToWithdraw)
	user.ScaledBalance = big.NewInt(0)
	user.Shares = big.NewInt(0)

	sent, err := e.vault.TransferShares(from, sharesToWithdraw)
	if err != nil {
		return nil, nil, err
	}
	transferred, err := e.vault.ValueForShares(sent)
	if err != nil {
		return nil, nil, err
	}

	if err := e.state.PutUserAccount(user); err != nil {
		return nil, nil, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, nil, err
	}

	e.emit(events.EmergencyWithdrawn{
		User:   from,
		Amount: new(big.Int).Set(transferred),
		Shares: new(big.Int).Set(sent),
	})
	return transferred, sent, nil
}

// SetMaxTotalDeposit updates the aggregate deposit cap. Zero caps and caps
// below the current pool value are rejected.
func (e *Engine) SetMaxTotalDeposit(cap *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if cap == nil || cap.Sign() <= 0 {
		return ErrInvalidCap
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, err := e.ensurePool()
	if err != nil {
		return err
	}
	if cap.Cmp(pool.PoolValue) < 0 {
		return ErrCapBelowPoolValue
	}
	params, err := e.ensureParams()
	if err != nil {
		return err
	}
	params.MaxTotalDeposit = new(big.Int).Set(cap)
	if err := e.state.PutParams(params); err != nil {
		return err
	}
	e.emit(events.DepositCapUpdated{Cap: new(big.Int).Set(cap)})
	return nil
}

// Pause suspends normal operation, leaving only the emergency exit path.
func (e *Engine) Pause() error { return e.setPaused(true) }

// Unpause resumes normal operation.
func (e *Engine) Unpause() error { return e.setPaused(false) }

func (e *Engine) setPaused(paused bool) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	params, err := e.ensureParams()
	if err != nil {
		return err
	}
	if params.Paused == paused {
		return nil
	}
	params.Paused = paused
	if err := e.state.PutParams(params); err != nil {
		return err
	}
	e.emit(events.PoolPaused{Paused: paused})
	return nil
}

// TreasuryWithdraw transfers amount worth of skimmed treasury shares to the
// destination. It operates purely on the treasury's own share balance and
// never touches user accounting.
func (e *Engine) TreasuryWithdraw(amount *big.Int, destination common.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if e.vault == nil {
		return nil, ErrNilVault
	}
	if destination == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	params, err := e.ensureParams()
	if err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(paramsPause{params}, moduleName); err != nil {
		return nil, err
	}
	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}

	shares, err := e.vault.SharesForValue(amount)
	if err != nil {
		return nil, err
	}
	if shares.Cmp(pool.TreasuryShares) > 0 {
		return nil, ErrInsufficientTreasury
	}
	pool.TreasuryShares = new(big.Int).Sub(pool.TreasuryShares, shares)

	if _, err := e.vault.TransferShares(destination, shares); err != nil {
		return nil, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}

	e.emit(events.TreasuryWithdrawn{
		Destination: destination,
		Amount:      new(big.Int).Set(amount),
		Shares:      new(big.Int).Set(shares),
	})
	return new(big.Int).Set(amount), nil
}

// Pool returns a copy of the current pool aggregates.
func (e *Engine) Pool() (*PoolState, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	return clonePool(pool), nil
}

// Account returns a copy of the participant's recorded position.
func (e *Engine) Account(addr common.Address) (*UserAccount, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	user, err := e.ensureUserAccount(addr)
	if err != nil {
		return nil, err
	}
	return &UserAccount{
		Address:       user.Address,
		ScaledBalance: new(big.Int).Set(user.ScaledBalance),
		Shares:        new(big.Int).Set(user.Shares),
	}, nil
}

// Claim computes the participant's current proportional claim in underlying
// units without mutating any state.
func (e *Engine) Claim(addr common.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	user, err := e.ensureUserAccount(addr)
	if err != nil {
		return nil, err
	}
	if pool.AccumulatedScaledBalance.Sign() == 0 {
		return big.NewInt(0), nil
	}
	claim := new(big.Int).Mul(user.ScaledBalance, pool.PoolValue)
	return claim.Quo(claim, pool.AccumulatedScaledBalance), nil
}

// PoolParams returns a copy of the operator parameters.
func (e *Engine) PoolParams() (*Params, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	params, err := e.ensureParams()
	if err != nil {
		return nil, err
	}
	cloned := &Params{Paused: params.Paused}
	if params.MaxTotalDeposit != nil {
		cloned.MaxTotalDeposit = new(big.Int).Set(params.MaxTotalDeposit)
	}
	return cloned, nil
}

func (e *Engine) ensurePool() (*PoolState, error) {
	pool, err := e.state.GetPool()
	if err != nil {
		return nil, err
	}
	if pool == nil {
		pool = &PoolState{}
	}
	if pool.TotalShares == nil {
		pool.TotalShares = big.NewInt(0)
	}
	if pool.TreasuryShares == nil {
		pool.TreasuryShares = big.NewInt(0)
	}
	if pool.PoolValue == nil {
		pool.PoolValue = big.NewInt(0)
	}
	if pool.AccumulatedScaledBalance == nil {
		pool.AccumulatedScaledBalance = big.NewInt(0)
	}
	return pool, nil
}

func (e *Engine) ensureUserAccount(addr common.Address) (*UserAccount, error) {
	user, err := e.state.GetUserAccount(addr)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user = &UserAccount{Address: addr}
	}
	if user.ScaledBalance == nil {
		user.ScaledBalance = big.NewInt(0)
	}
	if user.Shares == nil {
		user.Shares = big.NewInt(0)
	}
	return user, nil
}

func (e *Engine) ensureParams() (*Params, error) {
	params, err := e.state.GetParams()
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = &Params{}
	}
	if params.MaxTotalDeposit == nil {
		params.MaxTotalDeposit = big.NewInt(0)
	}
	return params, nil
}

func clonePool(pool *PoolState) *PoolState {
	return &PoolState{
		TotalShares:              new(big.Int).Set(pool.TotalShares),
		TreasuryShares:           new(big.Int).Set(pool.TreasuryShares),
		PoolValue:                new(big.Int).Set(pool.PoolValue),
		AccumulatedScaledBalance: new(big.Int).Set(pool.AccumulatedScaledBalance),
		LastRewardTimestamp:      pool.LastRewardTimestamp,
	}
}
