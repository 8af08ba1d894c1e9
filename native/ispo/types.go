package ispo

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PoolState captures the global accounting state for the ISPO pool. Amount
// values are denominated in the staked asset's underlying unit (wei for ETH)
// and expressed as big integers to match on-chain precision.
type PoolState struct {
	// TotalShares is the aggregate vault share balance backing user deposits.
	// Treasury shares are excluded.
	TotalShares *big.Int
	// TreasuryShares accumulates the shares skimmed from positive rebasing
	// yield. They belong to the operator and are never part of user claims.
	TreasuryShares *big.Int
	// PoolValue is the underlying value of TotalShares at the last
	// synchronisation point, refreshed after every mutating operation.
	PoolValue *big.Int
	// AccumulatedScaledBalance is the sum of every user's scaled balance and
	// the internal unit of account used to apportion PoolValue fairly.
	AccumulatedScaledBalance *big.Int
	// LastRewardTimestamp records when rewards were last assigned. It is
	// informational; no cooldown depends on it.
	LastRewardTimestamp uint64
}

// UserAccount maintains the pool position for an individual participant.
// Records are created on first deposit and zeroed, never deleted, on full
// exit.
type UserAccount struct {
	// Address is the participant identity.
	Address common.Address
	// ScaledBalance is this user's claim in the internal scaled unit,
	// convertible to value via ScaledBalance * PoolValue / AccumulatedScaledBalance.
	ScaledBalance *big.Int
	// Shares tracks the user's proportional claim on pool shares and bounds
	// per-user share extraction during withdrawal.
	Shares *big.Int
}

// Params groups the operator controlled limits governing pool activity.
type Params struct {
	// MaxTotalDeposit caps PoolValue after any deposit, expressed in
	// underlying units.
	MaxTotalDeposit *big.Int
	// Paused suspends normal operation. While paused only the emergency exit
	// path is available.
	Paused bool
}
