package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/DEGAorg/DEGA-ETH-ISPO/core/types"
)

const (
	// TypeRewardsAssigned captures a positive yield skim into the treasury.
	TypeRewardsAssigned = "ispo.rewardsAssigned"
	// TypeDeposited is emitted when a participant deposits into the pool.
	TypeDeposited = "ispo.deposited"
	// TypeWithdrawn is emitted when a participant withdraws from the pool.
	TypeWithdrawn = "ispo.withdrawn"
	// TypeEmergencyWithdrawn captures a full exit while the pool is suspended.
	TypeEmergencyWithdrawn = "ispo.emergencyWithdrawn"
	// TypeDepositCapUpdated signals a new aggregate deposit cap.
	TypeDepositCapUpdated = "ispo.depositCapUpdated"
	// TypePoolPaused captures operating-mode toggles.
	TypePoolPaused = "ispo.poolPaused"
	// TypeTreasuryWithdrawn is emitted when the operator withdraws skimmed
	// treasury shares.
	TypeTreasuryWithdrawn = "ispo.treasuryWithdrawn"
)

// RewardsAssigned captures the share delta realised when yield is skimmed
// into the treasury.
type RewardsAssigned struct {
	SharesYield *big.Int
	TotalShares *big.Int
	Timestamp   uint64
}

// EventType satisfies the Event interface.
func (RewardsAssigned) EventType() string { return TypeRewardsAssigned }

// Event converts the structured payload into a broadcastable event.
func (e RewardsAssigned) Event() *types.Event {
	return &types.Event{Type: TypeRewardsAssigned, Attributes: map[string]string{
		"sharesYield": formatAmount(e.SharesYield),
		"totalShares": formatAmount(e.TotalShares),
		"timestamp":   strconv.FormatUint(e.Timestamp, 10),
	}}
}

// Deposited captures the credited amount and shares pulled from a depositor.
type Deposited struct {
	User   common.Address
	Amount *big.Int
	Shares *big.Int
}

// EventType satisfies the Event interface.
func (Deposited) EventType() string { return TypeDeposited }

// Event converts the structured payload into a broadcastable event.
func (e Deposited) Event() *types.Event {
	return &types.Event{Type: TypeDeposited, Attributes: map[string]string{
		"addr":   e.User.Hex(),
		"amount": formatAmount(e.Amount),
		"shares": formatAmount(e.Shares),
	}}
}

// Withdrawn captures the amount and shares released to a participant.
type Withdrawn struct {
	User   common.Address
	Amount *big.Int
	Shares *big.Int
}

// EventType satisfies the Event interface.
func (Withdrawn) EventType() string { return TypeWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e Withdrawn) Event() *types.Event {
	return &types.Event{Type: TypeWithdrawn, Attributes: map[string]string{
		"addr":   e.User.Hex(),
		"amount": formatAmount(e.Amount),
		"shares": formatAmount(e.Shares),
	}}
}

// EmergencyWithdrawn captures a full exit taken while the pool is suspended.
// Amount is the value actually transferred, which may differ from the user's
// computed claim by rounding in the final conversion.
type EmergencyWithdrawn struct {
	User   common.Address
	Amount *big.Int
	Shares *big.Int
}

// EventType satisfies the Event interface.
func (EmergencyWithdrawn) EventType() string { return TypeEmergencyWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e EmergencyWithdrawn) Event() *types.Event {
	return &types.Event{Type: TypeEmergencyWithdrawn, Attributes: map[string]string{
		"addr":   e.User.Hex(),
		"amount": formatAmount(e.Amount),
		"shares": formatAmount(e.Shares),
	}}
}

// DepositCapUpdated signals a change to the aggregate deposit cap.
type DepositCapUpdated struct {
	Cap *big.Int
}

// EventType satisfies the Event interface.
func (DepositCapUpdated) EventType() string { return TypeDepositCapUpdated }

// Event converts the structured payload into a broadcastable event.
func (e DepositCapUpdated) Event() *types.Event {
	return &types.Event{Type: TypeDepositCapUpdated, Attributes: map[string]string{
		"cap": formatAmount(e.Cap),
	}}
}

// PoolPaused captures operating-mode transitions.
type PoolPaused struct {
	Paused bool
}

// EventType satisfies the Event interface.
func (PoolPaused) EventType() string { return TypePoolPaused }

// Event converts the structured payload into a broadcastable event.
func (e PoolPaused) Event() *types.Event {
	return &types.Event{Type: TypePoolPaused, Attributes: map[string]string{
		"paused": strconv.FormatBool(e.Paused),
	}}
}

// TreasuryWithdrawn captures an operator withdrawal of skimmed shares.
type TreasuryWithdrawn struct {
	Destination common.Address
	Amount      *big.Int
	Shares      *big.Int
}

// EventType satisfies the Event interface.
func (TreasuryWithdrawn) EventType() string { return TypeTreasuryWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e TreasuryWithdrawn) Event() *types.Event {
	return &types.Event{Type: TypeTreasuryWithdrawn, Attributes: map[string]string{
		"destination": e.Destination.Hex(),
		"amount":      formatAmount(e.Amount),
		"shares":      formatAmount(e.Shares),
	}}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
