package ispo

import (
	"errors"
	"math/big"
	"testing"

	nativecommon "github.com/DEGAorg/DEGA-ETH-ISPO/native/common"
)

func TestPauseGatesNormalOperations(t *testing.T) {
	engine, _, _ := newTestEngine()
	alice := user(0x01)

	if _, err := engine.Deposit(alice, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}

	if _, err := engine.Deposit(alice, big.NewInt(1)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused on deposit, got %v", err)
	}
	if _, err := engine.Withdraw(alice, big.NewInt(1)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused on withdraw, got %v", err)
	}
	if err := engine.AssignRewards(); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused on reward assignment, got %v", err)
	}
	if _, err := engine.TreasuryWithdraw(big.NewInt(1), user(0xaa)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused on treasury withdraw, got %v", err)
	}

	if err := engine.Unpause(); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, err := engine.Withdraw(alice, big.NewInt(1)); err != nil {
		t.Fatalf("withdraw after unpause: %v", err)
	}
}

func TestEmergencyWithdrawRequiresSuspension(t *testing.T) {
	engine, _, _ := newTestEngine()
	alice := user(0x01)

	if _, err := engine.Deposit(alice, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, _, err := engine.EmergencyWithdraw(alice); !errors.Is(err, ErrNotPaused) {
		t.Fatalf("expected ErrNotPaused, got %v", err)
	}
}

func TestEmergencyWithdrawFullExit(t *testing.T) {
	engine, state, _ := newTestEngine()
	alice := user(0x01)
	bob := user(0x02)

	if _, err := engine.Deposit(alice, big.NewInt(100)); err != nil {
		t.Fatalf("deposit alice: %v", err)
	}
	if _, err := engine.Deposit(bob, big.NewInt(100)); err != nil {
		t.Fatalf("deposit bob: %v", err)
	}
	if err := engine.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}

	amount, shares, err := engine.EmergencyWithdraw(alice)
	if err != nil {
		t.Fatalf("emergency withdraw: %v", err)
	}
	if amount.Cmp(big.NewInt(100)) != 0 || shares.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected exit: amount %s shares %s", amount, shares)
	}

	account := state.users[alice]
	if account.ScaledBalance.Sign() != 0 || account.Shares.Sign() != 0 {
		t.Fatalf("exit must zero the account: scaled %s shares %s", account.ScaledBalance, account.Shares)
	}
	if state.pool.AccumulatedScaledBalance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected accumulated scaled balance: %s", state.pool.AccumulatedScaledBalance)
	}
	if state.pool.TotalShares.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected total shares: %s", state.pool.TotalShares)
	}

	// A second call by the same caller finds nothing to withdraw.
	if _, _, err := engine.EmergencyWithdraw(alice); !errors.Is(err, ErrNothingToWithdraw) {
		t.Fatalf("expected ErrNothingToWithdraw, got %v", err)
	}

	// The remaining participant can still exit in full.
	amount, _, err = engine.EmergencyWithdraw(bob)
	if err != nil {
		t.Fatalf("emergency withdraw bob: %v", err)
	}
	if amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected exit amount for bob: %s", amount)
	}

	// With every scaled unit gone the pool reports a zero-amount error.
	if _, _, err := engine.EmergencyWithdraw(alice); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount on drained pool, got %v", err)
	}
}

func TestEmergencyWithdrawSkipsRewardSkim(t *testing.T) {
	engine, state, vault := newTestEngine()
	alice := user(0x01)

	if _, err := engine.Deposit(alice, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}

	// Yield accrues during suspension. The exit reflects the live rate but
	// no shares move into the treasury.
	vault.setRate(11, 10)
	amount, _, err := engine.EmergencyWithdraw(alice)
	if err != nil {
		t.Fatalf("emergency withdraw: %v", err)
	}
	if amount.Cmp(big.NewInt(110)) != 0 {
		t.Fatalf("exit should reflect the live rate: %s", amount)
	}
	if state.pool.TreasuryShares.Sign() != 0 {
		t.Fatalf("suspension must not skim yield: %s", state.pool.TreasuryShares)
	}
}
