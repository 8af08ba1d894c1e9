package ispo

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// StakedAssetVault is the rebasing asset contract the pool holds its deposits
// in. It converts between vault shares and underlying value at the current
// exchange rate and moves shares between the pool and external accounts. The
// rate is monotonic in shares but may drift down over time when the
// underlying asset loses value; the engine never assumes otherwise.
type StakedAssetVault interface {
	// ValueForShares converts a share balance to underlying value at the
	// current exchange rate.
	ValueForShares(shares *big.Int) (*big.Int, error)
	// SharesForValue converts an underlying value to shares at the current
	// exchange rate.
	SharesForValue(value *big.Int) (*big.Int, error)
	// TransferShares moves shares out of the pool's holdings. The amount
	// actually sent is returned.
	TransferShares(to common.Address, shares *big.Int) (*big.Int, error)
	// TransferSharesFrom pulls shares into the pool from a depositor. A zero
	// result signals the vault rejected or could not fulfil the transfer.
	TransferSharesFrom(from, to common.Address, shares *big.Int) (*big.Int, error)
}
