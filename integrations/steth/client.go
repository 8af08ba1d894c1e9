// Package steth binds the pool ledger to a Lido-style rebasing staked-ETH
// contract over an Ethereum JSON-RPC endpoint. The contract performs the
// actual share/value conversions and share transfers; this client is the
// narrow adapter the engine consumes.
package steth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

const vaultABI = `[
  {"name":"getPooledEthByShares","type":"function","stateMutability":"view","inputs":[{"name":"_sharesAmount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
  {"name":"getSharesByPooledEth","type":"function","stateMutability":"view","inputs":[{"name":"_ethAmount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
  {"name":"transferShares","type":"function","stateMutability":"nonpayable","inputs":[{"name":"_recipient","type":"address"},{"name":"_sharesAmount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
  {"name":"transferSharesFrom","type":"function","stateMutability":"nonpayable","inputs":[{"name":"_sender","type":"address"},{"name":"_recipient","type":"address"},{"name":"_sharesAmount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const callTimeout = 15 * time.Second

var errTransferReverted = errors.New("steth: share transfer reverted")

// Client implements the engine's vault interface against a deployed
// rebasing-asset contract. Conversions are read-time eth_call lookups;
// transfers are transactions signed by the pool operator key and awaited
// until mined.
type Client struct {
	backend  *ethclient.Client
	contract *bind.BoundContract
	auth     *bind.TransactOpts
}

// Dial connects to the Ethereum endpoint and binds the vault contract.
// operatorKey signs the share-transfer transactions issued on the pool's
// behalf.
func Dial(rpcURL string, contractAddr common.Address, operatorKey *ecdsa.PrivateKey, chainID *big.Int) (*Client, error) {
	backend, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("steth: dial %s: %w", rpcURL, err)
	}
	parsed, err := abi.JSON(strings.NewReader(vaultABI))
	if err != nil {
		return nil, fmt.Errorf("steth: parse ABI: %w", err)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(operatorKey, chainID)
	if err != nil {
		return nil, fmt.Errorf("steth: transactor: %w", err)
	}
	return &Client{
		backend:  backend,
		contract: bind.NewBoundContract(contractAddr, parsed, backend, backend, backend),
		auth:     auth,
	}, nil
}

// ValueForShares converts a share balance to pooled ETH at the current rate.
func (c *Client) ValueForShares(shares *big.Int) (*big.Int, error) {
	return c.view("getPooledEthByShares", shares)
}

// SharesForValue converts a pooled-ETH amount to shares at the current rate.
func (c *Client) SharesForValue(value *big.Int) (*big.Int, error) {
	return c.view("getSharesByPooledEth", value)
}

// TransferShares moves shares out of the pool's holdings and reports the
// share amount the contract registered, zero when the transfer reverted.
func (c *Client) TransferShares(to common.Address, shares *big.Int) (*big.Int, error) {
	return c.transfer("transferShares", shares, to, shares)
}

// TransferSharesFrom pulls shares from a depositor into the pool. A zero
// result signals the contract rejected the transfer.
func (c *Client) TransferSharesFrom(from, to common.Address, shares *big.Int) (*big.Int, error) {
	return c.transfer("transferSharesFrom", shares, from, to, shares)
}

func (c *Client) view(method string, arg *big.Int) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.contract.Call(opts, &out, method, arg); err != nil {
		return nil, fmt.Errorf("steth: %s: %w", method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("steth: %s returned %d values", method, len(out))
	}
	result, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("steth: %s returned unexpected type %T", method, out[0])
	}
	return result, nil
}

func (c *Client) transfer(method string, shares *big.Int, args ...interface{}) (*big.Int, error) {
	tx, err := c.contract.Transact(c.auth, method, args...)
	if err != nil {
		return nil, fmt.Errorf("steth: %s: %w", method, err)
	}
	receipt, err := c.waitMined(tx)
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return big.NewInt(0), errTransferReverted
	}
	return new(big.Int).Set(shares), nil
}

func (c *Client) waitMined(tx *types.Transaction) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("steth: wait mined %s: %w", tx.Hash(), err)
	}
	return receipt, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	if c != nil && c.backend != nil {
		c.backend.Close()
	}
}
