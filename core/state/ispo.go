package state

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/DEGAorg/DEGA-ETH-ISPO/native/ispo"
	"github.com/DEGAorg/DEGA-ETH-ISPO/storage"
)

// Manager persists the pool ledger records in the key-value store. Keys are
// keccak hashes of a per-record prefix so layout changes cannot collide.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	poolKey      = ethcrypto.Keccak256([]byte("ispo:pool"))
	paramsKey    = ethcrypto.Keccak256([]byte("ispo:params"))
	accountPrefix = []byte("ispo:account:")
)

func accountKey(addr common.Address) []byte {
	buf := make([]byte, len(accountPrefix)+common.AddressLength)
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr.Bytes())
	return ethcrypto.Keccak256(buf)
}

type storedPool struct {
	TotalShares              *big.Int
	TreasuryShares           *big.Int
	PoolValue                *big.Int
	AccumulatedScaledBalance *big.Int
	LastRewardTimestamp      uint64
}

type storedAccount struct {
	Address       common.Address
	ScaledBalance *big.Int
	Shares        *big.Int
}

type storedParams struct {
	MaxTotalDeposit *big.Int
	Paused          bool
}

// GetPool loads the pool aggregates. A missing record yields nil so the
// engine can initialise zero state.
func (m *Manager) GetPool() (*ispo.PoolState, error) {
	data, err := m.db.Get(poolKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	stored := new(storedPool)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, err
	}
	return &ispo.PoolState{
		TotalShares:              stored.TotalShares,
		TreasuryShares:           stored.TreasuryShares,
		PoolValue:                stored.PoolValue,
		AccumulatedScaledBalance: stored.AccumulatedScaledBalance,
		LastRewardTimestamp:      stored.LastRewardTimestamp,
	}, nil
}

// PutPool persists the pool aggregates.
func (m *Manager) PutPool(pool *ispo.PoolState) error {
	if pool == nil {
		return errors.New("state: nil pool")
	}
	encoded, err := rlp.EncodeToBytes(&storedPool{
		TotalShares:              normalize(pool.TotalShares),
		TreasuryShares:           normalize(pool.TreasuryShares),
		PoolValue:                normalize(pool.PoolValue),
		AccumulatedScaledBalance: normalize(pool.AccumulatedScaledBalance),
		LastRewardTimestamp:      pool.LastRewardTimestamp,
	})
	if err != nil {
		return err
	}
	return m.db.Put(poolKey, encoded)
}

// GetUserAccount loads a participant record. A missing record yields nil; the
// engine creates accounts implicitly on first deposit.
func (m *Manager) GetUserAccount(addr common.Address) (*ispo.UserAccount, error) {
	data, err := m.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	stored := new(storedAccount)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, err
	}
	return &ispo.UserAccount{
		Address:       stored.Address,
		ScaledBalance: stored.ScaledBalance,
		Shares:        stored.Shares,
	}, nil
}

// PutUserAccount persists a participant record. Zeroed records are kept, not
// deleted.
func (m *Manager) PutUserAccount(account *ispo.UserAccount) error {
	if account == nil {
		return errors.New("state: nil account")
	}
	encoded, err := rlp.EncodeToBytes(&storedAccount{
		Address:       account.Address,
		ScaledBalance: normalize(account.ScaledBalance),
		Shares:        normalize(account.Shares),
	})
	if err != nil {
		return err
	}
	return m.db.Put(accountKey(account.Address), encoded)
}

// GetParams loads the operator parameters.
func (m *Manager) GetParams() (*ispo.Params, error) {
	data, err := m.db.Get(paramsKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	stored := new(storedParams)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, err
	}
	return &ispo.Params{
		MaxTotalDeposit: stored.MaxTotalDeposit,
		Paused:          stored.Paused,
	}, nil
}

// PutParams persists the operator parameters.
func (m *Manager) PutParams(params *ispo.Params) error {
	if params == nil {
		return errors.New("state: nil params")
	}
	encoded, err := rlp.EncodeToBytes(&storedParams{
		MaxTotalDeposit: normalize(params.MaxTotalDeposit),
		Paused:          params.Paused,
	})
	if err != nil {
		return err
	}
	return m.db.Put(paramsKey, encoded)
}

func normalize(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
