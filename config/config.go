package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

type Config struct {
	RPCAddress      string `toml:"RPCAddress"`
	MetricsAddress  string `toml:"MetricsAddress"`
	DataDir         string `toml:"DataDir"`
	NetworkName     string `toml:"NetworkName"`
	PoolAddress     string `toml:"PoolAddress"`
	VaultRPCURL     string `toml:"VaultRPCURL"`
	VaultContract   string `toml:"VaultContract"`
	ChainID         int64  `toml:"ChainID"`
	MaxTotalDeposit string `toml:"MaxTotalDeposit"`
}

const defaultConfigToml = `RPCAddress = "127.0.0.1:8645"
MetricsAddress = "127.0.0.1:9290"
DataDir = "./ispo-data"
NetworkName = "ispo-local"
PoolAddress = ""
VaultRPCURL = ""
VaultContract = ""
ChainID = 1
MaxTotalDeposit = "0"
`

// Load loads the configuration from the given path, creating a commented
// default file when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s contains unknown keys: %v", path, undecoded)
	}

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "ispo-local"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./ispo-data"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if err := os.WriteFile(path, []byte(defaultConfigToml), 0o600); err != nil {
		return nil, err
	}
	return Load(path)
}

// Validate checks the fields the daemon cannot run without. The vault
// binding fields may stay empty in configurations that inject a vault some
// other way (tests, simulations); the daemon enforces their presence.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must be set")
	}
	if _, err := c.ParseMaxTotalDeposit(); err != nil {
		return err
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"PoolAddress", c.PoolAddress},
		{"VaultContract", c.VaultContract},
	} {
		trimmed := strings.TrimSpace(field.value)
		if trimmed == "" {
			continue
		}
		if !common.IsHexAddress(trimmed) {
			return fmt.Errorf("config: %s is not a hex address", field.name)
		}
	}
	return nil
}

// ParseMaxTotalDeposit parses the decimal deposit cap. Zero or empty means
// no cap is applied until the operator sets one.
func (c *Config) ParseMaxTotalDeposit() (*big.Int, error) {
	trimmed := strings.TrimSpace(c.MaxTotalDeposit)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	cap, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || cap.Sign() < 0 {
		return nil, fmt.Errorf("config: MaxTotalDeposit must be a non-negative decimal, got %q", c.MaxTotalDeposit)
	}
	return cap, nil
}
