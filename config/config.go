package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"lendpool/native/lending"
)

// Config is the daemon configuration persisted as TOML.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Env           string `toml:"Env"`
	// AdminAddress is the bech32 address authorized for administrative
	// operations (whitelist, prices, auctions, reward distribution).
	AdminAddress string `toml:"AdminAddress"`
	// NativeAsset denominates auction bids and the reward pool.
	NativeAsset string `toml:"NativeAsset"`
	// AuctionDurationSeconds is the fixed bidding window per auction.
	AuctionDurationSeconds int64 `toml:"AuctionDurationSeconds"`

	Lending lending.Config `toml:"lending"`
}

// Default returns the configuration used when no file exists yet.
func Default() *Config {
	return &Config{
		ListenAddress:          ":8645",
		DataDir:                "./data",
		Env:                    "local",
		NativeAsset:            "LPC",
		AuctionDurationSeconds: 24 * 60 * 60,
		Lending:                lending.DefaultConfig(),
	}
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot run under.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if strings.TrimSpace(c.NativeAsset) == "" {
		return fmt.Errorf("config: NativeAsset must not be empty")
	}
	if c.AuctionDurationSeconds <= 0 {
		return fmt.Errorf("config: AuctionDurationSeconds must be positive")
	}
	return c.Lending.Validate()
}

func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
