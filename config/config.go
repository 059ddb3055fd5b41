package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds the node settings for the marketplace daemon.
type Config struct {
	RPCAddress    string `toml:"RPCAddress"`
	DataDir       string `toml:"DataDir"`
	Environment   string `toml:"Environment"`
	LogFile       string `toml:"LogFile"`
	Admin         string `toml:"Admin"`
	Treasury      string `toml:"Treasury"`
	TradeFeeBps   uint32 `toml:"TradeFeeBps"`
	AuctionFeeBps uint32 `toml:"AuctionFeeBps"`
	BidTimeBuffer int64  `toml:"BidTimeBuffer"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8545"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./data"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if cfg.TradeFeeBps == 0 {
		cfg.TradeFeeBps = 250
	}
	if cfg.AuctionFeeBps == 0 {
		cfg.AuctionFeeBps = 250
	}
	if cfg.BidTimeBuffer == 0 {
		cfg.BidTimeBuffer = 600
	}
}

// Validate rejects settings the engines would refuse at wiring time.
func Validate(cfg *Config) error {
	if cfg.TradeFeeBps == 0 || cfg.TradeFeeBps > 10_000 {
		return fmt.Errorf("config: TradeFeeBps out of range")
	}
	if cfg.AuctionFeeBps == 0 || cfg.AuctionFeeBps > 10_000 {
		return fmt.Errorf("config: AuctionFeeBps out of range")
	}
	if cfg.BidTimeBuffer <= 0 {
		return fmt.Errorf("config: BidTimeBuffer must be positive")
	}
	if _, err := ParseAddress(cfg.Admin); cfg.Admin != "" && err != nil {
		return fmt.Errorf("config: invalid Admin address: %w", err)
	}
	if _, err := ParseAddress(cfg.Treasury); cfg.Treasury != "" && err != nil {
		return fmt.Errorf("config: invalid Treasury address: %w", err)
	}
	return nil
}

// ParseAddress decodes a 20-byte hex address with optional 0x prefix.
func ParseAddress(s string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, err
	}
	if len(raw) != 20 {
		return addr, fmt.Errorf("address must be 20 bytes, got %d", len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
