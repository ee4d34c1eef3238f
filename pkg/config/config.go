package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const ConfigFileName = ".teamwallets.json"

var (
	ErrNoRPC      = errors.New("chain has no RPC URLs")
	ErrNoChain    = errors.New("chain has no name")
	ErrBadPageSz  = errors.New("page size must be at least 1")
	ErrEmptyBytes = errors.New("encoded configuration is empty")
)

// TokenConfig describes the token whose balance is shown. An empty Address
// means the chain's native coin.
type TokenConfig struct {
	Symbol   string `json:"symbol" yaml:"symbol"`
	Address  string `json:"address,omitempty" yaml:"address,omitempty"`
	Decimals int    `json:"decimals" yaml:"decimals"`
}

// AddressConfig holds configuration for a roster wallet.
type AddressConfig struct {
	Address string `json:"address" yaml:"address"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
}

// ChainConfig holds configuration for the EVM chain balances are read from.
type ChainConfig struct {
	Name        string      `json:"name" yaml:"name"`
	RPCURLs     []string    `json:"rpc_urls" yaml:"rpc_urls"`
	ChainID     int64       `json:"chain_id,omitempty" yaml:"chain_id,omitempty"`
	ExplorerURL string      `json:"explorer_url,omitempty" yaml:"explorer_url,omitempty"`
	Token       TokenConfig `json:"token" yaml:"token"`
}

// GlobalConfig holds application-wide settings.
type GlobalConfig struct {
	PageSize               int    `json:"page_size" yaml:"page_size"`
	RefreshIntervalSeconds int    `json:"refresh_interval_seconds" yaml:"refresh_interval_seconds"`
	FetchTimeoutSeconds    int    `json:"fetch_timeout_seconds" yaml:"fetch_timeout_seconds"`
	Locale                 string `json:"locale" yaml:"locale"`
	LogLevel               string `json:"log_level" yaml:"log_level"`
	LogFile                string `json:"log_file,omitempty" yaml:"log_file,omitempty"`
}

// Config is the whole configuration file.
type Config struct {
	Addresses []AddressConfig
	Chain     ChainConfig
	Global    GlobalConfig
}

func (g GlobalConfig) FetchTimeout() time.Duration {
	return time.Duration(g.FetchTimeoutSeconds) * time.Second
}

func (g GlobalConfig) RefreshInterval() time.Duration {
	return time.Duration(g.RefreshIntervalSeconds) * time.Second
}

// DefaultChain reads native BNB balances on BNB Smart Chain.
func DefaultChain() ChainConfig {
	return ChainConfig{
		Name:        "BSC",
		RPCURLs:     []string{"https://bsc-dataseed.binance.org"},
		ChainID:     56,
		ExplorerURL: "https://bscscan.com",
		Token:       TokenConfig{Symbol: "BNB", Decimals: 18},
	}
}

func DefaultGlobal() GlobalConfig {
	return GlobalConfig{
		PageSize:               10,
		RefreshIntervalSeconds: 0,
		FetchTimeoutSeconds:    30,
		Locale:                 "en",
		LogLevel:               "info",
	}
}

func Default() Config {
	return Config{Chain: DefaultChain(), Global: DefaultGlobal()}
}

func GetConfigPath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func LoadConfigFromFile(path string) (Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	if isYAML(path) {
		return LoadYAML(f)
	}
	return LoadConfig(f)
}

// fileConfig is the on-disk shape. Pointer fields distinguish "absent" from zero.
type fileConfig struct {
	Addresses              json.RawMessage `json:"addresses" yaml:"-"`
	YAMLAddresses          []AddressConfig `json:"-" yaml:"addresses"`
	RPCURLs                []string        `json:"rpc_urls" yaml:"rpc_urls"` // Legacy
	Chain                  *ChainConfig    `json:"chain" yaml:"chain"`
	PageSize               *int            `json:"page_size" yaml:"page_size"`
	RefreshIntervalSeconds *int            `json:"refresh_interval_seconds" yaml:"refresh_interval_seconds"`
	FetchTimeoutSeconds    *int            `json:"fetch_timeout_seconds" yaml:"fetch_timeout_seconds"`
	Locale                 *string         `json:"locale" yaml:"locale"`
	LogLevel               *string         `json:"log_level" yaml:"log_level"`
	LogFile                *string         `json:"log_file" yaml:"log_file"`
}

func LoadConfig(r io.Reader) (Config, error) {
	var fc fileConfig
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return Config{}, err
	}

	var addresses []AddressConfig
	if len(fc.Addresses) > 0 {
		// Try []AddressConfig, then the legacy []string form.
		if err := json.Unmarshal(fc.Addresses, &addresses); err != nil {
			addresses = nil
			var strAddrs []string
			if err2 := json.Unmarshal(fc.Addresses, &strAddrs); err2 == nil {
				for _, a := range strAddrs {
					addresses = append(addresses, AddressConfig{Address: a})
				}
			}
		}
	}
	return fc.resolve(addresses), nil
}

func LoadYAML(r io.Reader) (Config, error) {
	var fc fileConfig
	if err := yaml.NewDecoder(r).Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return fc.resolve(fc.YAMLAddresses), nil
}

func (fc fileConfig) resolve(addresses []AddressConfig) Config {
	cfg := Default()
	cfg.Addresses = addresses

	if fc.Chain != nil {
		cfg.Chain = *fc.Chain
	} else if len(fc.RPCURLs) > 0 {
		// Migration for legacy config
		cfg.Chain.RPCURLs = fc.RPCURLs
		cfg.Chain.ChainID = 0
	}
	if cfg.Chain.Token.Decimals == 0 && cfg.Chain.Token.Address == "" {
		cfg.Chain.Token.Decimals = 18
	}

	if fc.PageSize != nil {
		cfg.Global.PageSize = *fc.PageSize
	}
	if fc.RefreshIntervalSeconds != nil {
		cfg.Global.RefreshIntervalSeconds = *fc.RefreshIntervalSeconds
	}
	if fc.FetchTimeoutSeconds != nil {
		cfg.Global.FetchTimeoutSeconds = *fc.FetchTimeoutSeconds
	}
	if fc.Locale != nil {
		cfg.Global.Locale = *fc.Locale
	}
	if fc.LogLevel != nil {
		cfg.Global.LogLevel = *fc.LogLevel
	}
	if fc.LogFile != nil {
		cfg.Global.LogFile = *fc.LogFile
	}
	return cfg
}

// envOverrides are read from the process environment. Zero values leave the
// file setting untouched.
type envOverrides struct {
	RPCURLs                []string `env:"TEAMWALLETS_RPC_URLS" envSeparator:","`
	TokenAddress           string   `env:"TEAMWALLETS_TOKEN_ADDRESS"`
	TokenSymbol            string   `env:"TEAMWALLETS_TOKEN_SYMBOL"`
	TokenDecimals          int      `env:"TEAMWALLETS_TOKEN_DECIMALS"`
	PageSize               int      `env:"TEAMWALLETS_PAGE_SIZE"`
	RefreshIntervalSeconds int      `env:"TEAMWALLETS_REFRESH_INTERVAL_SECONDS"`
	FetchTimeoutSeconds    int      `env:"TEAMWALLETS_FETCH_TIMEOUT_SECONDS"`
	Locale                 string   `env:"TEAMWALLETS_LOCALE"`
	LogLevel               string   `env:"TEAMWALLETS_LOG_LEVEL"`
	LogFile                string   `env:"TEAMWALLETS_LOG_FILE"`
}

// ApplyEnv loads dotenvPath (if present) and applies TEAMWALLETS_* overrides.
func ApplyEnv(cfg *Config, dotenvPath string) error {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", dotenvPath, err)
		}
	}

	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	if len(o.RPCURLs) > 0 {
		cfg.Chain.RPCURLs = o.RPCURLs
	}
	if o.TokenAddress != "" {
		cfg.Chain.Token.Address = o.TokenAddress
	}
	if o.TokenSymbol != "" {
		cfg.Chain.Token.Symbol = o.TokenSymbol
	}
	if o.TokenDecimals > 0 {
		cfg.Chain.Token.Decimals = o.TokenDecimals
	}
	if o.PageSize > 0 {
		cfg.Global.PageSize = o.PageSize
	}
	if o.RefreshIntervalSeconds > 0 {
		cfg.Global.RefreshIntervalSeconds = o.RefreshIntervalSeconds
	}
	if o.FetchTimeoutSeconds > 0 {
		cfg.Global.FetchTimeoutSeconds = o.FetchTimeoutSeconds
	}
	if o.Locale != "" {
		cfg.Global.Locale = o.Locale
	}
	if o.LogLevel != "" {
		cfg.Global.LogLevel = o.LogLevel
	}
	if o.LogFile != "" {
		cfg.Global.LogFile = o.LogFile
	}
	return nil
}

// Validate checks the settings every command relies on.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Chain.Name) == "" {
		return fmt.Errorf("validation failed: %w", ErrNoChain)
	}
	if len(c.Chain.RPCURLs) == 0 {
		return fmt.Errorf("validation failed: chain %s: %w", c.Chain.Name, ErrNoRPC)
	}
	if c.Global.PageSize < 1 {
		return fmt.Errorf("validation failed: %w", ErrBadPageSz)
	}
	return nil
}

func SaveConfig(cfg Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	out := struct {
		Addresses              []AddressConfig `json:"addresses" yaml:"addresses"`
		Chain                  ChainConfig     `json:"chain" yaml:"chain"`
		PageSize               int             `json:"page_size" yaml:"page_size"`
		RefreshIntervalSeconds int             `json:"refresh_interval_seconds" yaml:"refresh_interval_seconds"`
		FetchTimeoutSeconds    int             `json:"fetch_timeout_seconds" yaml:"fetch_timeout_seconds"`
		Locale                 string          `json:"locale" yaml:"locale"`
		LogLevel               string          `json:"log_level" yaml:"log_level"`
		LogFile                string          `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	}{
		Addresses:              cfg.Addresses,
		Chain:                  cfg.Chain,
		PageSize:               cfg.Global.PageSize,
		RefreshIntervalSeconds: cfg.Global.RefreshIntervalSeconds,
		FetchTimeoutSeconds:    cfg.Global.FetchTimeoutSeconds,
		Locale:                 cfg.Global.Locale,
		LogLevel:               cfg.Global.LogLevel,
		LogFile:                cfg.Global.LogFile,
	}

	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(out)
	} else {
		data, err = json.MarshalIndent(out, "", "  ")
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("validation failed: %w", ErrEmptyBytes)
	}

	// Create a backup of the existing file
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		input, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read existing config for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0644); err != nil {
			return fmt.Errorf("failed to write backup config: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// RestoreLastBackup copies the newest backup written by SaveConfig over path.
func RestoreLastBackup(configPath string) (string, error) {
	matches, err := filepath.Glob(configPath + ".*.bak")
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no backup files found for %s", configPath)
	}
	sort.Strings(matches)
	lastBackup := matches[len(matches)-1]

	data, err := os.ReadFile(lastBackup)
	if err != nil {
		return "", err
	}
	return lastBackup, os.WriteFile(configPath, data, 0644)
}
