package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ModeSimulation = "SIMULATION"
	ModeLive       = "LIVE"

	DefaultProviderURL = "http://127.0.0.1:8899"
	DefaultProgramID   = "Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS"
)

// Config holds environment-driven configuration. A YAML file named by
// TALOS_CONFIG may supply the same keys; environment variables win.
type Config struct {
	ProviderURL  string `yaml:"provider_url"`
	WalletPath   string `yaml:"wallet"`
	ProgramID    string `yaml:"program_id"`
	Commitment   string `yaml:"commitment"`
	HeliusAPIKey string `yaml:"helius_api_key"`

	Mode              string  `yaml:"mode"`
	MaxTxPerSession   int     `yaml:"max_tx_per_session"`
	MaxDailyLoss      float64 `yaml:"max_daily_loss"`
	ApprovalThreshold float64 `yaml:"approval_threshold"`
	ApprovalFile      string  `yaml:"approval_file"`
	PrivateKey        string  `yaml:"-"`
	Mnemonic          string  `yaml:"-"`

	Port           string        `yaml:"port"`
	MongoURI       string        `yaml:"mongo_uri"`
	MongoDB        string        `yaml:"mongo_db"`
	RateLimitRPM   int           `yaml:"rate_limit_rpm"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	KeyCacheTTL    time.Duration `yaml:"key_cache_ttl"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	AdminToken     string        `yaml:"-"`
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getfloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		WalletPath:        "~/.config/solana/id.json",
		ProgramID:         DefaultProgramID,
		Commitment:        "confirmed",
		Mode:              ModeSimulation,
		MaxTxPerSession:   5,
		MaxDailyLoss:      0.1,
		ApprovalThreshold: 1.0,
		ApprovalFile:      "~/talos_request.json",
		Port:              "8080",
		MongoURI:          "mongodb://localhost:27017",
		MongoDB:           "talos",
		RateLimitRPM:      60,
		CacheTTL:          10 * time.Second,
		KeyCacheTTL:       60 * time.Second,
		FetchTimeout:      3 * time.Second,
		ConfirmTimeout:    60 * time.Second,
		MaxConcurrency:    16,
	}
}

// Load builds the configuration from defaults, the optional TALOS_CONFIG file
// and the environment, in that order.
func Load() (Config, error) { return LoadFrom(os.Getenv("TALOS_CONFIG")) }

// LoadFrom is Load with an explicit config file; an empty path means none.
func LoadFrom(path string) (Config, error) {
	c := Defaults()
	if path != "" {
		if err := LoadFile(ExpandHome(path), &c); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&c)
	c.Mode = strings.ToUpper(c.Mode)
	if c.ProviderURL == "" {
		c.ProviderURL = rpcURL(c.HeliusAPIKey)
	}
	c.WalletPath = ExpandHome(c.WalletPath)
	c.ApprovalFile = ExpandHome(c.ApprovalFile)
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadFile decodes a YAML file on top of c. Keys absent from the file keep
// their current value.
func LoadFile(path string, c *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

func applyEnv(c *Config) {
	c.ProviderURL = getenv("ANCHOR_PROVIDER_URL", c.ProviderURL)
	c.WalletPath = getenv("ANCHOR_WALLET", c.WalletPath)
	c.ProgramID = getenv("TALOS_PROGRAM_ID", c.ProgramID)
	c.Commitment = getenv("SOL_COMMITMENT", c.Commitment)
	c.HeliusAPIKey = getenv("HELIUS_API_KEY", c.HeliusAPIKey)

	c.Mode = getenv("TALOS_MODE", c.Mode)
	c.MaxTxPerSession = getint("MAX_TX_PER_SESSION", c.MaxTxPerSession)
	c.MaxDailyLoss = getfloat("MAX_DAILY_LOSS", c.MaxDailyLoss)
	c.ApprovalThreshold = getfloat("APPROVAL_THRESHOLD", c.ApprovalThreshold)
	c.ApprovalFile = getenv("APPROVAL_FILE", c.ApprovalFile)
	c.PrivateKey = getenv("SOLANA_PRIVATE_KEY", c.PrivateKey)
	c.Mnemonic = getenv("SOLANA_MNEMONIC", c.Mnemonic)

	c.Port = getenv("PORT", c.Port)
	c.MongoURI = getenv("MONGO_URI", c.MongoURI)
	c.MongoDB = getenv("MONGO_DB", c.MongoDB)
	c.RateLimitRPM = getint("RATE_LIMIT_RPM", c.RateLimitRPM)
	c.CacheTTL = getdur("CACHE_TTL", c.CacheTTL)
	c.KeyCacheTTL = getdur("KEY_CACHE_TTL", c.KeyCacheTTL)
	c.FetchTimeout = getdur("FETCH_TIMEOUT", c.FetchTimeout)
	c.ConfirmTimeout = getdur("CONFIRM_TIMEOUT", c.ConfirmTimeout)
	c.MaxConcurrency = getint("MAX_CONCURRENCY", c.MaxConcurrency)
	c.AdminToken = getenv("ADMIN_TOKEN", c.AdminToken)
}

// rpcURL falls back to the Helius devnet endpoint when an API key is present,
// otherwise to the local validator.
func rpcURL(heliusKey string) string {
	if heliusKey != "" {
		return "https://devnet.helius-rpc.com/?api-key=" + heliusKey
	}
	return DefaultProviderURL
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeSimulation, ModeLive:
	default:
		return fmt.Errorf("invalid TALOS_MODE %q", c.Mode)
	}
	if c.MaxTxPerSession < 0 {
		return fmt.Errorf("MAX_TX_PER_SESSION must not be negative")
	}
	if c.MaxDailyLoss < 0 || c.ApprovalThreshold < 0 {
		return fmt.Errorf("SOL limits must not be negative")
	}
	if c.RateLimitRPM <= 0 || c.MaxConcurrency <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPM and MAX_CONCURRENCY must be positive")
	}
	return nil
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
