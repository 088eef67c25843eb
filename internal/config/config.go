package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/PAYCY-LLC/xrates-kit-go/internal/coin"
)

type Config struct {
	// Upstream endpoints
	CoinGeckoBaseURL   string
	UniswapSubgraphURL string
	FiatAPIBaseURL     string
	EthereumRPCURL     string

	// Observed set
	Currency string
	Coins    []coin.Type

	// Caching
	CacheTTL time.Duration

	// REST facade
	APIPort         int
	APIKey          string
	CORSAllowOrigin string

	// Database (optional; empty host disables persistence)
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	// Logging
	LogDir   string
	LogDebug bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		CoinGeckoBaseURL:   envStr("COINGECKO_BASE_URL", ""),
		UniswapSubgraphURL: envStr("UNISWAP_SUBGRAPH_URL", ""),
		FiatAPIBaseURL:     envStr("FIAT_API_BASE_URL", ""),
		EthereumRPCURL:     envStr("ETHEREUM_RPC_URL", ""),

		Currency: strings.ToLower(envStr("CURRENCY", "usd")),

		CacheTTL: time.Duration(envInt("CACHE_TTL_SECONDS", 300)) * time.Second,

		APIPort:         envInt("API_PORT", 3001),
		APIKey:          envStr("API_KEY", ""),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),

		DBHost:     envStr("DB_HOST", ""),
		DBPort:     envInt("DB_PORT", 5432),
		DBName:     envStr("DB_NAME", "xrates"),
		DBUser:     envStr("DB_USER", ""),
		DBPassword: envStr("DB_PASSWORD", ""),

		LogDir:   envStr("LOG_DIR", "logs"),
		LogDebug: envBool("LOG_DEBUG", false),
	}

	coins, err := parseCoins(envStr("COINS", "bitcoin,ethereum"))
	if err != nil {
		return nil, err
	}
	cfg.Coins = coins

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	if c.EthereumRPCURL == "" {
		errs = append(errs, "ETHEREUM_RPC_URL is required for the DEX adapter")
	}
	if len(c.Coins) == 0 {
		errs = append(errs, "COINS must name at least one coin")
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, "CACHE_TTL_SECONDS must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (c *Config) PersistenceEnabled() bool { return c.DBHost != "" }

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// parseCoins reads a comma-separated coin list. Plain names map to the
// built-in coin types; erc20:<address> and bep20:<address> name tokens.
func parseCoins(raw string) ([]coin.Type, error) {
	named := map[string]coin.Type{
		"bitcoin":             coin.Bitcoin{},
		"bitcoin-cash":        coin.BitcoinCash{},
		"litecoin":            coin.Litecoin{},
		"dash":                coin.Dash{},
		"zcash":               coin.Zcash{},
		"ethereum":            coin.Ethereum{},
		"binance-smart-chain": coin.BinanceSmartChain{},
	}

	var coins []coin.Type
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		if t, ok := named[part]; ok {
			coins = append(coins, t)
			continue
		}
		if addr, ok := strings.CutPrefix(part, "erc20:"); ok {
			t, err := coin.NewErc20(addr)
			if err != nil {
				return nil, fmt.Errorf("COINS entry %q: %w", part, err)
			}
			coins = append(coins, t)
			continue
		}
		if addr, ok := strings.CutPrefix(part, "bep20:"); ok {
			t, err := coin.NewBep20(addr)
			if err != nil {
				return nil, fmt.Errorf("COINS entry %q: %w", part, err)
			}
			coins = append(coins, t)
			continue
		}
		return nil, fmt.Errorf("COINS entry %q is not a known coin", part)
	}
	return coins, nil
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}
