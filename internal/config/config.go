package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Host              string `json:"host" yaml:"host"`
	Port              string `json:"port" yaml:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec" yaml:"request_timeout_sec"`
}

// Addr is the listen address.
func (s Server) Addr() string { return s.Host + ":" + s.Port }

type Breeze struct {
	APIKey       string `json:"api_key" yaml:"api_key"`
	APISecret    string `json:"api_secret" yaml:"api_secret"`
	SessionToken string `json:"session_token" yaml:"session_token"`
	BaseURL      string `json:"base_url" yaml:"base_url"`
	// SessionTTLSec reuses a vendor session for this long. 0 opens a new
	// session for every request.
	SessionTTLSec int `json:"session_ttl_sec" yaml:"session_ttl_sec"`
	// MaxConcurrency bounds parallel per-index quote calls. 1 is sequential.
	MaxConcurrency int `json:"max_concurrency" yaml:"max_concurrency"`
	// TokenRedisURL, when set, makes the session token come from Redis
	// instead of SessionToken.
	TokenRedisURL string `json:"token_redis_url" yaml:"token_redis_url"`
	TokenRedisKey string `json:"token_redis_key" yaml:"token_redis_key"`
}

// Index maps a display symbol onto a Breeze stock code.
type Index struct {
	Symbol   string `json:"symbol" yaml:"symbol"`
	Exchange string `json:"exchange" yaml:"exchange"`
	Code     string `json:"code" yaml:"code"`
}

type OptionChain struct {
	StockCode    string `json:"stock_code" yaml:"stock_code"`
	ExchangeCode string `json:"exchange_code" yaml:"exchange_code"`
	ProductType  string `json:"product_type" yaml:"product_type"`
	ExpiryDate   string `json:"expiry_date" yaml:"expiry_date"`
	Right        string `json:"right" yaml:"right"`
	StrikePrice  string `json:"strike_price" yaml:"strike_price"`
}

type Log struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"`
	Output     string `json:"output" yaml:"output"`
	File       string `json:"file" yaml:"file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

type Config struct {
	Server      Server      `json:"server" yaml:"server"`
	Breeze      Breeze      `json:"breeze" yaml:"breeze"`
	Indices     []Index     `json:"indices" yaml:"indices"`
	OptionChain OptionChain `json:"option_chain" yaml:"option_chain"`
	Log         Log         `json:"log" yaml:"log"`
}

func Default() Config {
	return Config{
		Server: Server{Host: "0.0.0.0", Port: "5000", RequestTimeoutSec: 15},
		Breeze: Breeze{
			BaseURL:        "https://api.icicidirect.com/breezeapi/api/v1/",
			MaxConcurrency: 1,
			TokenRedisKey:  "breeze:session_token",
		},
		Indices: []Index{
			{Symbol: "NIFTY 50", Exchange: "NSE", Code: "NIFTY"},
			{Symbol: "NIFTY BANK", Exchange: "NSE", Code: "BANKNIFTY"},
			{Symbol: "NIFTY IT", Exchange: "NSE", Code: "CNXIT"},
			{Symbol: "SENSEX", Exchange: "BSE", Code: "SENSEX"},
		},
		OptionChain: OptionChain{
			StockCode:    "NIFTY",
			ExchangeCode: "NFO",
			ProductType:  "options",
			Right:        "others",
		},
		Log: Log{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			File:       "logs/breezerelay.log",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
	}
}

var candidates = []string{"config.json", "config.yaml", "config.yml"}

// Load reads a JSON or YAML config from path. If path is empty the working
// directory is searched for config.json/config.yaml; with no file the
// defaults are used. Environment variables override the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := decode(path, b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	if cfg.Breeze.MaxConcurrency <= 0 {
		cfg.Breeze.MaxConcurrency = 1
	}
	return cfg, nil
}

func decode(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return json.Unmarshal(b, cfg)
	}
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Port) == "" {
		errs = append(errs, errors.New("server.port is empty"))
	}
	if len(c.Indices) == 0 {
		errs = append(errs, errors.New("indices is empty"))
	}
	seen := make(map[string]struct{}, len(c.Indices))
	for i, ix := range c.Indices {
		if ix.Symbol == "" || ix.Exchange == "" || ix.Code == "" {
			errs = append(errs, fmt.Errorf("indices[%d]: symbol, exchange and code are required", i))
			continue
		}
		if _, dup := seen[ix.Symbol]; dup {
			errs = append(errs, fmt.Errorf("indices[%d]: duplicate symbol %q", i, ix.Symbol))
		}
		seen[ix.Symbol] = struct{}{}
	}
	if c.Breeze.TokenRedisURL != "" && c.Breeze.TokenRedisKey == "" {
		errs = append(errs, errors.New("breeze.token_redis_key is empty"))
	}
	return errors.Join(errs...)
}

// MissingCredentials lists the Breeze credentials that are not set.
func (c Config) MissingCredentials() []string {
	var out []string
	if c.Breeze.APIKey == "" {
		out = append(out, "BREEZE_API_KEY")
	}
	if c.Breeze.APISecret == "" {
		out = append(out, "BREEZE_API_SECRET")
	}
	if c.Breeze.SessionToken == "" && c.Breeze.TokenRedisURL == "" {
		out = append(out, "BREEZE_SESSION_TOKEN")
	}
	return out
}

func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int, min int) {
		if v := os.Getenv(key); v != "" {
			var x int
			if _, err := fmt.Sscanf(v, "%d", &x); err == nil && x >= min {
				*dst = x
			}
		}
	}

	setString("HOST", &cfg.Server.Host)
	setString("PORT", &cfg.Server.Port)
	setInt("REQUEST_TIMEOUT_SEC", &cfg.Server.RequestTimeoutSec, 1)

	setString("BREEZE_API_KEY", &cfg.Breeze.APIKey)
	setString("BREEZE_API_SECRET", &cfg.Breeze.APISecret)
	setString("BREEZE_SESSION_TOKEN", &cfg.Breeze.SessionToken)
	setString("BREEZE_BASE_URL", &cfg.Breeze.BaseURL)
	setInt("BREEZE_SESSION_TTL_SEC", &cfg.Breeze.SessionTTLSec, 0)
	setInt("BREEZE_MAX_CONCURRENCY", &cfg.Breeze.MaxConcurrency, 1)
	setString("BREEZE_TOKEN_REDIS_URL", &cfg.Breeze.TokenRedisURL)
	setString("BREEZE_TOKEN_REDIS_KEY", &cfg.Breeze.TokenRedisKey)

	setString("OPTION_CHAIN_STOCK_CODE", &cfg.OptionChain.StockCode)
	setString("OPTION_CHAIN_EXPIRY_DATE", &cfg.OptionChain.ExpiryDate)

	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LOG_FORMAT", &cfg.Log.Format)
	setString("LOG_OUTPUT", &cfg.Log.Output)
	setString("LOG_FILE", &cfg.Log.File)
}
