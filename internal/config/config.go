package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Readiness ReadinessConfig `mapstructure:"readiness"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Audit     AuditConfig     `mapstructure:"audit"`
}

type ServerConfig struct {
	Port             string `mapstructure:"port"`
	RequestTimeoutMs int    `mapstructure:"request_timeout_ms"`
}

type AuthConfig struct {
	// HMACSecret is the single shared secret of the one trusted caller.
	HMACSecret string `mapstructure:"hmac_secret"`
	// TimestampToleranceMs is the freshness window for x-timestamp.
	TimestampToleranceMs int64 `mapstructure:"timestamp_tolerance_ms"`
	// FutureToleranceMs bounds how far in the future a timestamp may be;
	// tighter than the full window to resist clock manipulation.
	FutureToleranceMs int64 `mapstructure:"future_tolerance_ms"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DatabaseConfig struct {
	DSN                string `mapstructure:"dsn"`
	AuditRetentionDays int    `mapstructure:"audit_retention_days"`
}

type NetworkEndpoints struct {
	RPCURL          string `mapstructure:"rpc_url"`
	SubgraphURL     string `mapstructure:"subgraph_url"`
	PriceAPIURL     string `mapstructure:"price_api_url"`
	TradingContract string `mapstructure:"trading_contract"`
	USDCContract    string `mapstructure:"usdc_contract"`
	FaucetContract  string `mapstructure:"faucet_contract"`
}

type UpstreamConfig struct {
	Enabled            bool             `mapstructure:"enabled"`
	DefaultNetwork     string           `mapstructure:"default_network"`
	DelegatePrivateKey string           `mapstructure:"delegate_private_key"`
	ConnectTimeoutMs   int              `mapstructure:"connect_timeout_ms"`
	PriceFeedWSURL     string           `mapstructure:"price_feed_ws_url"`
	Testnet            NetworkEndpoints `mapstructure:"testnet"`
	Mainnet            NetworkEndpoints `mapstructure:"mainnet"`
	// MinDelegateGasWei is the delegate wallet balance below which the
	// readiness probe reports DELEGATE_GAS_LOW.
	MinDelegateGasWei string `mapstructure:"min_delegate_gas_wei"`
}

type ReadinessConfig struct {
	ProbeIntervalSeconds int  `mapstructure:"probe_interval_seconds"`
	AllowDegradedReads   bool `mapstructure:"allow_degraded_reads"`
}

type RateLimitConfig struct {
	QPS   float64 `mapstructure:"qps"`
	Burst int     `mapstructure:"burst"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type AuditConfig struct {
	Dir string `mapstructure:"dir"`
}

func (c *Config) FreshnessWindow() time.Duration {
	return time.Duration(c.Auth.TimestampToleranceMs) * time.Millisecond
}

func (c *Config) FutureTolerance() time.Duration {
	return time.Duration(c.Auth.FutureToleranceMs) * time.Millisecond
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutMs) * time.Millisecond
}

func (c *Config) Endpoints(network string) (NetworkEndpoints, bool) {
	switch network {
	case "testnet":
		return c.Upstream.Testnet, true
	case "mainnet":
		return c.Upstream.Mainnet, true
	default:
		return NetworkEndpoints{}, false
	}
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. OSTIUMGATE_AUTH_HMAC_SECRET
	viper.SetEnvPrefix("ostiumgate")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.request_timeout_ms", 30000)
	viper.SetDefault("auth.timestamp_tolerance_ms", 30000)
	viper.SetDefault("auth.future_tolerance_ms", 5000)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("database.audit_retention_days", 30)
	viper.SetDefault("upstream.enabled", true)
	viper.SetDefault("upstream.default_network", "testnet")
	viper.SetDefault("upstream.connect_timeout_ms", 10000)
	viper.SetDefault("upstream.min_delegate_gas_wei", "10000000000000000") // 0.01 ETH
	viper.SetDefault("upstream.testnet.rpc_url", "https://sepolia-rollup.arbitrum.io/rpc")
	viper.SetDefault("upstream.testnet.subgraph_url", "https://api.goldsky.com/api/public/project_ostium/subgraphs/ostium-testnet/latest/gn")
	viper.SetDefault("upstream.testnet.price_api_url", "https://metadata-backend-testnet.ostium.io/PricePublish/latest-price")
	viper.SetDefault("upstream.mainnet.rpc_url", "https://arb1.arbitrum.io/rpc")
	viper.SetDefault("upstream.mainnet.subgraph_url", "https://api.goldsky.com/api/public/project_ostium/subgraphs/ostium-mainnet/latest/gn")
	viper.SetDefault("upstream.mainnet.price_api_url", "https://metadata-backend.ostium.io/PricePublish/latest-price")
	viper.SetDefault("readiness.probe_interval_seconds", 15)
	viper.SetDefault("readiness.allow_degraded_reads", true)
	viper.SetDefault("ratelimit.qps", 50)
	viper.SetDefault("ratelimit.burst", 100)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("audit.dir", "./logs")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
