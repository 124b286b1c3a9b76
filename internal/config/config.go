package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xpool-finance/xpool-signer/pkg/circuitbreaker"
	"github.com/xpool-finance/xpool-signer/pkg/logger"
)

// Config 配置
type Config struct {
	Service  ServiceConfig         `yaml:"service" json:"service"`
	Signer   SignerConfig          `yaml:"signer" json:"signer"`
	Chain    ChainConfig           `yaml:"chain" json:"chain"`
	Redis    RedisConfig           `yaml:"redis" json:"redis"`
	Registry RegistryConfig        `yaml:"registry" json:"registry"`
	Breaker  circuitbreaker.Config `yaml:"breaker" json:"breaker"`
	Log      logger.Config         `yaml:"log" json:"log"`
}

// ServiceConfig 服务配置
type ServiceConfig struct {
	Name string `yaml:"name" json:"name"`
	Env  string `yaml:"env" json:"env"`
}

// SignerConfig 签名配置
type SignerConfig struct {
	// PrivateKey 32 字节 hex，可带 0x 前缀；为空时只能执行不需要签名的命令
	PrivateKey string `yaml:"private_key" json:"-"`
	// Backend ethereum | decred
	Backend string       `yaml:"backend" json:"backend"`
	Domain  DomainConfig `yaml:"domain" json:"domain"`
}

// DomainConfig EIP-712 域配置
type DomainConfig struct {
	Name              string `yaml:"name" json:"name"`
	Version           string `yaml:"version" json:"version"`
	ChainID           int64  `yaml:"chain_id" json:"chain_id"`
	VerifyingContract string `yaml:"verifying_contract" json:"verifying_contract"`
}

// ChainConfig 链配置
type ChainConfig struct {
	RPCURL      string        `yaml:"rpc_url" json:"rpc_url"`
	ChainID     int64         `yaml:"chain_id" json:"chain_id"`
	CallTimeout time.Duration `yaml:"call_timeout" json:"call_timeout"`
	// Tokens 预置代币，命中时不访问链
	Tokens []TokenConfig `yaml:"tokens" json:"tokens"`
}

// TokenConfig 预置代币
type TokenConfig struct {
	Address  string `yaml:"address" json:"address"`
	Symbol   string `yaml:"symbol" json:"symbol"`
	Decimals uint8  `yaml:"decimals" json:"decimals"`
}

// RedisConfig Redis 配置，用于缓存代币精度
type RedisConfig struct {
	Enabled   bool          `yaml:"enabled" json:"enabled"`
	Addresses []string      `yaml:"addresses" json:"addresses"`
	Password  string        `yaml:"password" json:"-"`
	DB        int           `yaml:"db" json:"db"`
	PoolSize  int           `yaml:"pool_size" json:"pool_size"`
	TTL       time.Duration `yaml:"ttl" json:"ttl"`
}

// RegistryConfig 合约地址登记配置
type RegistryConfig struct {
	// Driver file | sqlite | postgres
	Driver  string `yaml:"driver" json:"driver"`
	Path    string `yaml:"path" json:"path"`
	DSN     string `yaml:"dsn" json:"-"`
	Network string `yaml:"network" json:"network"`
}

// Load 加载配置，path 为空时返回默认配置
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse 解析 YAML 内容
func Parse(data []byte) (*Config, error) {
	// 环境变量替换
	content := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 默认配置
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Signer.Backend {
	case "ethereum", "decred":
	default:
		return fmt.Errorf("config: signer.backend %q must be ethereum or decred", c.Signer.Backend)
	}
	switch c.Registry.Driver {
	case "file", "sqlite":
	case "postgres":
		if c.Registry.DSN == "" {
			return fmt.Errorf("config: registry.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("config: registry.driver %q must be file, sqlite or postgres", c.Registry.Driver)
	}
	if c.Chain.ChainID <= 0 {
		return fmt.Errorf("config: chain.chain_id must be positive")
	}
	if c.Signer.Domain.ChainID <= 0 {
		return fmt.Errorf("config: signer.domain.chain_id must be positive")
	}
	if c.Redis.Enabled && len(c.Redis.Addresses) == 0 {
		return fmt.Errorf("config: redis.addresses is required when redis is enabled")
	}
	return nil
}

// expandEnvVars 展开环境变量 ${VAR:default}
func expandEnvVars(s string) string {
	var sb strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "${")
		if start == -1 {
			break
		}
		end := strings.Index(rest[start:], "}")
		if end == -1 {
			break
		}
		end += start

		name, defaultVal, _ := strings.Cut(rest[start+2:end], ":")
		value, ok := os.LookupEnv(name)
		if !ok || value == "" {
			value = defaultVal
		}

		sb.WriteString(rest[:start])
		sb.WriteString(value)
		rest = rest[end+1:]
	}
	sb.WriteString(rest)
	return sb.String()
}

// setDefaults 设置默认值
func setDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "xpool-signer"
	}
	if cfg.Service.Env == "" {
		cfg.Service.Env = "dev"
	}

	if cfg.Signer.Backend == "" {
		cfg.Signer.Backend = "ethereum"
	}

	if cfg.Chain.ChainID == 0 {
		cfg.Chain.ChainID = 31337 // 本地开发
	}
	if cfg.Chain.CallTimeout == 0 {
		cfg.Chain.CallTimeout = 10 * time.Second
	}
	if cfg.Signer.Domain.ChainID == 0 {
		cfg.Signer.Domain.ChainID = cfg.Chain.ChainID
	}
	if cfg.Signer.Domain.Version == "" {
		cfg.Signer.Domain.Version = "1"
	}
	if cfg.Signer.Domain.VerifyingContract == "" {
		cfg.Signer.Domain.VerifyingContract = "0x0000000000000000000000000000000000000000"
	}

	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = 24 * time.Hour
	}

	if cfg.Registry.Driver == "" {
		cfg.Registry.Driver = "file"
	}
	if cfg.Registry.Path == "" {
		switch cfg.Registry.Driver {
		case "sqlite":
			cfg.Registry.Path = "deployed-contracts.db"
		default:
			cfg.Registry.Path = "deployed-contracts.json"
		}
	}
	if cfg.Registry.Network == "" {
		cfg.Registry.Network = "hardhat"
	}

	def := circuitbreaker.DefaultConfig()
	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = def.FailureThreshold
	}
	if cfg.Breaker.SuccessThreshold == 0 {
		cfg.Breaker.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.Breaker.Timeout == 0 {
		cfg.Breaker.Timeout = def.Timeout
	}
	if cfg.Breaker.MaxHalfOpenRequests == 0 {
		cfg.Breaker.MaxHalfOpenRequests = def.MaxHalfOpenRequests
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.ServiceName == "" {
		cfg.Log.ServiceName = cfg.Service.Name
	}
}
