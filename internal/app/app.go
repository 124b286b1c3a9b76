// Package app 组装 xpool-signer 的各个组件
//
// 组件:
//   - 签名器: 私钥 + 加密后端 (ethereum | decred)，未配置私钥时为空
//   - 代币精度: 预置代币 -> Redis 缓存 (可选) -> 链上 decimals()，链上调用经熔断器保护
//   - 金额转换: 人类可读金额 <-> 最小单位
//   - 合约地址登记表: file | sqlite | postgres，首次使用时打开
package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xpool-finance/xpool-signer/internal/chain"
	"github.com/xpool-finance/xpool-signer/internal/config"
	"github.com/xpool-finance/xpool-signer/internal/metrics"
	"github.com/xpool-finance/xpool-signer/internal/registry"
	"github.com/xpool-finance/xpool-signer/internal/token"
	"github.com/xpool-finance/xpool-signer/pkg/circuitbreaker"
	"github.com/xpool-finance/xpool-signer/pkg/crypto"
	"github.com/xpool-finance/xpool-signer/pkg/eip712"
	"github.com/xpool-finance/xpool-signer/pkg/logger"
	"github.com/xpool-finance/xpool-signer/pkg/signature"
)

// ErrNoSigner 未配置私钥
var ErrNoSigner = errors.New("signer private key is not configured")

// App 应用
type App struct {
	cfg    *config.Config
	domain eip712.Domain

	signer *signature.Signer

	// 代币
	caller    *chain.LazyCaller
	breaker   *circuitbreaker.CircuitBreaker
	redis     redis.UniversalClient
	tokens    *token.Registry
	converter *token.Converter

	// 登记表
	registryMu sync.Mutex
	registry   registry.Store
}

// New 创建应用
func New(cfg *config.Config) (*App, error) {
	app := &App{cfg: cfg}

	if err := app.initDomain(); err != nil {
		return nil, fmt.Errorf("failed to init domain: %w", err)
	}

	if err := app.initSigner(); err != nil {
		return nil, fmt.Errorf("failed to init signer: %w", err)
	}

	if err := app.initTokens(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to init tokens: %w", err)
	}

	return app, nil
}

// initDomain 从配置构造 EIP-712 域
func (a *App) initDomain() error {
	d := a.cfg.Signer.Domain
	if !common.IsHexAddress(d.VerifyingContract) {
		return fmt.Errorf("signer.domain.verifying_contract %q is not an address", d.VerifyingContract)
	}
	a.domain = eip712.Domain{
		Name:              d.Name,
		Version:           d.Version,
		ChainID:           big.NewInt(d.ChainID),
		VerifyingContract: common.HexToAddress(d.VerifyingContract),
	}
	// 域名可以留空，由请求自带域
	return nil
}

// initSigner 初始化签名器
func (a *App) initSigner() error {
	if a.cfg.Signer.PrivateKey == "" {
		logger.Debug("no private key configured, signing disabled")
		return nil
	}

	prim, err := crypto.Backend(a.cfg.Signer.Backend)
	if err != nil {
		return err
	}

	signer, err := signature.NewSignerFromHex(a.cfg.Signer.PrivateKey,
		signature.WithPrimitives(prim),
		signature.WithSignHook(metrics.RecordSignature),
	)
	if err != nil {
		return err
	}
	a.signer = signer

	logger.Info("signer loaded",
		zap.String("address", signer.Address().Hex()),
		zap.String("backend", signer.Backend()))
	return nil
}

// initTokens 初始化代币精度查询链路
func (a *App) initTokens() error {
	chainCfg := a.cfg.Chain

	a.breaker = circuitbreaker.New("rpc", &a.cfg.Breaker,
		circuitbreaker.WithStateChange(func(name string, from, to circuitbreaker.State) {
			metrics.SetBreakerState(name, int(to))
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		}),
	)

	if chainCfg.RPCURL != "" {
		a.caller = chain.NewLazyCaller(chainCfg.RPCURL, chainCfg.ChainID, chainCfg.CallTimeout)
	}

	predefined := make([]token.TokenInfo, 0, len(chainCfg.Tokens))
	for _, t := range chainCfg.Tokens {
		if !common.IsHexAddress(t.Address) {
			return fmt.Errorf("%w: %q is not an address", token.ErrInvalidTokenConfig, t.Address)
		}
		predefined = append(predefined, token.TokenInfo{
			Symbol:   t.Symbol,
			Address:  common.HexToAddress(t.Address),
			Decimals: t.Decimals,
		})
	}

	regCfg := &token.RegistryConfig{
		ChainID:     chainCfg.ChainID,
		Tokens:      predefined,
		CallTimeout: chainCfg.CallTimeout,
	}

	var err error
	// 避免把 nil 指针包装成非 nil 接口
	if a.caller != nil {
		a.tokens, err = token.NewRegistry(regCfg, a.caller, a.breaker)
	} else {
		a.tokens, err = token.NewRegistry(regCfg, nil, a.breaker)
	}
	if err != nil {
		return err
	}

	var provider token.DecimalsProvider = a.tokens
	if a.cfg.Redis.Enabled {
		a.redis = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    a.cfg.Redis.Addresses,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
			PoolSize: a.cfg.Redis.PoolSize,
		})
		cache := token.NewRedisCache(a.redis, a.tokens, chainCfg.ChainID, a.cfg.Redis.TTL)

		// 已知代币不经过 Redis
		provider = token.DecimalsFunc(func(ctx context.Context, addr common.Address) (uint8, error) {
			if _, ok := a.tokens.Lookup(addr); ok {
				return a.tokens.Decimals(ctx, addr)
			}
			return cache.Decimals(ctx, addr)
		})
	}

	a.converter = token.NewConverter(provider)
	return nil
}

// Config 返回配置
func (a *App) Config() *config.Config { return a.cfg }

// Domain 返回默认 EIP-712 域
func (a *App) Domain() eip712.Domain { return a.domain }

// Signer 返回签名器
func (a *App) Signer() (*signature.Signer, error) {
	if a.signer == nil {
		return nil, ErrNoSigner
	}
	return a.signer, nil
}

// Tokens 返回代币注册表
func (a *App) Tokens() *token.Registry { return a.tokens }

// Converter 返回金额转换器
func (a *App) Converter() *token.Converter { return a.converter }

// Registry 返回合约地址登记表，首次调用时打开
func (a *App) Registry() (registry.Store, error) {
	a.registryMu.Lock()
	defer a.registryMu.Unlock()

	if a.registry != nil {
		return a.registry, nil
	}
	store, err := registry.Open(&a.cfg.Registry)
	if err != nil {
		return nil, err
	}
	a.registry = store

	logger.Debug("registry opened",
		zap.String("driver", a.cfg.Registry.Driver),
		zap.String("network", a.cfg.Registry.Network))
	return store, nil
}

// Network 返回登记表使用的网络名
func (a *App) Network() string { return a.cfg.Registry.Network }

// Close 释放资源
func (a *App) Close() error {
	var errs []error

	a.registryMu.Lock()
	if a.registry != nil {
		if err := a.registry.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close registry: %w", err))
		}
		a.registry = nil
	}
	a.registryMu.Unlock()

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
		a.redis = nil
	}

	if a.caller != nil {
		a.caller.Close()
	}

	return errors.Join(errs...)
}
