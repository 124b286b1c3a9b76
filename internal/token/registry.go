package token

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/xpool-finance/xpool-signer/internal/metrics"
	"github.com/xpool-finance/xpool-signer/pkg/circuitbreaker"
	"github.com/xpool-finance/xpool-signer/pkg/decimal"
	"github.com/xpool-finance/xpool-signer/pkg/logger"
)

// ERC20ABI 注册表用到的 ERC20 ABI 片段
const ERC20ABI = `[
	{
		"type": "function",
		"name": "symbol",
		"inputs": [],
		"outputs": [{"name": "", "type": "string"}],
		"stateMutability": "view"
	},
	{
		"type": "function",
		"name": "decimals",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint8"}],
		"stateMutability": "view"
	}
]`

// RegistryConfig 代币注册表配置
type RegistryConfig struct {
	ChainID int64
	// 预定义代币, 本地直接返回
	Tokens []TokenInfo
	// 单次 decimals() 调用超时, 0 表示不额外限制
	CallTimeout time.Duration
}

// Registry 代币注册表
// 精度查询顺序: 预定义代币 -> 已学习结果 -> 熔断保护的 ERC20 decimals() 调用
type Registry struct {
	mu sync.RWMutex

	chainID     int64
	callTimeout time.Duration

	// 预定义 (含原生资产)
	static map[common.Address]*TokenInfo
	// 链上学习结果
	learned map[common.Address]*TokenInfo

	erc20ABI abi.ABI
	caller   bind.ContractCaller
	breaker  *circuitbreaker.CircuitBreaker
}

var _ DecimalsProvider = (*Registry)(nil)

// NewRegistry 创建代币注册表
// caller 为 nil 时仅能查询预定义代币, breaker 可为 nil
func NewRegistry(cfg *RegistryConfig, caller bind.ContractCaller, breaker *circuitbreaker.CircuitBreaker) (*Registry, error) {
	parsed, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, err
	}

	r := &Registry{
		chainID:     cfg.ChainID,
		callTimeout: cfg.CallTimeout,
		static:      make(map[common.Address]*TokenInfo),
		learned:     make(map[common.Address]*TokenInfo),
		erc20ABI:    parsed,
		caller:      caller,
		breaker:     breaker,
	}

	r.static[NativeToken()] = &TokenInfo{
		Symbol:   "ETH",
		Address:  NativeToken(),
		Decimals: decimal.NativeDecimals,
		ChainID:  cfg.ChainID,
		IsNative: true,
	}

	for _, t := range cfg.Tokens {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register 注册预定义代币
func (r *Registry) Register(info TokenInfo) error {
	if info.Address == (common.Address{}) {
		return fmt.Errorf("%w: token %q has no address", ErrInvalidTokenConfig, info.Symbol)
	}
	if IsNativeToken(info.Address) {
		return fmt.Errorf("%w: native asset is built in", ErrInvalidTokenConfig)
	}
	if info.Decimals > decimal.MaxDecimals {
		return fmt.Errorf("%w: token %s has %d decimals", ErrInvalidTokenConfig, info.Address.Hex(), info.Decimals)
	}

	info.ChainID = r.chainID
	info.Symbol = strings.ToUpper(info.Symbol)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.static[info.Address] = &info
	return nil
}

// Lookup 查询已知代币信息
func (r *Registry) Lookup(address common.Address) (TokenInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if info, ok := r.static[address]; ok {
		return *info, true
	}
	if info, ok := r.learned[address]; ok {
		return *info, true
	}
	return TokenInfo{}, false
}

// Tokens 返回全部已知代币, 按地址排序
func (r *Registry) Tokens() []TokenInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tokens := make([]TokenInfo, 0, len(r.static)+len(r.learned))
	for _, info := range r.static {
		tokens = append(tokens, *info)
	}
	for _, info := range r.learned {
		tokens = append(tokens, *info)
	}
	sort.Slice(tokens, func(i, j int) bool {
		return strings.Compare(tokens[i].Address.Hex(), tokens[j].Address.Hex()) < 0
	})
	return tokens
}

// Decimals 获取代币精度
func (r *Registry) Decimals(ctx context.Context, address common.Address) (uint8, error) {
	r.mu.RLock()
	info, static := r.static[address]
	if !static {
		info = r.learned[address]
	}
	r.mu.RUnlock()

	if info != nil {
		source := "memory"
		switch {
		case info.IsNative:
			source = "native"
		case static:
			source = "static"
		}
		metrics.RecordDecimalsLookup(source, nil, 0)
		return info.Decimals, nil
	}

	start := time.Now()
	decimals, err := r.queryDecimals(ctx, address)
	metrics.RecordDecimalsLookup("chain", err, time.Since(start))
	if err != nil {
		logger.WithContext(ctx).Warn("decimals lookup failed",
			zap.String("token", address.Hex()),
			zap.Int64("chain_id", r.chainID),
			zap.Error(err))
		return 0, err
	}

	r.mu.Lock()
	r.learned[address] = &TokenInfo{Address: address, Decimals: decimals, ChainID: r.chainID}
	r.mu.Unlock()

	logger.WithContext(ctx).Debug("decimals resolved on chain",
		zap.String("token", address.Hex()),
		zap.Uint8("decimals", decimals),
		zap.Duration("elapsed", time.Since(start)))
	return decimals, nil
}

// queryDecimals 链上调用 decimals()
func (r *Registry) queryDecimals(ctx context.Context, address common.Address) (uint8, error) {
	if r.caller == nil {
		return 0, fmt.Errorf("%w: token %s is not predefined", ErrNoCaller, address.Hex())
	}

	data, err := r.erc20ABI.Pack("decimals")
	if err != nil {
		return 0, err
	}
	msg := ethereum.CallMsg{To: &address, Data: data}

	var decimals uint8
	call := func(ctx context.Context) error {
		if r.callTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.callTimeout)
			defer cancel()
		}

		result, err := r.caller.CallContract(ctx, msg, nil)
		if err != nil {
			return fmt.Errorf("call decimals() on %s: %w", address.Hex(), err)
		}
		if len(result) == 0 {
			return fmt.Errorf("%w: %s returned no data", ErrTokenNotFound, address.Hex())
		}
		if err := r.erc20ABI.UnpackIntoInterface(&decimals, "decimals", result); err != nil {
			return fmt.Errorf("decode decimals() of %s: %w", address.Hex(), err)
		}
		return nil
	}

	if r.breaker != nil {
		err = r.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return 0, err
	}
	return decimals, nil
}

// Symbol 获取代币符号, 未知代币调用链上 symbol()
func (r *Registry) Symbol(ctx context.Context, address common.Address) (string, error) {
	if info, ok := r.Lookup(address); ok && info.Symbol != "" {
		return info.Symbol, nil
	}
	if r.caller == nil {
		return "", ErrNoCaller
	}

	data, err := r.erc20ABI.Pack("symbol")
	if err != nil {
		return "", err
	}
	result, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &address, Data: data}, nil)
	if err != nil {
		return "", fmt.Errorf("call symbol() on %s: %w", address.Hex(), err)
	}

	var symbol string
	if err := r.erc20ABI.UnpackIntoInterface(&symbol, "symbol", result); err != nil {
		return "", fmt.Errorf("decode symbol() of %s: %w", address.Hex(), err)
	}
	return symbol, nil
}
