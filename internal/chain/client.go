// Package chain 提供只读的链上调用客户端
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/xpool-finance/xpool-signer/pkg/logger"
)

var (
	ErrNoRPCURL       = errors.New("rpc url is not configured")
	ErrInvalidChainID = errors.New("invalid chain id")
)

// ChainIDError 远端链 ID 与配置不一致
type ChainIDError struct {
	Expected int64
	Actual   *big.Int
}

func (e *ChainIDError) Error() string {
	return fmt.Sprintf("invalid chain id: expected %d, rpc reports %s", e.Expected, e.Actual)
}

func (e *ChainIDError) Unwrap() error { return ErrInvalidChainID }

// Client 链客户端
type Client struct {
	url     string
	chainID int64
	eth     *ethclient.Client
}

var _ bind.ContractCaller = (*Client)(nil)

// Dial 连接 RPC 并校验链 ID
func Dial(ctx context.Context, rpcURL string, expectedChainID int64) (*Client, error) {
	if rpcURL == "" {
		return nil, ErrNoRPCURL
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}

	// 检查连接
	id, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("query chain id from %s: %w", rpcURL, err)
	}
	if !id.IsInt64() || id.Int64() != expectedChainID {
		eth.Close()
		return nil, &ChainIDError{Expected: expectedChainID, Actual: id}
	}

	logger.Debug("connected to rpc",
		zap.String("url", rpcURL),
		zap.Int64("chain_id", expectedChainID))

	return &Client{url: rpcURL, chainID: expectedChainID, eth: eth}, nil
}

// ChainID 返回链 ID
func (c *Client) ChainID() int64 { return c.chainID }

// CodeAt 获取合约代码
func (c *Client) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return c.eth.CodeAt(ctx, contract, blockNumber)
}

// CallContract 执行只读调用
func (c *Client) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.eth.CallContract(ctx, call, blockNumber)
}

// Close 关闭连接
func (c *Client) Close() { c.eth.Close() }

// LazyCaller 首次调用时才连接 RPC，连接失败时下次调用重试
type LazyCaller struct {
	mu          sync.Mutex
	url         string
	chainID     int64
	dialTimeout time.Duration
	client      *Client
}

var _ bind.ContractCaller = (*LazyCaller)(nil)

// NewLazyCaller 创建延迟连接的调用器
func NewLazyCaller(rpcURL string, chainID int64, dialTimeout time.Duration) *LazyCaller {
	return &LazyCaller{url: rpcURL, chainID: chainID, dialTimeout: dialTimeout}
}

func (l *LazyCaller) get(ctx context.Context) (*Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.client != nil {
		return l.client, nil
	}

	if l.dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.dialTimeout)
		defer cancel()
	}
	client, err := Dial(ctx, l.url, l.chainID)
	if err != nil {
		return nil, err
	}
	l.client = client
	return client, nil
}

// Connected 是否已建立连接
func (l *LazyCaller) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.client != nil
}

// CodeAt 获取合约代码
func (l *LazyCaller) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	client, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return client.CodeAt(ctx, contract, blockNumber)
}

// CallContract 执行只读调用
func (l *LazyCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	client, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return client.CallContract(ctx, call, blockNumber)
}

// Close 关闭已建立的连接
func (l *LazyCaller) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client != nil {
		l.client.Close()
		l.client = nil
	}
}
