// Package token 查询 ERC20 精度并按代币转换金额
package token

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xpool-finance/xpool-signer/pkg/decimal"
)

// 代币错误
var (
	ErrTokenNotFound      = errors.New("token not found")
	ErrInvalidTokenConfig = errors.New("invalid token configuration")
	ErrNoCaller           = errors.New("no contract caller configured")
)

// DecimalsProvider 代币精度提供者
type DecimalsProvider interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
}

// DecimalsFunc 函数适配为 DecimalsProvider
type DecimalsFunc func(ctx context.Context, token common.Address) (uint8, error)

func (f DecimalsFunc) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	return f(ctx, token)
}

// TokenInfo 代币信息
type TokenInfo struct {
	Symbol   string         `json:"symbol"`
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
	ChainID  int64          `json:"chain_id"`
	IsNative bool           `json:"is_native"`
}

var nativeToken = common.HexToAddress(decimal.NativeAsset)

// NativeToken 原生资产占位地址
func NativeToken() common.Address { return nativeToken }

// IsNativeToken 是否为原生资产
func IsNativeToken(address common.Address) bool { return address == nativeToken }
