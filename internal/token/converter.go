package token

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/xpool-finance/xpool-signer/internal/metrics"
	"github.com/xpool-finance/xpool-signer/pkg/decimal"
	"github.com/xpool-finance/xpool-signer/pkg/logger"
)

// Converter 按代币精度转换金额
type Converter struct {
	provider DecimalsProvider
}

// NewConverter 创建转换器
func NewConverter(provider DecimalsProvider) *Converter {
	return &Converter{provider: provider}
}

// Decimals 获取代币精度, 原生资产不经过 provider
func (c *Converter) Decimals(ctx context.Context, token common.Address) (int32, error) {
	if IsNativeToken(token) {
		return decimal.NativeDecimals, nil
	}
	d, err := c.provider.Decimals(ctx, token)
	if err != nil {
		return 0, err
	}
	return int32(d), nil
}

// ConvertToCurrencyDecimals 人类可读金额 -> 最小单位
func (c *Converter) ConvertToCurrencyDecimals(ctx context.Context, token common.Address, amount string) (*big.Int, error) {
	d, err := c.Decimals(ctx, token)
	if err != nil {
		metrics.RecordConversion(metrics.DirectionToBase, metrics.ConversionLookupFailed)
		return nil, err
	}

	base, err := decimal.ToBaseUnits(amount, d)
	metrics.RecordConversion(metrics.DirectionToBase, metrics.ConversionStatus(err))
	if err != nil {
		logger.WithContext(ctx).Debug("amount conversion rejected",
			zap.String("token", token.Hex()),
			zap.String("amount", amount),
			zap.Int32("decimals", d),
			zap.Error(err))
		return nil, err
	}
	return base, nil
}

// ConvertToCurrencyUnits 最小单位 -> 人类可读金额
func (c *Converter) ConvertToCurrencyUnits(ctx context.Context, token common.Address, base *big.Int) (string, error) {
	d, err := c.Decimals(ctx, token)
	if err != nil {
		metrics.RecordConversion(metrics.DirectionToHuman, metrics.ConversionLookupFailed)
		return "", err
	}

	human, err := decimal.ToHumanUnits(base, d)
	metrics.RecordConversion(metrics.DirectionToHuman, metrics.ConversionStatus(err))
	if err != nil {
		return "", err
	}
	return human, nil
}
