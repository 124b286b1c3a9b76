// Package decimal 在人类可读金额与整数最小单位之间做精确转换。
//
// 计算基于 shopspring/decimal (big.Int 系数 + 指数)，全程不经过浮点数。
package decimal

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// 常量定义
const (
	// MaxDecimals 支持的最大小数位数 (10^77 < 2^256)
	MaxDecimals = 77

	// NativeAsset 原生资产占位地址
	NativeAsset = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"
	// NativeDecimals 原生资产小数位数
	NativeDecimals = 18
)

// 错误定义
var (
	ErrInvalidAmount   = errors.New("invalid decimal amount")
	ErrInvalidDecimals = errors.New("invalid token decimals")
	ErrPrecision       = errors.New("amount exceeds token precision")
)

// PrecisionError 小数位数超过代币精度
type PrecisionError struct {
	Amount   string
	Decimals int32
	// Digits 去掉末尾 0 后的小数位数
	Digits int
}

func (e *PrecisionError) Error() string {
	return fmt.Sprintf("%s: %q has %d fractional digits, token allows %d",
		ErrPrecision, e.Amount, e.Digits, e.Decimals)
}

func (e *PrecisionError) Unwrap() error { return ErrPrecision }

// ToBaseUnits 将人类可读金额转换为最小单位
//
// 接受 "1"、"1.5"、".5"、"1." 形式；不接受符号、指数、空白和千位分隔符。
// 小数末尾的 0 不计入精度，"1.50" 在 decimals=1 时合法。
func ToBaseUnits(human string, decimals int32) (*big.Int, error) {
	if err := checkDecimals(decimals); err != nil {
		return nil, err
	}
	intPart, fracPart, ok := splitAmount(human)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, human)
	}

	significant := strings.TrimRight(fracPart, "0")
	if len(significant) > int(decimals) {
		return nil, &PrecisionError{Amount: human, Decimals: decimals, Digits: len(significant)}
	}

	normalized := intPart
	if normalized == "" {
		normalized = "0"
	}
	if significant != "" {
		normalized += "." + significant
	}
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, human, err)
	}

	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, &PrecisionError{Amount: human, Decimals: decimals, Digits: len(significant)}
	}
	return shifted.BigInt(), nil
}

// ToHumanUnits 将最小单位转换为人类可读金额，去掉小数末尾的 0
func ToHumanUnits(base *big.Int, decimals int32) (string, error) {
	if err := checkDecimals(decimals); err != nil {
		return "", err
	}
	if base == nil {
		return "", fmt.Errorf("%w: nil base amount", ErrInvalidAmount)
	}
	if base.Sign() < 0 {
		return "", fmt.Errorf("%w: negative base amount %s", ErrInvalidAmount, base)
	}
	return decimal.NewFromBigInt(base, -decimals).String(), nil
}

// ParseBaseUnits 解析十进制整数形式的最小单位金额
func ParseBaseUnits(s string) (*big.Int, error) {
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return nil, fmt.Errorf("%w: base amount %q", ErrInvalidAmount, s)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: base amount %q", ErrInvalidAmount, s)
	}
	return n, nil
}

func checkDecimals(decimals int32) error {
	if decimals < 0 || decimals > MaxDecimals {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidDecimals, decimals, MaxDecimals)
	}
	return nil
}

// splitAmount 按 digits ["." digits] | "." digits | digits "." 语法拆分金额
func splitAmount(s string) (intPart, fracPart string, ok bool) {
	intPart, fracPart, hasDot := strings.Cut(s, ".")
	if !isDigits(intPart) || !isDigits(fracPart) {
		return "", "", false
	}
	if intPart == "" && fracPart == "" {
		return "", "", false
	}
	if !hasDot && intPart == "" {
		return "", "", false
	}
	return intPart, fracPart, true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Amount 带精度的人类可读金额
type Amount struct {
	Human    string
	Decimals int32
}

// BaseUnits 转换为最小单位
func (a Amount) BaseUnits() (*big.Int, error) {
	return ToBaseUnits(a.Human, a.Decimals)
}

func (a Amount) String() string { return a.Human }

// AmountFromBaseUnits 从最小单位创建
func AmountFromBaseUnits(base *big.Int, decimals int32) (Amount, error) {
	human, err := ToHumanUnits(base, decimals)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Human: human, Decimals: decimals}, nil
}
