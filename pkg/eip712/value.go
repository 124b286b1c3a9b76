package eip712

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Value 类型化消息值, 实现集合封闭: Int, Address, Bool, String, Bytes, Array, Message
type Value interface {
	valueKind() string
}

// Int uintN / intN 值, 编码时按字段类型检查范围
type Int struct {
	v *big.Int
}

// NewInt 复制 x, nil 视为 0
func NewInt(x *big.Int) Int {
	if x == nil {
		return Int{v: new(big.Int)}
	}
	return Int{v: new(big.Int).Set(x)}
}

func Uint64(u uint64) Int { return Int{v: new(big.Int).SetUint64(u)} }

func Int64(i int64) Int { return Int{v: big.NewInt(i)} }

// ParseInt 解析十进制或 0x hex 整数, 允许负号
func ParseInt(s string) (Int, error) {
	x, ok := parseBigInt(s)
	if !ok {
		return Int{}, fmt.Errorf("invalid integer %q", s)
	}
	return Int{v: x}, nil
}

// BigInt 返回副本
func (i Int) BigInt() *big.Int {
	if i.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(i.v)
}

func (i Int) String() string { return i.BigInt().String() }

// Address 20 字节地址
type Address common.Address

// HexAddress 不做校验, 外部输入请用 ParseAddress
func HexAddress(s string) Address { return Address(common.HexToAddress(s)) }

// ParseAddress 解析 0x 开头的 20 字节 hex 地址
func ParseAddress(s string) (Address, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return Address{}, fmt.Errorf("address %q must be 0x-prefixed", s)
	}
	if !common.IsHexAddress(s) {
		return Address{}, fmt.Errorf("invalid address %q", s)
	}
	return Address(common.HexToAddress(s)), nil
}

type Bool bool

// String 按原始字节哈希
type String string

// Bytes 用于 bytes 与 bytesN
type Bytes []byte

// Array T[] 或 T[k] 的元素
type Array []Value

// Message 结构值, 按字段名索引
type Message map[string]Value

func (Int) valueKind() string     { return "integer" }
func (Address) valueKind() string { return "address" }
func (Bool) valueKind() string    { return "bool" }
func (String) valueKind() string  { return "string" }
func (Bytes) valueKind() string   { return "bytes" }
func (Array) valueKind() string   { return "array" }
func (Message) valueKind() string { return "struct" }

func kindOf(v Value) string {
	if v == nil {
		return "nil"
	}
	return v.valueKind()
}

func parseBigInt(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	if s == "" {
		return nil, false
	}

	x := new(big.Int)
	var ok bool
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits := s[2:]
		if digits == "" || strings.ContainsAny(digits, "+-_") {
			return nil, false
		}
		_, ok = x.SetString(digits, 16)
	} else {
		for _, c := range s {
			if c < '0' || c > '9' {
				return nil, false
			}
		}
		_, ok = x.SetString(s, 10)
	}
	if !ok {
		return nil, false
	}
	if neg {
		x.Neg(x)
	}
	return x, true
}
