// Package eip712 计算 EIP-712 结构化数据摘要
//
// digest = keccak256(0x19 0x01 || domainSeparator || hashStruct(message))
// 消息由封闭的 Value 集合构成, 哈希前先按类型 schema 校验, 出错时不返回部分结果
package eip712

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/xpool-finance/xpool-signer/pkg/crypto"
)

// Hasher 提供 keccak-256, crypto.Primitives 满足该接口
type Hasher interface {
	Keccak256(data ...[]byte) []byte
}

// HasherFunc 函数适配为 Hasher
type HasherFunc func(data ...[]byte) []byte

func (f HasherFunc) Keccak256(data ...[]byte) []byte { return f(data...) }

// Encoder 使用指定 keccak 实现计算结构化数据哈希, 须通过 NewEncoder 创建
type Encoder struct {
	hasher Hasher
}

// NewEncoder 创建编码器, h 为 nil 时使用默认 keccak
func NewEncoder(h Hasher) *Encoder {
	if h == nil {
		h = HasherFunc(crypto.Keccak256)
	}
	return &Encoder{hasher: h}
}

var defaultEncoder = NewEncoder(nil)

var domainTypes = Types{DomainTypeName: DomainFields()}

// TypeHash 计算 keccak256(EncodeType(types, primaryType))
func (e *Encoder) TypeHash(types Types, primaryType string) (common.Hash, error) {
	encoded, err := EncodeType(types, primaryType)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(e.hasher.Keccak256([]byte(encoded))), nil
}

// HashStruct 计算 keccak256(typeHash || enc(field1) || ...)
func (e *Encoder) HashStruct(types Types, primaryType string, msg Message) (common.Hash, error) {
	if err := types.Validate(); err != nil {
		return common.Hash{}, err
	}
	if _, ok := types[primaryType]; !ok {
		return common.Hash{}, encodingErr(ErrUnknownType, primaryType, "primary type is not declared")
	}
	h, err := e.hashStruct(types, primaryType, msg, primaryType)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(h), nil
}

// DomainSeparator 校验域并计算 hashStruct(EIP712Domain, d)
func (e *Encoder) DomainSeparator(d Domain) (common.Hash, error) {
	if err := d.Validate(); err != nil {
		return common.Hash{}, err
	}
	h, err := e.hashStruct(domainTypes, DomainTypeName, d.Message(), DomainTypeName)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(h), nil
}

// Digest 计算待签名的 32 字节摘要
func (e *Encoder) Digest(d Domain, types Types, primaryType string, msg Message) (common.Hash, error) {
	separator, err := e.DomainSeparator(d)
	if err != nil {
		return common.Hash{}, err
	}
	structHash, err := e.HashStruct(types, primaryType, msg)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(e.hasher.Keccak256([]byte{0x19, 0x01}, separator[:], structHash[:])), nil
}

func (e *Encoder) hashStruct(types Types, name string, msg Message, path string) ([]byte, error) {
	fields := types[name]

	if extra := extraKeys(fields, msg); len(extra) > 0 {
		return nil, encodingErr(ErrTypeMismatch, path, "unexpected fields %v for %s", extra, name)
	}

	typeHash := e.hasher.Keccak256([]byte(types.encodeType(name)))
	encoded := make([]byte, 0, 32*(len(fields)+1))
	encoded = append(encoded, typeHash...)

	for _, f := range fields {
		fieldPath := path + "." + f.Name
		v, ok := msg[f.Name]
		if !ok {
			return nil, encodingErr(ErrMissingField, fieldPath, "field %q of %s is not set", f.Name, name)
		}
		ft, _, _ := parseType(types, f.Type)
		word, err := e.encodeValue(types, ft, v, fieldPath)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, word...)
	}
	return e.hasher.Keccak256(encoded), nil
}

func (e *Encoder) encodeValue(types Types, ft *fieldType, v Value, path string) ([]byte, error) {
	mismatch := func(format string, args ...any) error {
		return encodingErr(ErrTypeMismatch, path, format, args...)
	}

	switch ft.kind {
	case kindUint:
		x, ok := v.(Int)
		if !ok {
			return nil, mismatch("want %s, got %s", ft.raw, kindOf(v))
		}
		n := x.BigInt()
		if n.Sign() < 0 || n.BitLen() > ft.size {
			return nil, mismatch("%s out of range for %s", n, ft.raw)
		}
		return math.PaddedBigBytes(n, 32), nil

	case kindInt:
		x, ok := v.(Int)
		if !ok {
			return nil, mismatch("want %s, got %s", ft.raw, kindOf(v))
		}
		n := x.BigInt()
		if !fitsSigned(n, ft.size) {
			return nil, mismatch("%s out of range for %s", n, ft.raw)
		}
		return math.U256Bytes(n), nil

	case kindAddress:
		a, ok := v.(Address)
		if !ok {
			return nil, mismatch("want address, got %s", kindOf(v))
		}
		return common.LeftPadBytes(a[:], 32), nil

	case kindBool:
		b, ok := v.(Bool)
		if !ok {
			return nil, mismatch("want bool, got %s", kindOf(v))
		}
		word := make([]byte, 32)
		if b {
			word[31] = 1
		}
		return word, nil

	case kindString:
		s, ok := v.(String)
		if !ok {
			return nil, mismatch("want string, got %s", kindOf(v))
		}
		return e.hasher.Keccak256([]byte(s)), nil

	case kindBytes:
		b, ok := v.(Bytes)
		if !ok {
			return nil, mismatch("want bytes, got %s", kindOf(v))
		}
		return e.hasher.Keccak256(b), nil

	case kindFixedBytes:
		b, ok := v.(Bytes)
		if !ok {
			return nil, mismatch("want %s, got %s", ft.raw, kindOf(v))
		}
		if len(b) != ft.size {
			return nil, mismatch("%s needs %d bytes, got %d", ft.raw, ft.size, len(b))
		}
		return common.RightPadBytes(b, 32), nil

	case kindArray:
		arr, ok := v.(Array)
		if !ok {
			return nil, mismatch("want %s, got %s", ft.raw, kindOf(v))
		}
		if ft.length >= 0 && len(arr) != ft.length {
			return nil, mismatch("%s needs %d elements, got %d", ft.raw, ft.length, len(arr))
		}
		encoded := make([]byte, 0, 32*len(arr))
		for i, elem := range arr {
			word, err := e.encodeValue(types, ft.elem, elem, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			encoded = append(encoded, word...)
		}
		return e.hasher.Keccak256(encoded), nil

	case kindStruct:
		m, ok := v.(Message)
		if !ok {
			return nil, mismatch("want %s, got %s", ft.name, kindOf(v))
		}
		return e.hashStruct(types, ft.name, m, path)
	}
	return nil, encodingErr(ErrUnknownType, path, "unsupported type %q", ft.raw)
}

func fitsSigned(n *big.Int, bits int) bool {
	limit := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	if n.Cmp(limit) >= 0 {
		return false
	}
	return n.Cmp(limit.Neg(limit)) >= 0
}

func extraKeys(fields []Field, msg Message) []string {
	declared := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		declared[f.Name] = struct{}{}
	}
	var extra []string
	for k := range msg {
		if _, ok := declared[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return extra
}

// TypeHash 使用默认编码器
func TypeHash(types Types, primaryType string) (common.Hash, error) {
	return defaultEncoder.TypeHash(types, primaryType)
}

// HashStruct 使用默认编码器
func HashStruct(types Types, primaryType string, msg Message) (common.Hash, error) {
	return defaultEncoder.HashStruct(types, primaryType, msg)
}

// DomainSeparator 使用默认编码器
func DomainSeparator(d Domain) (common.Hash, error) {
	return defaultEncoder.DomainSeparator(d)
}

// Digest 使用默认编码器
func Digest(d Domain, types Types, primaryType string, msg Message) (common.Hash, error) {
	return defaultEncoder.Digest(d, types, primaryType, msg)
}
