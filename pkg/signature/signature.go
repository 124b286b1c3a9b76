// Package signature 使用 secp256k1 签名 32 字节摘要, 并编码为以太坊钱包通用的
// 65 字节 r || s || v 格式
//
// 生成与接受的签名均为规范形式: s 位于群阶下半区
package signature

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/xpool-finance/xpool-signer/pkg/crypto"
)

// Length 编码后签名长度
const Length = 65

// recoveryOffset 编码时 v 的偏移
const recoveryOffset = 27

var (
	// ErrMalformedSignature 匹配所有解码与校验错误
	ErrMalformedSignature = errors.New("malformed signature")

	ErrInvalidSignatureLength = fmt.Errorf("%w: invalid length", ErrMalformedSignature)
	ErrInvalidRecoveryID      = fmt.Errorf("%w: invalid recovery id", ErrMalformedSignature)
	ErrScalarOutOfRange       = fmt.Errorf("%w: r or s out of range", ErrMalformedSignature)
	ErrNonCanonicalS          = fmt.Errorf("%w: s in upper half of curve order", ErrMalformedSignature)

	// ErrInvalidPrivateKey 私钥为 nil 或标量不在 [1, n)
	ErrInvalidPrivateKey = crypto.ErrInvalidPrivateKey

	// ErrRecoveredKeyMismatch 新签名恢复出的公钥与签名私钥不符
	ErrRecoveredKeyMismatch = errors.New("recovered key does not match signer")
)

// Signature 规范 secp256k1 签名, V 为恢复位 0 或 1
type Signature struct {
	R *big.Int
	S *big.Int
	V byte
}

// Validate r、s 须位于 [1, n), s <= n/2, V 为 0 或 1
func (sig Signature) Validate() error {
	n := crypto.CurveOrder()
	if sig.R == nil || sig.S == nil ||
		sig.R.Sign() <= 0 || sig.R.Cmp(n) >= 0 ||
		sig.S.Sign() <= 0 || sig.S.Cmp(n) >= 0 {
		return ErrScalarOutOfRange
	}
	if sig.S.Cmp(crypto.HalfOrder()) > 0 {
		return ErrNonCanonicalS
	}
	if sig.V > 1 {
		return fmt.Errorf("%w: %d", ErrInvalidRecoveryID, sig.V)
	}
	return nil
}

// Encode 编码为 r(32) || s(32) || v+27
func Encode(sig Signature) [Length]byte {
	var out [Length]byte
	math.ReadBits(sig.R, out[0:32])
	math.ReadBits(sig.S, out[32:64])
	out[64] = sig.V + recoveryOffset
	return out
}

// Decode 解析 65 字节签名, 末字节须为 27 或 28 且 s 须为规范形式
func Decode(b []byte) (Signature, error) {
	if len(b) != Length {
		return Signature{}, fmt.Errorf("%w: got %d bytes", ErrInvalidSignatureLength, len(b))
	}
	v := b[64]
	if v != recoveryOffset && v != recoveryOffset+1 {
		return Signature{}, fmt.Errorf("%w: %d", ErrInvalidRecoveryID, v)
	}
	sig := Signature{
		R: new(big.Int).SetBytes(b[0:32]),
		S: new(big.Int).SetBytes(b[32:64]),
		V: v - recoveryOffset,
	}
	if err := sig.Validate(); err != nil {
		return Signature{}, err
	}
	return sig, nil
}

func (sig Signature) Bytes() []byte {
	enc := Encode(sig)
	return enc[:]
}

// Hex 返回 0x 开头的 132 字符编码
func (sig Signature) Hex() string {
	return hexutil.Encode(sig.Bytes())
}

func (sig Signature) String() string { return sig.Hex() }

// RSV 拆分为链上 permit 调用所需的 r, s, v
func (sig Signature) RSV() (r [32]byte, s [32]byte, v uint8) {
	enc := Encode(sig)
	copy(r[:], enc[0:32])
	copy(s[:], enc[32:64])
	return r, s, enc[64]
}

// ParseHex 解析 hex 签名, 0x 前缀可选
func ParseHex(s string) (Signature, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return Decode(b)
}

func (sig Signature) raw() crypto.RawSignature {
	return crypto.RawSignature{R: sig.R, S: sig.S, RecoveryID: sig.V}
}

// normalize 将上半区 s 折叠到下半区并翻转恢复位
func normalize(raw crypto.RawSignature) (Signature, bool) {
	sig := Signature{R: new(big.Int).Set(raw.R), S: new(big.Int).Set(raw.S), V: raw.RecoveryID}
	if sig.S.Cmp(crypto.HalfOrder()) <= 0 {
		return sig, false
	}
	sig.S.Sub(crypto.CurveOrder(), sig.S)
	sig.V ^= 1
	return sig, true
}
