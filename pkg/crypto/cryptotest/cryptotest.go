// Package cryptotest 提供测试用的确定性 crypto.Primitives 替身
package cryptotest

import (
	"crypto/ecdsa"
	"math/big"
	"sync/atomic"

	"github.com/xpool-finance/xpool-signer/pkg/crypto"
)

// HighS 包装一个后端, 总是输出上半区 S: 低 S 签名被替换为其延展形式 (n-s, v^1)
// 延展签名对同一私钥同样有效, 规范化后应得到原签名
type HighS struct {
	Inner crypto.Primitives

	signs atomic.Int64
}

var _ crypto.Primitives = (*HighS)(nil)

// NewHighS 包装 inner, 为 nil 时使用 Ethereum 后端
func NewHighS(inner crypto.Primitives) *HighS {
	if inner == nil {
		inner = crypto.Ethereum{}
	}
	return &HighS{Inner: inner}
}

func (h *HighS) Name() string { return "high-s(" + h.Inner.Name() + ")" }

func (h *HighS) Keccak256(data ...[]byte) []byte {
	return h.Inner.Keccak256(data...)
}

func (h *HighS) Sign(digest []byte, key *ecdsa.PrivateKey) (crypto.RawSignature, error) {
	raw, err := h.Inner.Sign(digest, key)
	if err != nil {
		return crypto.RawSignature{}, err
	}
	h.signs.Add(1)
	if raw.S.Cmp(crypto.HalfOrder()) <= 0 {
		raw = Malleate(raw)
	}
	return raw, nil
}

func (h *HighS) RecoverPublicKey(digest []byte, sig crypto.RawSignature) (*ecdsa.PublicKey, error) {
	return h.Inner.RecoverPublicKey(digest, sig)
}

// Signs 返回已生成的签名数
func (h *HighS) Signs() int64 {
	return h.signs.Load()
}

// Malleate 返回 sig 的另一有效编码: s' = n - s, 恢复位取反
func Malleate(sig crypto.RawSignature) crypto.RawSignature {
	return crypto.RawSignature{
		R:          new(big.Int).Set(sig.R),
		S:          new(big.Int).Sub(crypto.CurveOrder(), sig.S),
		RecoveryID: sig.RecoveryID ^ 1,
	}
}
