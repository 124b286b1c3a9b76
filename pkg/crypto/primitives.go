package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// RawSignature 后端输出的原始 secp256k1 签名
// S 可能位于群阶上半区, 由调用方负责规范化
type RawSignature struct {
	R          *big.Int
	S          *big.Int
	RecoveryID byte
}

// Compact 返回 go-ethereum 使用的 65 字节 r || s || recoveryID
func (s RawSignature) Compact() []byte {
	out := make([]byte, 65)
	if s.R != nil {
		copy(out[:32], math.PaddedBigBytes(s.R, 32))
	}
	if s.S != nil {
		copy(out[32:64], math.PaddedBigBytes(s.S, 32))
	}
	out[64] = s.RecoveryID
	return out
}

// Primitives 签名器依赖的哈希与签名能力, 实现须并发安全
type Primitives interface {
	// Name 后端名称, 用于日志与指标
	Name() string
	Keccak256(data ...[]byte) []byte
	Sign(digest []byte, key *ecdsa.PrivateKey) (RawSignature, error)
	RecoverPublicKey(digest []byte, sig RawSignature) (*ecdsa.PublicKey, error)
}

// Backend 按配置名称返回后端
func Backend(name string) (Primitives, error) {
	switch name {
	case "", "ethereum":
		return Ethereum{}, nil
	case "decred":
		return Decred{}, nil
	default:
		return nil, fmt.Errorf("unknown crypto backend %q", name)
	}
}

// Ethereum 生产后端, 基于 go-ethereum crypto (cgo 可用时绑定 libsecp256k1)
type Ethereum struct{}

var _ Primitives = Ethereum{}

func (Ethereum) Name() string { return "ethereum" }

func (Ethereum) Keccak256(data ...[]byte) []byte {
	return ethcrypto.Keccak256(data...)
}

func (Ethereum) Sign(digest []byte, key *ecdsa.PrivateKey) (RawSignature, error) {
	if len(digest) != DigestLength {
		return RawSignature{}, fmt.Errorf("%w: got %d", ErrInvalidDigestLength, len(digest))
	}
	if err := ValidatePrivateKey(key); err != nil {
		return RawSignature{}, err
	}

	sig, err := ethcrypto.Sign(digest, key)
	if err != nil {
		return RawSignature{}, fmt.Errorf("secp256k1 sign: %w", err)
	}

	return RawSignature{
		R:          new(big.Int).SetBytes(sig[:32]),
		S:          new(big.Int).SetBytes(sig[32:64]),
		RecoveryID: sig[64],
	}, nil
}

func (Ethereum) RecoverPublicKey(digest []byte, sig RawSignature) (*ecdsa.PublicKey, error) {
	if err := checkRecoverInput(digest, sig); err != nil {
		return nil, err
	}

	pub, err := ethcrypto.SigToPub(digest, sig.Compact())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecoveryFailed, err)
	}
	return pub, nil
}

func checkRecoverInput(digest []byte, sig RawSignature) error {
	if len(digest) != DigestLength {
		return fmt.Errorf("%w: got %d", ErrInvalidDigestLength, len(digest))
	}
	if sig.RecoveryID > 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidRecoveryID, sig.RecoveryID)
	}
	if sig.R == nil || sig.S == nil || sig.R.Sign() <= 0 || sig.S.Sign() <= 0 ||
		sig.R.Cmp(secp256k1N) >= 0 || sig.S.Cmp(secp256k1N) >= 0 {
		return fmt.Errorf("%w: r or s out of range", ErrRecoveryFailed)
	}
	return nil
}
