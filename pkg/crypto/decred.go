package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	decredecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/ethereum/go-ethereum/common/math"
)

// compactSigMagicOffset decred 紧凑签名头字节中恢复码的偏移
const compactSigMagicOffset = 27

// Decred 纯 Go 后端, 基于 decred secp256k1, 适用于禁用 cgo 的环境
// nonce 按 RFC 6979 生成
type Decred struct{}

var _ Primitives = Decred{}

func (Decred) Name() string { return "decred" }

func (Decred) Keccak256(data ...[]byte) []byte {
	return Keccak256(data...)
}

func (Decred) Sign(digest []byte, key *ecdsa.PrivateKey) (RawSignature, error) {
	if len(digest) != DigestLength {
		return RawSignature{}, fmt.Errorf("%w: got %d", ErrInvalidDigestLength, len(digest))
	}
	if err := ValidatePrivateKey(key); err != nil {
		return RawSignature{}, err
	}

	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(math.PaddedBigBytes(key.D, 32)); overflow || scalar.IsZero() {
		return RawSignature{}, fmt.Errorf("%w: scalar out of range", ErrInvalidPrivateKey)
	}
	priv := secp256k1.NewPrivateKey(&scalar)
	defer priv.Zero()

	// header || R || S, 非压缩公钥 header = 27 + 恢复码
	compact := decredecdsa.SignCompact(priv, digest, false)
	code := compact[0] - compactSigMagicOffset
	if code > 1 {
		return RawSignature{}, fmt.Errorf("%w: got %d", ErrInvalidRecoveryID, code)
	}

	return RawSignature{
		R:          new(big.Int).SetBytes(compact[1:33]),
		S:          new(big.Int).SetBytes(compact[33:65]),
		RecoveryID: code,
	}, nil
}

func (Decred) RecoverPublicKey(digest []byte, sig RawSignature) (*ecdsa.PublicKey, error) {
	if err := checkRecoverInput(digest, sig); err != nil {
		return nil, err
	}

	compact := make([]byte, 65)
	compact[0] = compactSigMagicOffset + sig.RecoveryID
	copy(compact[1:33], math.PaddedBigBytes(sig.R, 32))
	copy(compact[33:65], math.PaddedBigBytes(sig.S, 32))

	pub, _, err := decredecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecoveryFailed, err)
	}
	return pub.ToECDSA(), nil
}
