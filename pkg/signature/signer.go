package signature

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xpool-finance/xpool-signer/pkg/crypto"
	"github.com/xpool-finance/xpool-signer/pkg/eip712"
)

// Signer 持有私钥并签名摘要
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	prim    crypto.Primitives
	encoder *eip712.Encoder
	onSign  func(backend string, normalized bool)
}

// Option 签名器选项
type Option func(*Signer)

// WithPrimitives 指定密码学后端, 默认 crypto.Ethereum
func WithPrimitives(p crypto.Primitives) Option {
	return func(s *Signer) {
		if p != nil {
			s.prim = p
		}
	}
}

// WithSignHook 每次签名成功后回调 fn
func WithSignHook(fn func(backend string, normalized bool)) Option {
	return func(s *Signer) {
		s.onSign = fn
	}
}

// NewSigner 校验私钥并创建签名器, 曲线与公钥总是由 D 重建
func NewSigner(key *ecdsa.PrivateKey, opts ...Option) (*Signer, error) {
	key, err := crypto.NormalizePrivateKey(key)
	if err != nil {
		return nil, err
	}
	s := &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(&key.PublicKey),
		prim:    crypto.Ethereum{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.encoder = eip712.NewEncoder(s.prim)
	return s, nil
}

// NewSignerFromHex 由 32 字节 hex 私钥创建签名器
func NewSignerFromHex(hexKey string, opts ...Option) (*Signer, error) {
	key, err := crypto.PrivateKeyFromHex(hexKey)
	if err != nil {
		return nil, err
	}
	return NewSigner(key, opts...)
}

// Address 签名者地址
func (s *Signer) Address() common.Address { return s.address }

// Backend 当前后端名称
func (s *Signer) Backend() string { return s.prim.Name() }

// Encoder 绑定当前后端的结构化数据编码器
func (s *Signer) Encoder() *eip712.Encoder { return s.encoder }

// Sign 签名 32 字节摘要, 结果满足 s <= n/2 且可恢复出签名者公钥
func (s *Signer) Sign(digest []byte) (Signature, error) {
	if len(digest) != crypto.DigestLength {
		return Signature{}, fmt.Errorf("%w: got %d bytes", crypto.ErrInvalidDigestLength, len(digest))
	}

	raw, err := s.prim.Sign(digest, s.key)
	if err != nil {
		return Signature{}, fmt.Errorf("sign digest: %w", err)
	}
	if raw.RecoveryID > 1 {
		return Signature{}, fmt.Errorf("%w: backend returned %d", ErrInvalidRecoveryID, raw.RecoveryID)
	}

	sig, normalized := normalize(raw)
	if err := sig.Validate(); err != nil {
		return Signature{}, err
	}

	pub, err := s.prim.RecoverPublicKey(digest, sig.raw())
	if err != nil {
		return Signature{}, fmt.Errorf("recover own signature: %w", err)
	}
	if !crypto.PublicKeysEqual(pub, &s.key.PublicKey) {
		return Signature{}, ErrRecoveredKeyMismatch
	}

	if s.onSign != nil {
		s.onSign(s.prim.Name(), normalized)
	}
	return sig, nil
}

// SignDigestOf 计算结构化数据摘要并签名
func (s *Signer) SignDigestOf(domain eip712.Domain, types eip712.Types, primaryType string, msg eip712.Message) (Signature, common.Hash, error) {
	digest, err := s.encoder.Digest(domain, types, primaryType, msg)
	if err != nil {
		return Signature{}, common.Hash{}, err
	}
	sig, err := s.Sign(digest[:])
	if err != nil {
		return Signature{}, common.Hash{}, err
	}
	return sig, digest, nil
}

// SignTypedData 签名 eth_signTypedData_v4 请求
func (s *Signer) SignTypedData(td *eip712.TypedData) (Signature, common.Hash, error) {
	return s.SignDigestOf(td.Domain, td.Types, td.PrimaryType, td.Message)
}
