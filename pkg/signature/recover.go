package signature

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xpool-finance/xpool-signer/pkg/crypto"
)

// RecoverPublicKey 从签名恢复公钥 (Ethereum 后端)
func RecoverPublicKey(digest []byte, sig Signature) (*ecdsa.PublicKey, error) {
	return RecoverPublicKeyWith(crypto.Ethereum{}, digest, sig)
}

// RecoverPublicKeyWith 使用指定后端恢复公钥
func RecoverPublicKeyWith(p crypto.Primitives, digest []byte, sig Signature) (*ecdsa.PublicKey, error) {
	if err := sig.Validate(); err != nil {
		return nil, err
	}
	return p.RecoverPublicKey(digest, sig.raw())
}

// RecoverAddress 从签名恢复签名者地址
func RecoverAddress(digest []byte, sig Signature) (common.Address, error) {
	pub, err := RecoverPublicKey(digest, sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(pub), nil
}

// Verify 验证签名是否由 address 生成
func Verify(address common.Address, digest []byte, sig Signature) bool {
	recovered, err := RecoverAddress(digest, sig)
	if err != nil {
		return false
	}
	return recovered == address
}
