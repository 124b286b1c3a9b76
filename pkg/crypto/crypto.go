// Package crypto 提供结构化数据签名所需的 keccak 哈希与 secp256k1 原语
package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// DigestLength 可签名摘要的字节长度
const DigestLength = 32

var (
	ErrInvalidPrivateKey   = errors.New("invalid private key")
	ErrInvalidDigestLength = errors.New("digest must be 32 bytes")
	ErrInvalidRecoveryID   = errors.New("recovery id must be 0 or 1")
	ErrRecoveryFailed      = errors.New("public key recovery failed")
)

// secp256k1 群阶 n
var (
	secp256k1N, _  = new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

// CurveOrder 返回 secp256k1 群阶的副本
func CurveOrder() *big.Int {
	return new(big.Int).Set(secp256k1N)
}

// HalfOrder 返回 floor(n/2) 的副本, 即规范 s 的上限
func HalfOrder() *big.Int {
	return new(big.Int).Set(secp256k1HalfN)
}

// Keccak256 计算 Keccak256 哈希
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		h.Write(b)
	}
	return h.Sum(nil)
}

// Keccak256Hash 计算 Keccak256 哈希并返回 hex 字符串
func Keccak256Hash(data ...[]byte) string {
	return "0x" + hex.EncodeToString(Keccak256(data...))
}

// ValidatePrivateKey 校验私钥标量位于 [1, n)
func ValidatePrivateKey(key *ecdsa.PrivateKey) error {
	if key == nil || key.D == nil {
		return fmt.Errorf("%w: key is nil", ErrInvalidPrivateKey)
	}
	if key.D.Sign() <= 0 {
		return fmt.Errorf("%w: scalar must be positive", ErrInvalidPrivateKey)
	}
	if key.D.Cmp(secp256k1N) >= 0 {
		return fmt.Errorf("%w: scalar must be below the curve order", ErrInvalidPrivateKey)
	}
	return nil
}

// NormalizePrivateKey 校验私钥标量, 并由 D 重建曲线参数与公钥
// 调用方传入的 Curve / PublicKey 一律忽略
func NormalizePrivateKey(key *ecdsa.PrivateKey) (*ecdsa.PrivateKey, error) {
	if err := ValidatePrivateKey(key); err != nil {
		return nil, err
	}
	rebuilt, err := ethcrypto.ToECDSA(math.PaddedBigBytes(key.D, 32))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return rebuilt, nil
}

// PrivateKeyFromHex 解析 32 字节 hex 私钥, 0x 前缀可选
func PrivateKeyFromHex(s string) (*ecdsa.PrivateKey, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: want 32 bytes, got %d", ErrInvalidPrivateKey, len(b))
	}

	d := new(big.Int).SetBytes(b)
	if d.Sign() == 0 || d.Cmp(secp256k1N) >= 0 {
		return nil, fmt.Errorf("%w: scalar out of range", ErrInvalidPrivateKey)
	}

	key, err := ethcrypto.ToECDSA(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return key, nil
}

// AddressFromPrivateKey 返回私钥对应的小写 0x 地址, key 为 nil 时返回空字符串
func AddressFromPrivateKey(key *ecdsa.PrivateKey) string {
	if key == nil {
		return ""
	}
	return strings.ToLower(PubkeyToAddress(&key.PublicKey).Hex())
}

// PubkeyToAddress 由公钥推导地址: keccak256(X || Y) 的后 20 字节
func PubkeyToAddress(pub *ecdsa.PublicKey) common.Address {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return common.Address{}
	}
	pubBytes := make([]byte, 64)
	copy(pubBytes[:32], padLeft(pub.X.Bytes(), 32))
	copy(pubBytes[32:], padLeft(pub.Y.Bytes(), 32))

	return common.BytesToAddress(Keccak256(pubBytes)[12:])
}

// PublicKeysEqual 仅比较仿射坐标, 不同后端生成的公钥可直接比较
func PublicKeysEqual(a, b *ecdsa.PublicKey) bool {
	if a == nil || b == nil || a.X == nil || b.X == nil {
		return false
	}
	return a.X.Cmp(b.X) == 0 && a.Y.Cmp(b.Y) == 0
}

// IsValidAddress 检查是否为 0x 开头的 40 位 hex 地址
func IsValidAddress(addr string) bool {
	if len(addr) != 42 || !strings.HasPrefix(addr, "0x") {
		return false
	}
	_, err := hex.DecodeString(addr[2:])
	return err == nil
}

func padLeft(data []byte, size int) []byte {
	if len(data) >= size {
		return data[len(data)-size:]
	}
	result := make([]byte, size)
	copy(result[size-len(data):], data)
	return result
}
