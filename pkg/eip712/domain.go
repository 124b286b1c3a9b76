package eip712

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DomainType 域结构的固定类型签名
const DomainType = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"

// DomainTypeName 域结构的保留名称
const DomainTypeName = "EIP712Domain"

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Domain EIP-712 域, 将签名绑定到应用、链与合约
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// DomainFields 按声明顺序返回域结构字段
func DomainFields() []Field {
	return []Field{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	}
}

// Validate name/version 不能为空, chainId 须位于 [1, 2^256)
func (d Domain) Validate() error {
	if d.Name == "" {
		return encodingErr(ErrInvalidDomain, "EIP712Domain.name", "name is empty")
	}
	if d.Version == "" {
		return encodingErr(ErrInvalidDomain, "EIP712Domain.version", "version is empty")
	}
	if d.ChainID == nil || d.ChainID.Sign() <= 0 {
		return encodingErr(ErrInvalidDomain, "EIP712Domain.chainId", "chain id must be positive")
	}
	if d.ChainID.Cmp(maxUint256) > 0 {
		return encodingErr(ErrInvalidDomain, "EIP712Domain.chainId", "chain id exceeds uint256")
	}
	return nil
}

// Message 将域转换为 DomainType 结构值
func (d Domain) Message() Message {
	return Message{
		"name":              String(d.Name),
		"version":           String(d.Version),
		"chainId":           NewInt(d.ChainID),
		"verifyingContract": Address(d.VerifyingContract),
	}
}
