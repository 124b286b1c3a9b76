// Package registry 记录已部署合约的地址，按 合约ID + 网络 索引
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotFound       = errors.New("registry entry not found")
	ErrInvalidKey     = errors.New("invalid registry key")
	ErrInvalidAddress = errors.New("invalid contract address")
)

// EntryKey 登记键
type EntryKey struct {
	ContractID string
	Network    string
}

// Key 创建登记键
func Key(contractID, network string) EntryKey {
	return EntryKey{ContractID: contractID, Network: network}
}

// String 返回 "<contractId>.<network>"
func (k EntryKey) String() string {
	return k.ContractID + "." + k.Network
}

// Validate 校验登记键
func (k EntryKey) Validate() error {
	if k.ContractID == "" || k.Network == "" {
		return fmt.Errorf("%w: %q", ErrInvalidKey, k.String())
	}
	if strings.Contains(k.ContractID, ".") || strings.Contains(k.Network, ".") {
		return fmt.Errorf("%w: %q must not contain '.'", ErrInvalidKey, k.String())
	}
	return nil
}

// Entry 合约登记信息
type Entry struct {
	Address  string `json:"address"`
	Deployer string `json:"deployer,omitempty"`
}

// normalize 校验地址并转为 checksum 格式
func (e Entry) normalize() (Entry, error) {
	if !common.IsHexAddress(e.Address) {
		return Entry{}, fmt.Errorf("%w: address %q", ErrInvalidAddress, e.Address)
	}
	out := Entry{Address: common.HexToAddress(e.Address).Hex()}
	if e.Deployer != "" {
		if !common.IsHexAddress(e.Deployer) {
			return Entry{}, fmt.Errorf("%w: deployer %q", ErrInvalidAddress, e.Deployer)
		}
		out.Deployer = common.HexToAddress(e.Deployer).Hex()
	}
	return out, nil
}

// Record 登记记录
type Record struct {
	Key   EntryKey
	Entry Entry
}

// Store 登记存储接口
type Store interface {
	Get(ctx context.Context, key EntryKey) (Entry, error)
	// Set 覆盖写入整条记录
	Set(ctx context.Context, key EntryKey, entry Entry) error
	// List 返回某网络下的全部记录，network 为空时返回全部；按键排序
	List(ctx context.Context, network string) ([]Record, error)
	Close() error
}
