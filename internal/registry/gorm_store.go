package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// registryEntry 登记表行
type registryEntry struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	ContractID string `gorm:"column:contract_id;type:varchar(128);uniqueIndex:idx_registry_contract_network;not null"`
	Network    string `gorm:"column:network;type:varchar(64);uniqueIndex:idx_registry_contract_network;not null"`
	Address    string `gorm:"column:address;type:varchar(42);not null"`
	Deployer   string `gorm:"column:deployer;type:varchar(42);not null;default:''"`
	CreatedAt  int64  `gorm:"column:created_at;type:bigint;not null"`
	UpdatedAt  int64  `gorm:"column:updated_at;type:bigint;not null"`
}

// TableName 返回表名
func (registryEntry) TableName() string {
	return "registry_entries"
}

// GormStore 基于数据库的登记存储
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore 创建数据库存储并迁移表结构
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&registryEntry{}); err != nil {
		return nil, fmt.Errorf("migrate registry_entries: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Get 获取登记信息
func (s *GormStore) Get(ctx context.Context, key EntryKey) (Entry, error) {
	if err := key.Validate(); err != nil {
		return Entry{}, err
	}

	var row registryEntry
	err := s.db.WithContext(ctx).
		Where("contract_id = ? AND network = ?", key.ContractID, key.Network).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get %s: %w", key, err)
	}
	return Entry{Address: row.Address, Deployer: row.Deployer}, nil
}

// Set 写入登记信息，已存在时整条覆盖
func (s *GormStore) Set(ctx context.Context, key EntryKey, entry Entry) error {
	if err := key.Validate(); err != nil {
		return err
	}
	entry, err := entry.normalize()
	if err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	row := &registryEntry{
		ContractID: key.ContractID,
		Network:    key.Network,
		Address:    entry.Address,
		Deployer:   entry.Deployer,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "contract_id"}, {Name: "network"}},
		DoUpdates: clause.AssignmentColumns([]string{"address", "deployer", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// List 列出登记信息
func (s *GormStore) List(ctx context.Context, network string) ([]Record, error) {
	var rows []registryEntry
	q := s.db.WithContext(ctx).Order("contract_id ASC, network ASC")
	if network != "" {
		q = q.Where("network = ?", network)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list registry: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, Record{
			Key:   Key(row.ContractID, row.Network),
			Entry: Entry{Address: row.Address, Deployer: row.Deployer},
		})
	}
	return records, nil
}

// Close 关闭数据库连接
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
