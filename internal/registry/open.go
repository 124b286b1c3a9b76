package registry

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/xpool-finance/xpool-signer/internal/config"
	"github.com/xpool-finance/xpool-signer/internal/metrics"
)

// Open 按配置打开登记存储
func Open(cfg *config.RegistryConfig) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Driver {
	case "file", "":
		store = NewFileStore(cfg.Path)
	case "sqlite":
		store, err = openGorm(sqlite.Open(cfg.Path))
	case "postgres":
		store, err = openGorm(postgres.Open(cfg.DSN))
	default:
		return nil, fmt.Errorf("unknown registry driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s registry: %w", cfg.Driver, err)
	}

	driver := cfg.Driver
	if driver == "" {
		driver = "file"
	}
	return &instrumented{Store: store, driver: driver}, nil
}

func openGorm(dialector gorm.Dialector) (*GormStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return NewGormStore(db)
}

// instrumented 为存储操作记录指标
type instrumented struct {
	Store
	driver string
}

func (s *instrumented) Get(ctx context.Context, key EntryKey) (Entry, error) {
	entry, err := s.Store.Get(ctx, key)
	metrics.RecordRegistryOp(s.driver, "get", err)
	return entry, err
}

func (s *instrumented) Set(ctx context.Context, key EntryKey, entry Entry) error {
	err := s.Store.Set(ctx, key, entry)
	metrics.RecordRegistryOp(s.driver, "set", err)
	return err
}

func (s *instrumented) List(ctx context.Context, network string) ([]Record, error) {
	records, err := s.Store.List(ctx, network)
	metrics.RecordRegistryOp(s.driver, "list", err)
	return records, err
}
