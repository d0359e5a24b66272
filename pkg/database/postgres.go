package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"NewsRadar/pkg/config"
	"NewsRadar/pkg/model"
	"NewsRadar/pkg/store"
)

// PostgresDB PostgreSQL 连接，按领域拆分子访问器
type PostgresDB struct {
	db *gorm.DB
}

// NewPostgresDB 建立连接并设置连接池
func NewPostgresDB(cfg *config.Config) (*PostgresDB, error) {
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库连接池失败: %w", err)
	}
	pg := cfg.Database.Postgres
	if pg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pg.MaxOpenConns)
	}
	if pg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("测试数据库连接失败: %w", err)
	}
	return &PostgresDB{db: db}, nil
}

// AutoMigrate 创建或更新表结构
func (p *PostgresDB) AutoMigrate() error {
	err := p.db.AutoMigrate(
		&model.RawNews{},
		&model.MergedNews{},
		&model.DailyDigest{},
		&model.CuratedNews{},
		&model.VerificationLog{},
		&model.DigestEntry{},
	)
	if err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	return nil
}

// Ping 供就绪检查使用
func (p *PostgresDB) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (p *PostgresDB) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (p *PostgresDB) News() *NewsDB {
	return &NewsDB{db: p.db}
}

func (p *PostgresDB) Digests() *DigestDB {
	return &DigestDB{db: p.db}
}

func (p *PostgresDB) Curated() *CuratedDB {
	return &CuratedDB{db: p.db}
}

// Store 组合全部子访问器
type Store struct {
	*NewsDB
	*DigestDB
	*CuratedDB
}

var _ store.Store = (*Store)(nil)

func (p *PostgresDB) Store() *Store {
	return &Store{NewsDB: p.News(), DigestDB: p.Digests(), CuratedDB: p.Curated()}
}

// notFound 把 gorm 的未找到错误转换为 store.ErrNotFound
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}
