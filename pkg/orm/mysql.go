package orm

import (
	"fmt"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Driver      string `mapstructure:"driver"`       // mysql | postgres | sqlite
	DSN         string `mapstructure:"dsn"`          // 连接字符串
	MaxIdle     int    `mapstructure:"max_idle"`     // 最大空闲连接
	MaxOpen     int    `mapstructure:"max_open"`     // 最大打开连接
	MaxLifetime int    `mapstructure:"max_lifetime"` // 连接存活秒数
	LogSQL      bool   `mapstructure:"log_sql"`
}

// Dialector 按驱动名构造 gorm 方言
func Dialector(c *Config) (gorm.Dialector, error) {
	switch strings.ToLower(c.Driver) {
	case "", "mysql":
		dsn, err := normalizeMySQLDSN(c.DSN)
		if err != nil {
			return nil, err
		}
		return mysql.Open(dsn), nil
	case "postgres", "postgresql":
		return postgres.Open(c.DSN), nil
	case "sqlite", "sqlite3":
		// 本地调试用
		return sqlite.Open(c.DSN), nil
	default:
		return nil, fmt.Errorf("orm: unsupported driver %q", c.Driver)
	}
}

// normalizeMySQLDSN 强制 parseTime=true，timestamp 列才能扫进 time.Time
func normalizeMySQLDSN(dsn string) (string, error) {
	cfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("orm: parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	return cfg.FormatDSN(), nil
}

// Open 初始化 GORM 并配置连接池
func Open(c *Config) (*gorm.DB, error) {
	dialector, err := Dialector(c)
	if err != nil {
		return nil, err
	}
	return OpenDialector(dialector, c)
}

// OpenDialector 测试里可以直接传 sqlite 方言
func OpenDialector(dialector gorm.Dialector, c *Config) (*gorm.DB, error) {
	level := logger.Warn
	if c.LogSQL {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
		// 写操作自己显式开事务
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("orm: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if c.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(c.MaxIdle)
	}
	if c.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(c.MaxOpen)
	}
	if c.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(c.MaxLifetime) * time.Second)
	}
	return db, nil
}

// MustOpen 启动阶段用，失败直接 panic
func MustOpen(c *Config) *gorm.DB {
	db, err := Open(c)
	if err != nil {
		panic("failed to connect database: " + err.Error())
	}
	return db
}
