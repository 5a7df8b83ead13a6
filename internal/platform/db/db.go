package db

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fatflowers/subpanel/internal/models"
	cfgpkg "github.com/fatflowers/subpanel/pkg/config"
	gormzap "github.com/fatflowers/subpanel/pkg/gormlog"
)

func dialector(c cfgpkg.DBConfig) (gorm.Dialector, error) {
	switch c.Driver {
	case cfgpkg.DBDriverPostgres, "":
		return postgres.Open(c.DSN), nil
	case cfgpkg.DBDriverMySQL:
		return mysql.Open(c.DSN), nil
	case cfgpkg.DBDriverSQLite:
		return sqlite.Open(c.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", c.Driver)
	}
}

// Open connects with the configured driver and applies pool settings.
// SQLite is limited to one connection, which also serializes transactions.
func Open(l *zap.SugaredLogger, c cfgpkg.DBConfig) (*gorm.DB, error) {
	if c.DSN == "" {
		l.Error("database DSN is empty")
		return nil, gorm.ErrInvalidDB
	}
	d, err := dialector(c)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(d, &gorm.Config{Logger: gormzap.New(l, gormzap.ParseLevel(c.LogLevel))})
	if err != nil {
		l.Errorf("failed to connect database: %v", err)
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if c.Driver == cfgpkg.DBDriverSQLite {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else {
		if c.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(c.MaxOpenConns)
		}
		if c.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(c.MaxIdleConns)
		}
	}
	l.Infow("connected to database", "driver", db.Dialector.Name())
	return db, nil
}

func NewDB(l *zap.SugaredLogger, cfg *cfgpkg.Config) (*gorm.DB, error) {
	return Open(l, cfg.Database)
}

var Module = fx.Options(
	fx.Provide(NewDB),
	fx.Invoke(AutoMigrate),
	fx.Invoke(registerDBClose),
)

// AutoMigrate runs GORM migrations on startup
func AutoMigrate(l *zap.SugaredLogger, db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Subscription{},
		&models.SubscriptionLog{},
		&models.Device{},
		&models.AccessLog{},
		&models.SoftwareRule{},
	); err != nil {
		l.Errorf("automigrate failed: %v", err)
		return err
	}
	l.Infow("automigrate completed")
	return nil
}

// registerDBClose ensures the underlying *sql.DB is closed on shutdown
func registerDBClose(lc fx.Lifecycle, l *zap.SugaredLogger, gdb *gorm.DB) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				l.Warnw("gorm: get sql.DB failed", "err", err)
				return nil
			}
			l.Infow("closing database connection pool")
			return sqlDB.Close()
		},
	})
}
