package remote

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/assistpro/shopsync/internal/config"
	"github.com/assistpro/shopsync/internal/logging"
)

// Open connects to the remote store described by cfg.
func Open(cfg config.RemoteConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.New(postgres.Config{
			DSN:                  cfg.GetDSN(),
			PreferSimpleProtocol: true, // Disables implicit prepared statement usage
		})
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.GetDSN())
	default:
		return nil, fmt.Errorf("unsupported remote driver %q", cfg.Driver)
	}

	// gorm logs through zap so remote SQL lands in the same sinks
	gormLog := logger.New(zap.NewStdLog(logging.Get().Named("gorm")), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  cfg.LogLevel,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to remote store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get remote database instance: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	logging.Info("[Remote] connected",
		zap.String("driver", cfg.Driver),
		zap.String("host", cfg.Host),
		zap.String("database", cfg.DBName),
	)
	return db, nil
}

// Close releases the connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
