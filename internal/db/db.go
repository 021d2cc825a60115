package db

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bdpipeline/internal/config"
)

type DB struct {
	Gorm *gorm.DB
	SQL  *sql.DB
}

// Open connects to Postgres, applies pool limits and the session timezone.
func Open(cfg config.DBConfig, development bool) (*DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("db dsn is empty")
	}

	logLevel := logger.Silent
	if development {
		logLevel = logger.Warn
	}
	gcfg := &gorm.Config{
		Logger:  logger.Default.LogMode(logLevel),
		NowFunc: NowUTC,
	}

	gdb, err := gorm.Open(postgres.Open(dsn), gcfg)
	if err != nil {
		return nil, err
	}

	sqldb, err := gdb.DB()
	if err != nil {
		return nil, err
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	out := &DB{Gorm: gdb, SQL: sqldb}
	if err := SetTimezone(out, cfg.Timezone); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return out, nil
}

func Close(db *DB) error {
	if db == nil || db.SQL == nil {
		return nil
	}
	return db.SQL.Close()
}

func Ping(db *DB) error {
	if db == nil || db.SQL == nil {
		return nil
	}
	return db.SQL.Ping()
}

func SetTimezone(db *DB, tz string) error {
	tz = strings.TrimSpace(tz)
	if tz == "" || db == nil || db.Gorm == nil {
		return nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return err
	}
	return db.Gorm.Exec("SET TIME ZONE '" + tz + "'").Error
}

func NowUTC() time.Time {
	return time.Now().UTC()
}
