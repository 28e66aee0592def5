package bootstrap

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/CliniqAI/voicecore/internal/models"
	"github.com/CliniqAI/voicecore/pkg/config"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Options controls database bootstrap behavior
type Options struct {
	InitSQLPath string // optional .sql script executed before migration
	AutoMigrate bool   // whether to migrate entities
	SeedNonProd bool   // seed default answer topics outside production
}

// SetupDatabase opens the configured database, runs migrations and seeds
// default data according to the options.
func SetupDatabase(out io.Writer, opts *Options) (*gorm.DB, error) {
	if opts == nil {
		opts = &Options{}
	}

	cfg := config.GlobalConfig.Database
	dialector, err := openDialector(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	logLevel := gormlogger.Warn
	if config.GlobalConfig.Server.Mode == "development" {
		logLevel = gormlogger.Info
	}
	gormLog := gormlogger.New(
		log.New(out, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if opts.InitSQLPath != "" {
		if err := execSQLFile(db, opts.InitSQLPath); err != nil {
			return nil, fmt.Errorf("failed to run init sql: %w", err)
		}
	}

	if opts.AutoMigrate {
		if err := migrateModels(db); err != nil {
			return nil, fmt.Errorf("failed to migrate models: %w", err)
		}
	}

	if opts.SeedNonProd && config.GlobalConfig.Server.Mode != "production" {
		seeder := &SeedService{db: db}
		if err := seeder.SeedAll(); err != nil {
			return nil, fmt.Errorf("failed to seed defaults: %w", err)
		}
	}

	return db, nil
}

func openDialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "", "sqlite":
		return sqlite.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func migrateModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Call{},
		&models.Transcript{},
		&models.CallSession{},
		&models.Task{},
		&models.Escalation{},
		&models.Notification{},
		&models.ClinicInfo{},
	)
}

// execSQLFile runs a .sql script statement by statement
func execSQLFile(db *gorm.DB, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	for _, stmt := range strings.Split(string(raw), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" || strings.HasPrefix(stmt, "--") {
			continue
		}
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
