package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/coursemarket-backend/internal/platform/envutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver string

	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string

	SQLitePath string

	MaxOpenConns int
	MaxIdleConns int
	SlowQuery    time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		Driver:       strings.ToLower(envutil.String("DB_DRIVER", DriverPostgres)),
		Host:         envutil.String("POSTGRES_HOST", "localhost"),
		Port:         envutil.String("POSTGRES_PORT", "5432"),
		User:         envutil.String("POSTGRES_USER", "postgres"),
		Password:     envutil.String("POSTGRES_PASSWORD", ""),
		Name:         envutil.String("POSTGRES_NAME", "coursemarket"),
		SSLMode:      envutil.String("POSTGRES_SSLMODE", "disable"),
		SQLitePath:   envutil.String("SQLITE_PATH", "coursemarket.db"),
		MaxOpenConns: envutil.Int("DB_MAX_OPEN_CONNS", 20),
		MaxIdleConns: envutil.Int("DB_MAX_IDLE_CONNS", 5),
		SlowQuery:    time.Duration(envutil.Int("DB_SLOW_QUERY_MS", 1000)) * time.Millisecond,
	}
}

func (c Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
		c.SSLMode,
	)
}

type PostgresService struct {
	db     *gorm.DB
	driver string
	log    *logger.Logger
}

// NewPostgresService opens the configured database. The sqlite driver is for
// local runs; it shares the schema but runs with a single writer connection.
func NewPostgresService(logg *logger.Logger, cfg Config) (*PostgresService, error) {
	serviceLog := logg.With("service", "PostgresService")

	if cfg.SlowQuery <= 0 {
		cfg.SlowQuery = time.Second
	}
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             cfg.SlowQuery,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	gormCfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormLog,
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case DriverSQLite:
		path := strings.TrimSpace(cfg.SQLitePath)
		if path == "" {
			path = "coursemarket.db"
		}
		db, err = gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite %q: %w", path, err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	case DriverPostgres, "":
		db, err = gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("postgres handle: %w", err)
		}
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		cfg.Driver = DriverPostgres
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.Driver)
	}

	serviceLog.Info("Database connected", "driver", cfg.Driver)
	return &PostgresService{db: db, driver: cfg.Driver, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func (s *PostgresService) Driver() string { return s.driver }

func (s *PostgresService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
