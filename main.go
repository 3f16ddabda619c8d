package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/krshsl/staffline/repository"
	svc "github.com/krshsl/staffline/services"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Globals struct {
	Config *svc.Config
}

var cli struct {
	Serve   ServeCmd   `cmd:"" default:"1" help:"Start the HTTP API and background workers."`
	Migrate MigrateCmd `cmd:"" help:"Run database migrations and exit."`
	Seed    SeedCmd    `cmd:"" help:"Load the integration catalog and demo data."`
	Version VersionCmd `cmd:"" help:"Print the version."`
}

type ServeCmd struct{}

func (c *ServeCmd) Run(g *Globals) error {
	repo, pool, err := openDatabase(g.Config.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if g.Config.Database.AutoMigrate {
		if err := repo.AutoMigrate(); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		slog.Info("Database migrated")
	}
	if g.Config.Database.Seed {
		if err := seed(repo); err != nil {
			return err
		}
	}

	server := svc.NewServer(g.Config)
	server.SetDatabase(repo, pool)
	if err := server.InitializeServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	server.Start()
	return nil
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(g *Globals) error {
	repo, pool, err := openDatabase(g.Config.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := repo.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	slog.Info("Database migrated")
	return nil
}

type SeedCmd struct{}

func (c *SeedCmd) Run(g *Globals) error {
	repo, pool, err := openDatabase(g.Config.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := repo.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return seed(repo)
}

type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	fmt.Println(svc.Version)
	return nil
}

func main() {
	cfg := svc.LoadConfig()

	// Setup structured logging with JSON format
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)})))

	ctx := kong.Parse(&cli,
		kong.Name("staffline"),
		kong.Description("Staffing operations API: ATS, pods, academy, payroll and integrations."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&Globals{Config: cfg})
	ctx.FatalIfErrorf(err)
}

func seed(repo *repository.GORMRepository) error {
	seeder, err := svc.NewDatabaseSeeder(repo)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := seeder.SeedDatabase(ctx); err != nil {
		return fmt.Errorf("failed to seed database: %w", err)
	}
	return nil
}

// openDatabase opens the gorm connection used by the repository and a pgx
// pool used for health pings.
func openDatabase(cfg svc.DatabaseConfig) (*repository.GORMRepository, *pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, nil, errors.New("DATABASE_URL is required")
	}

	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		Logger: logger.Default.LogMode(parseGormLogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pool, err := pgxpool.New(context.Background(), cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	slog.Info("Connected to database")
	return repository.NewGORMRepository(db), pool, nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseGormLogLevel(s string) logger.LogLevel {
	switch strings.ToLower(s) {
	case "info":
		return logger.Info
	case "warn", "warning":
		return logger.Warn
	case "error":
		return logger.Error
	default:
		return logger.Silent
	}
}
