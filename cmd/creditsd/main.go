package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/loadmarket/credits/internal/httpapi"
	"github.com/loadmarket/credits/internal/obs"
	"github.com/loadmarket/credits/internal/store/gormstore"
	"github.com/loadmarket/credits/pkg/credits"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	flagDatabaseURL      = "database-url"
	flagListenAddr       = "listen-addr"
	flagAllowedOrigins   = "allowed-origins"
	flagJWTSigningKey    = "jwt-signing-key"
	flagJWTIssuer        = "jwt-issuer"
	configKeyDatabaseURL = "database_url"
	configKeyListenAddr  = "listen_addr"
	configKeyOrigins     = "allowed_origins"
	configKeySigningKey  = "jwt_signing_key"
	configKeyIssuer      = "jwt_issuer"
	defaultDatabaseURL   = "sqlite:///tmp/creditsd.db"
	defaultListenAddr    = ":8080"
)

type runtimeConfig struct {
	DatabaseURL    string
	ListenAddr     string
	AllowedOrigins []string
	JWTSigningKey  string
	JWTIssuer      string
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "creditsd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "creditsd",
		Short:         "Marketplace credits ledger server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL or SQLite connection string")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.Flags().StringSlice(flagAllowedOrigins, nil, "Allowed CORS origins")
	cmd.Flags().String(flagJWTSigningKey, "", "HMAC key for session tokens")
	cmd.Flags().String(flagJWTIssuer, "", "Expected session token issuer")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	envBindings := map[string]string{
		configKeyDatabaseURL: "DATABASE_URL",
		configKeyListenAddr:  "LISTEN_ADDR",
		configKeyOrigins:     "ALLOWED_ORIGINS",
		configKeySigningKey:  "JWT_SIGNING_KEY",
		configKeyIssuer:      "JWT_ISSUER",
	}
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}
	flagBindings := map[string]string{
		configKeyDatabaseURL: flagDatabaseURL,
		configKeyListenAddr:  flagListenAddr,
		configKeyOrigins:     flagAllowedOrigins,
		configKeySigningKey:  flagJWTSigningKey,
		configKeyIssuer:      flagJWTIssuer,
	}
	for key, flag := range flagBindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	cfg.AllowedOrigins = viper.GetStringSlice(configKeyOrigins)
	cfg.JWTSigningKey = viper.GetString(configKeySigningKey)
	cfg.JWTIssuer = viper.GetString(configKeyIssuer)

	if cfg.JWTSigningKey == "" {
		return fmt.Errorf("jwt signing key is required")
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer cleanup()

	if err := gormstore.Migrate(gormDB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := seedDefaultSettings(gormDB); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}

	store := gormstore.New(gormDB)
	metrics := obs.NewMetrics()
	recorder := obs.NewOperationRecorder(logger, metrics)
	clock := func() time.Time { return time.Now().UTC() }
	service, err := credits.NewService(store, clock, credits.WithOperationLogger(recorder))
	if err != nil {
		return fmt.Errorf("credits service init: %w", err)
	}

	apiConfig := httpapi.Config{
		ListenAddr:     cfg.ListenAddr,
		AllowedOrigins: cfg.AllowedOrigins,
		JWTSigningKey:  cfg.JWTSigningKey,
		JWTIssuer:      cfg.JWTIssuer,
	}
	return httpapi.Run(ctx, apiConfig, service, logger, metrics)
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, err
	}

	var db *gorm.DB
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), &gorm.Config{})
	default:
		return nil, nil, fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		parsed, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := parsed.Path
		if path == "" {
			path = parsed.Host
		}
		if path == "" || path == "/" {
			path = "creditsd.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

// seedDefaultSettings inserts the cost and rate defaults a fresh database
// needs to serve lookups. Existing keys are never overwritten.
func seedDefaultSettings(db *gorm.DB) error {
	defaults := []gormstore.Setting{
		{Key: "post_costs.load", Value: "10", DataType: "number"},
		{Key: "post_costs.truck", Value: "10", DataType: "number"},
		{Key: "post_costs.company", Value: "15", DataType: "number"},
		{Key: "post_costs.job", Value: "20", DataType: "number"},
		{Key: "post_costs.resume", Value: "5", DataType: "number"},
		{Key: "premium_costs.top_24h", Value: "50", DataType: "number"},
		{Key: "premium_costs.top_72h", Value: "120", DataType: "number"},
		{Key: "premium_costs.top_168h", Value: "220", DataType: "number"},
		{Key: "premium_costs.highlight", Value: "30", DataType: "number"},
		{Key: "recharge_rates", Value: `{"10":100,"25":275,"50":600,"100":1300}`, DataType: "json"},
	}
	for _, setting := range defaults {
		var existing gormstore.Setting
		err := db.Where("key = ?", setting.Key).Take(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Create(&setting).Error; err != nil {
			return err
		}
	}
	return nil
}
