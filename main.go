package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql (migrations)
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
	_ "github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource/mssql"
	_ "github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource/mysql"
	_ "github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource/oracle"
	_ "github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource/postgres"
	"github.com/wenshu-inc/wenshu-engine/pkg/config"
	"github.com/wenshu-inc/wenshu-engine/pkg/crypto"
	"github.com/wenshu-inc/wenshu-engine/pkg/database"
	"github.com/wenshu-inc/wenshu-engine/pkg/handlers"
	"github.com/wenshu-inc/wenshu-engine/pkg/llm"
	"github.com/wenshu-inc/wenshu-engine/pkg/logging"
	"github.com/wenshu-inc/wenshu-engine/pkg/mcp"
	"github.com/wenshu-inc/wenshu-engine/pkg/middleware"
	"github.com/wenshu-inc/wenshu-engine/pkg/repositories"
	"github.com/wenshu-inc/wenshu-engine/pkg/seed"
	"github.com/wenshu-inc/wenshu-engine/pkg/services"
	"github.com/wenshu-inc/wenshu-engine/pkg/workerpool"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:           "wenshu-engine",
		Short:         "Natural-language questions over MySQL, PostgreSQL, SQL Server and Oracle",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP and MCP server",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply engine store migrations and exit",
			RunE:  runMigrate,
		},
		&cobra.Command{
			Use:   "encrypt <plaintext>",
			Short: "Print the vault ciphertext of a secret",
			Args:  cobra.ExactArgs(1),
			RunE:  runEncrypt,
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Env == "local" {
		return zap.NewDevelopmentConfig().Build()
	}
	return zap.NewProductionConfig().Build()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(Version)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.Bool("mcp_enabled", cfg.MCP.Enabled))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := migrate(cfg, logger); err != nil {
		return err
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to engine store: %w", err)
	}
	defer db.Close()

	vault, err := newVault(cfg, logger)
	if err != nil {
		return err
	}

	connectorFactory := datasource.NewConnectorFactory(datasource.Options{
		ConnectTimeout: cfg.Datasource.ConnectTimeout(),
		Logger:         logger,
		ResolveHost:    config.ResolveHostForDocker,
	})
	for _, info := range connectorFactory.ListTypes() {
		logger.Debug("Registered datasource adapter", zap.String("type", info.Type))
	}

	pool := workerpool.New(workerpool.Config{MaxConcurrent: cfg.Datasource.WorkerPoolSize}, logger)
	gatewayFactory := llm.NewFactory(cfg.LLM.HTTPTimeout(), cfg.LLM.DefaultBaseURL, logger)

	datasourceRepo := repositories.NewDatasourceRepository(db)
	modelRepo := repositories.NewModelRepository(db)
	conversationRepo := repositories.NewConversationRepository(db)

	datasourceService := services.NewDatasourceService(datasourceRepo, vault, connectorFactory, pool,
		services.DatasourceServiceConfig{
			SampleLimit:  cfg.Datasource.SampleLimit,
			MaxQueryRows: cfg.Datasource.MaxQueryRows,
		}, logger)
	modelService := services.NewModelService(modelRepo, vault, gatewayFactory, logger)
	chatService := services.NewChatService(datasourceService, modelService, logger)
	conversationService := services.NewConversationService(conversationRepo, datasourceRepo, modelRepo, chatService, logger)

	if cfg.SeedFile != "" {
		seedFile, err := seed.Load(cfg.SeedFile)
		if err != nil {
			return err
		}
		res, err := seed.Apply(ctx, seedFile, datasourceService, modelService, logger)
		if err != nil {
			return fmt.Errorf("failed to apply seed file: %w", err)
		}
		logger.Info("Seed file applied",
			zap.String("path", cfg.SeedFile),
			zap.Int("datasources_created", res.DatasourcesCreated),
			zap.Int("models_created", res.ModelsCreated),
			zap.Int("skipped", res.Skipped))
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, db, logger).RegisterRoutes(mux)
	handlers.NewDatasourcesHandler(datasourceService, logger).RegisterRoutes(mux)
	handlers.NewModelsHandler(modelService, logger).RegisterRoutes(mux)
	handlers.NewConversationsHandler(conversationService, logger).RegisterRoutes(mux)

	if cfg.MCP.Enabled {
		mcpServer := mcp.NewServer("wenshu-engine", cfg.Version, logger)
		mcpServer.RegisterDatasourceTools(datasourceService, cfg.Version)
		handlers.NewMCPHandler(mcpServer, logger).RegisterRoutes(mux)
	}

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting wenshu-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
			zap.Bool("tls", cfg.TLSCertPath != ""))
		var err error
		if cfg.TLSCertPath != "" {
			err = server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(Version)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	return migrate(cfg, logger)
}

func runEncrypt(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(Version)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	vault, err := newVault(cfg, zap.NewNop())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), vault.Encrypt(args[0]))
	return err
}

func migrate(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to open engine store: %w", err)
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func newVault(cfg *config.Config, logger *zap.Logger) (*crypto.Vault, error) {
	vault, err := crypto.NewVault(crypto.VaultConfig{
		PrimaryKey:        cfg.Vault.EncryptionKey,
		FallbackKey:       cfg.Vault.FallbackKey,
		DefaultCredential: cfg.Vault.DefaultCredential,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential vault: %w", err)
	}
	return vault, nil
}
