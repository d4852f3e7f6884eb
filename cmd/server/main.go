package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dsql/auth"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/intake"
	"github.com/lychee-technology/intake/internal"
	"go.uber.org/zap"
)

// Server carries the HTTP surface and its collaborators.
type Server struct {
	schemas     intake.SchemaStore
	submissions intake.SubmissionStore
	storage     intake.ObjectStorage
	pipeline    *internal.Pipeline
	reporting   *internal.ReportingService
	health      *internal.HealthChecker
	validator   *intake.Validator
	policy      intake.UploadPolicy
	presignTTL  time.Duration
	mux         *http.ServeMux
}

// RegisterRoutes registers all API routes. Dispatch below /api/v1/ is by
// path segment, matching in the handlers.
func (s *Server) RegisterRoutes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/v1/departments/", s.departmentsHandler)
	s.mux.HandleFunc("/api/v1/forms/", s.formsHandler)
	s.mux.HandleFunc("/api/v1/submissions/", s.submissionsHandler)
}

// Start starts the HTTP server on the given port.
func (s *Server) Start(port string) error {
	zap.S().Infow("starting server", "port", port)
	return http.ListenAndServe(":"+port, s.mux)
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	cfg := configFromEnv()
	if err := cfg.Validate(); err != nil {
		sugar.Fatalf("invalid configuration: %v", err)
	}

	ctx := context.Background()

	// When IAM auth is enabled the password is a short-lived DSQL connect
	// token generated from the ambient AWS credentials.
	if cfg.Database.UseIAMAuth {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			sugar.Fatalf("load aws config for IAM auth: %v", err)
		}
		endpoint := fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port)
		token, err := auth.GenerateDbConnectAuthToken(ctx, endpoint, awsCfg.Region, awsCfg.Credentials)
		if err != nil {
			sugar.Fatalf("generate IAM auth token: %v", err)
		}
		cfg.Database.Password = token
		sugar.Infow("generated IAM auth token for database connection")
	}

	pool, err := createDatabasePool(cfg.Database)
	if err != nil {
		sugar.Fatalf("failed to create database pool: %v", err)
	}
	defer pool.Close()

	if err := internal.EnsureTables(ctx, pool, cfg.Database.TableNames); err != nil {
		sugar.Fatalf("failed to ensure tables: %v", err)
	}

	storage, err := internal.NewS3ObjectStorage(ctx, cfg.Storage, logger)
	if err != nil {
		sugar.Fatalf("failed to create object storage: %v", err)
	}

	validator := intake.NewValidator(cfg.Uploads)
	schemaStore := internal.NewPostgresSchemaStore(pool, cfg.Database.TableNames.Schemas, validator, logger)
	submissionStore := internal.NewPostgresSubmissionStore(pool, cfg.Database.TableNames.Submissions, logger)
	notifier := internal.NewLogNotifier(logger)

	pipeline := internal.NewPipeline(
		schemaStore,
		submissionStore,
		storage,
		storage,
		notifier,
		validator,
		logger,
	)

	var reporting *internal.ReportingService
	if getEnv("REPORTING_ENABLED", "") == "true" {
		reporting = internal.NewReportingService(
			libpqConnString(cfg.Database),
			cfg.Database.TableNames.Submissions,
			logger,
		)
	}

	server := &Server{
		schemas:     schemaStore,
		submissions: submissionStore,
		storage:     storage,
		pipeline:    pipeline,
		reporting:   reporting,
		health:      internal.NewHealthChecker(pool, storage, 5*time.Second),
		validator:   validator,
		policy:      cfg.Uploads,
		presignTTL:  cfg.Storage.PresignTTL,
		mux:         http.NewServeMux(),
	}
	server.RegisterRoutes()

	port := getEnv("PORT", "8080")
	if err := server.Start(port); err != nil {
		sugar.Fatalf("server error: %v", err)
	}
}

// configFromEnv builds the runtime configuration from environment variables
// layered over the defaults.
func configFromEnv() *intake.Config {
	cfg := intake.DefaultConfig()

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvInt("DB_PORT", cfg.Database.Port)
	cfg.Database.Database = getEnv("DB_NAME", cfg.Database.Database)
	cfg.Database.Username = getEnv("DB_USER", cfg.Database.Username)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.SSLMode = getEnv("DB_SSL_MODE", cfg.Database.SSLMode)
	cfg.Database.MaxConnections = getEnvInt("DB_MAX_CONNECTIONS", cfg.Database.MaxConnections)
	cfg.Database.UseIAMAuth = getEnv("DB_USE_IAM_AUTH", "") == "true"
	cfg.Database.TableNames.Schemas = getEnv("SCHEMA_TABLE", cfg.Database.TableNames.Schemas)
	cfg.Database.TableNames.Submissions = getEnv("SUBMISSION_TABLE", cfg.Database.TableNames.Submissions)

	cfg.Storage.Bucket = getEnv("S3_BUCKET", cfg.Storage.Bucket)
	cfg.Storage.Region = getEnv("S3_REGION", cfg.Storage.Region)
	cfg.Storage.Endpoint = getEnv("S3_ENDPOINT", cfg.Storage.Endpoint)
	cfg.Storage.AccessKey = getEnv("S3_ACCESS_KEY", cfg.Storage.AccessKey)
	cfg.Storage.SecretKey = getEnv("S3_SECRET_KEY", cfg.Storage.SecretKey)
	cfg.Storage.KeyPrefix = getEnv("S3_KEY_PREFIX", cfg.Storage.KeyPrefix)
	if ttl := getEnvInt("S3_PRESIGN_TTL_SECONDS", 0); ttl > 0 {
		cfg.Storage.PresignTTL = time.Duration(ttl) * time.Second
	}

	cfg.Uploads.DefaultMaxFileSizeMB = getEnvInt("UPLOAD_DEFAULT_MAX_MB", cfg.Uploads.DefaultMaxFileSizeMB)

	return cfg
}

// createDatabasePool creates a PostgreSQL connection pool from config.
func createDatabasePool(cfg intake.DatabaseConfig) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	poolConfig.ConnConfig.ConnectTimeout = cfg.Timeout

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// libpqConnString renders the database config as a lib/pq key=value DSN for
// the reporting service's database/sql connection.
func libpqConnString(cfg intake.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database, cfg.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
