package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/berez-app/berez/backend/internal/adapters/storage"
	"github.com/berez-app/berez/backend/internal/app"
	"github.com/berez-app/berez/backend/internal/infrastructure/observability"
	"github.com/berez-app/berez/backend/pkg/config"
)

// lambdaDataDir is the only writable directory in the Lambda runtime
const lambdaDataDir = "/tmp"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Environment)
	observability.ParseLevel(cfg.Server.LogLevel)

	ctx := context.Background()

	// The runtime keeps the file database in /tmp and mirrors it to S3
	cfg.Database.Driver = "sqlite3"
	cfg.Database.SQLitePath = filepath.Join(lambdaDataDir, filepath.Base(cfg.Database.SQLitePath))
	if cfg.Storage.Driver == "local" {
		cfg.Storage.LocalDir = filepath.Join(lambdaDataDir, "uploads")
	}

	var snapshot *storage.Snapshot
	if cfg.Snapshot.Bucket != "" {
		awsCfg, err := storage.LoadAWSConfig(ctx, cfg.Snapshot.Region, cfg.Storage.S3AccessKey, cfg.Storage.S3SecretKey)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load AWS configuration")
		}
		snapshot = storage.NewSnapshot(storage.NewS3Client(awsCfg, cfg.Storage.S3Endpoint), cfg.Snapshot.Bucket, cfg.Snapshot.Key, cfg.Database.SQLitePath)
		if _, err := snapshot.Restore(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to restore database snapshot")
		}
	} else {
		log.Warn().Msg("DB_SNAPSHOT_BUCKET is not set; data lives only as long as this instance")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to prepare data directory")
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start application")
	}

	adapter := httpadapter.New(persistAfterWrites(application.Handler, snapshot))
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}

// persistAfterWrites uploads the database file after every successful mutating request
func persistAfterWrites(next http.Handler, snapshot *storage.Snapshot) http.Handler {
	if snapshot == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}
		if sw.status >= http.StatusBadRequest {
			return
		}
		if err := snapshot.Persist(r.Context()); err != nil {
			log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to persist database snapshot")
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
