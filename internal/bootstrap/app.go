package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"mathsnap-backend/internal/llm/openai"
	"mathsnap-backend/internal/shared/config"
	"mathsnap-backend/internal/shared/server"
	"mathsnap-backend/internal/shared/storage/db"
	"mathsnap-backend/internal/shared/storage/ledger"
	memoryledger "mathsnap-backend/internal/shared/storage/ledger/memory"
	pgledger "mathsnap-backend/internal/shared/storage/ledger/pg"
	sheetsledger "mathsnap-backend/internal/shared/storage/ledger/sheets"
	"mathsnap-backend/internal/shared/storage/object"
	gcsstore "mathsnap-backend/internal/shared/storage/object/gcs"
	localstore "mathsnap-backend/internal/shared/storage/object/local"
	s3store "mathsnap-backend/internal/shared/storage/object/s3"
	"mathsnap-backend/internal/submissions"
)

// App holds shared dependencies wired from configuration.
type App struct {
	Config  config.Config
	Router  *gin.Engine
	DB      *sql.DB
	Store   object.Store
	Ledger  ledger.Ledger
	Service *submissions.Service
	Handler *submissions.Handler
}

// Build prepares shared dependencies and the HTTP router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	if strings.TrimSpace(cfg.SubmissionFolder) == "" {
		cfg.SubmissionFolder = "submissions"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	led, err := buildLedger(ctx, cfg, sqlDB)
	if err != nil {
		return nil, err
	}

	models := cfg.ExtractModels
	if len(models) == 0 {
		models = []string{"gpt-4o-mini"}
	}
	llmClient, err := openai.NewClient(cfg.OpenAIAPIKey, models)
	if err != nil {
		return nil, err
	}

	coordinator := &submissions.Coordinator{
		Store:  store,
		Ledger: led,
		Folder: cfg.SubmissionFolder,
	}
	svc := submissions.NewService(llmClient, coordinator)
	handler := submissions.NewHandler(svc)

	app := &App{
		Config:  cfg,
		DB:      sqlDB,
		Store:   store,
		Ledger:  led,
		Service: svc,
		Handler: handler,
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:      cfg,
		Submissions: handler,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if cfg.LedgerType != "pg" {
		return nil, nil
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory ledger")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required with LEDGER=pg")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory ledger: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: migrations failed; using in-memory ledger: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.AWSRegion) == "" || strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires AWS_REGION and S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	case "gcs":
		if strings.TrimSpace(cfg.GCSBucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=gcs requires GCS_BUCKET")
		}
		return gcsstore.New(ctx, cfg.GCSBucket, cfg.GCSPrefix)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildLedger(ctx context.Context, cfg config.Config, sqlDB *sql.DB) (ledger.Ledger, error) {
	switch cfg.LedgerType {
	case "sheets":
		if strings.TrimSpace(cfg.SheetsSpreadsheet) == "" || strings.TrimSpace(cfg.SheetsCredentials) == "" {
			if isDevLike(cfg.Env) {
				log.Printf("bootstrap: sheets config incomplete; using in-memory ledger")
				return memoryledger.New(), nil
			}
			return nil, fmt.Errorf("LEDGER=sheets requires SHEETS_SPREADSHEET_ID and SHEETS_CREDENTIALS_FILE")
		}
		return sheetsledger.New(ctx, cfg.SheetsCredentials, cfg.SheetsSpreadsheet, cfg.SheetsRange)
	case "pg":
		if sqlDB != nil {
			return pgledger.New(sqlDB), nil
		}
		return memoryledger.New(), nil
	default:
		return memoryledger.New(), nil
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
