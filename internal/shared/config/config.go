package config

import (
	"log"
	"os"
	"strings"
)

// Config holds application configuration.
type Config struct {
	Port              string
	CORSAllowOrigin   []string
	Env               string
	OpenAIAPIKey      string
	ExtractModels     []string
	ObjectStoreType   string
	LocalStoreDir     string
	AWSRegion         string
	S3Bucket          string
	S3Prefix          string
	GCSBucket         string
	GCSPrefix         string
	LedgerType        string
	DatabaseURL       string
	SheetsSpreadsheet string
	SheetsCredentials string
	SheetsRange       string
	SubmissionFolder  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	ledger := normalizeLedgerType(getEnv("LEDGER", "pg"))
	if ledger == "pg" && dbURL == "" && env == "production" {
		log.Printf("DATABASE_URL is required in production with LEDGER=pg")
	}

	return Config{
		Port:              getEnv("PORT", "8080"),
		CORSAllowOrigin:   splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		Env:               env,
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		ExtractModels:     splitAndTrim(getEnv("EXTRACT_MODELS", "gpt-4o-mini,gpt-4o")),
		ObjectStoreType:   normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:     getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:         getEnv("AWS_REGION", ""),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Prefix:          getEnv("S3_PREFIX", ""),
		GCSBucket:         getEnv("GCS_BUCKET", ""),
		GCSPrefix:         getEnv("GCS_PREFIX", ""),
		LedgerType:        ledger,
		DatabaseURL:       dbURL,
		SheetsSpreadsheet: getEnv("SHEETS_SPREADSHEET_ID", ""),
		SheetsCredentials: getEnv("SHEETS_CREDENTIALS_FILE", ""),
		SheetsRange:       getEnv("SHEETS_RANGE", "Submissions!A:F"),
		SubmissionFolder:  getEnv("SUBMISSION_FOLDER", "submissions"),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "gcs":
		return "gcs"
	default:
		return "local"
	}
}

func normalizeLedgerType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sheets":
		return "sheets"
	case "memory":
		return "memory"
	default:
		return "pg"
	}
}
