package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"consultor-integral/internal/api"
	"consultor-integral/internal/backend"
	"consultor-integral/internal/report"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Warn("load .env file")
	}
	configureLogging()

	baseDir, err := os.Getwd()
	if err != nil {
		logrus.Fatalf("determine working directory: %v", err)
	}

	dataDir := filepath.Join(baseDir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		logrus.Fatalf("create data directory: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "2000"
	}

	backendCfg := backend.Config{BaseURL: strings.TrimSpace(os.Getenv("BACKEND_URL"))}
	backendCfg.Timeout = envDuration("BACKEND_TIMEOUT", 0)
	backendCfg.CacheTTL = envDuration("BACKEND_CACHE_TTL", 0)

	reportBaseURL := strings.TrimSpace(os.Getenv("REPORT_BASE_URL"))
	if reportBaseURL == "" {
		reportBaseURL = "http://127.0.0.1:" + port
	}

	cfg := api.Config{
		DBPath:            filepath.Join(dataDir, "consultor.db"),
		CatalogJSONPath:   existingFile(filepath.Join(dataDir, "catalog.json")),
		CatalogCSVPath:    strings.TrimSpace(os.Getenv("CATALOG_CSV_PATH")),
		ReferencesCSVPath: strings.TrimSpace(os.Getenv("REFERENCES_CSV_PATH")),
		AllowedOrigins: []string{
			"http://localhost:1000",
			"http://127.0.0.1:1000",
		},
		Backend:        backendCfg,
		CatalogTimeout: envDuration("CATALOG_TIMEOUT", 0),
		ReportBaseURL:  reportBaseURL,
		ImageBasePath:  strings.TrimSpace(os.Getenv("IMAGE_BASE_PATH")),
		PDF: report.PDFConfig{
			ChromePath: strings.TrimSpace(os.Getenv("CHROME_PATH")),
			Timeout:    envDuration("PDF_TIMEOUT", 0),
		},
		DisablePDF: strings.EqualFold(strings.TrimSpace(os.Getenv("DISABLE_PDF")), "true"),
		SessionTTL: envDuration("SESSION_TTL", 7*24*time.Hour),
	}

	if override := strings.TrimSpace(os.Getenv("CONSULTOR_DB_PATH")); override != "" {
		cfg.DBPath = override
	}
	if override := strings.TrimSpace(os.Getenv("CATALOG_JSON_PATH")); override != "" {
		cfg.CatalogJSONPath = override
	}
	if origins := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}

	server, err := api.NewServer(cfg)
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	defer server.Close()

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	logrus.Infof("starting consultor-integral backend on :%s", port)
	if err := router.Run(":" + port); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}

func configureLogging() {
	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			logrus.WithError(err).Warn("invalid LOG_LEVEL, keeping info")
		} else {
			logrus.SetLevel(parsed)
		}
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("ENV")), "production") {
		gin.SetMode(gin.ReleaseMode)
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		logrus.WithError(err).WithField("var", key).Warn("invalid duration, using default")
		return fallback
	}
	return d
}

func existingFile(path string) string {
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
