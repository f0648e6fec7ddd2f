package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"consultor-integral/internal/backend"
	"consultor-integral/internal/catalog"
	"consultor-integral/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Warn("load .env file")
	}

	var (
		dbPath      = flag.String("db", filepath.FromSlash("data/consultor.db"), "Path to SQLite database")
		csvPaths    multiFlag
		jsonPath    = flag.String("json", "", "Catalog JSON export to import")
		refsPath    = flag.String("references", "", "Product references CSV (product, reference)")
		backendURL  = flag.String("backend-url", "", "Consumption calculator base URL (env BACKEND_URL)")
		timeout     = flag.Duration("timeout", 30*time.Second, "Timeout for the calculator catalog request")
		outputPath  = flag.String("output", "", "Optional path to write the resulting catalog as JSON")
		refreshOnly = flag.Bool("refresh", false, "Only rebuild the catalog from the database and export it")
	)
	flag.Var(&csvPaths, "csv", "Catalog CSV file (repeatable, later files replace earlier ones)")
	flag.Parse()

	if strings.TrimSpace(*backendURL) == "" {
		*backendURL = strings.TrimSpace(os.Getenv("BACKEND_URL"))
	}

	db, err := store.Open(*dbPath, true)
	if err != nil {
		logrus.Fatalf("open database: %v", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("close database")
		}
	}()

	var source catalog.Source
	if !*refreshOnly && *backendURL != "" {
		client, err := backend.NewClient(backend.Config{BaseURL: *backendURL, Timeout: *timeout})
		if err != nil {
			logrus.Fatalf("backend client: %v", err)
		}
		source = client
	}
	svc := catalog.NewService(db, source, nil)

	if !*refreshOnly {
		for _, path := range csvPaths {
			start := time.Now()
			rows, err := svc.LoadFromCSV(path)
			if err != nil {
				logrus.Fatalf("import %s: %v", path, err)
			}
			logrus.WithFields(logrus.Fields{
				"file":     path,
				"rows":     rows,
				"duration": time.Since(start).Round(time.Millisecond),
			}).Info("catalog csv imported")
		}
		if *jsonPath != "" {
			rows, err := svc.LoadFromJSON(*jsonPath)
			if err != nil {
				logrus.Fatalf("import %s: %v", *jsonPath, err)
			}
			logrus.WithFields(logrus.Fields{"file": *jsonPath, "rows": rows}).Info("catalog json imported")
		}
		if source != nil {
			ctx, cancel := context.WithTimeout(context.Background(), *timeout)
			rows, err := svc.Refresh(ctx)
			cancel()
			if err != nil {
				logrus.WithError(err).Warn("calculator catalog unavailable; keeping stored catalog")
			} else {
				logrus.WithFields(logrus.Fields{"url": *backendURL, "rows": rows}).Info("catalog fetched from calculator")
			}
		}
		if *refsPath != "" {
			refs, err := svc.LoadReferencesCSV(*refsPath)
			if err != nil {
				logrus.Fatalf("import %s: %v", *refsPath, err)
			}
			logrus.WithFields(logrus.Fields{"file": *refsPath, "references": refs}).Info("product references imported")
		}
	}

	if err := svc.Reload(); err != nil {
		logrus.Fatalf("reload catalog: %v", err)
	}
	logrus.WithFields(logrus.Fields{
		"products": svc.Products(),
		"rows":     svc.Count(),
	}).Info("catalog sync complete")

	if *outputPath != "" {
		if err := writeCatalog(*outputPath, svc); err != nil {
			logrus.Fatalf("write catalog: %v", err)
		}
		logrus.WithField("path", *outputPath).Info("catalog written to file")
	}
}

func writeCatalog(path string, svc *catalog.Service) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(svc.Current())
}

type multiFlag []string

func (m *multiFlag) String() string {
	return strings.Join(*m, ",")
}

func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}
