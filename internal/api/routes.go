package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"consultor-integral/internal/backend"
	"consultor-integral/internal/catalog"
	"consultor-integral/internal/recommend"
	"consultor-integral/internal/report"
	"consultor-integral/internal/store"
	"consultor-integral/internal/util"
	"consultor-integral/internal/wizard"
)

// Calculator is the external consumption calculator.
type Calculator interface {
	Calculate(ctx context.Context, req backend.CalculationRequest) (recommend.ConsumptionResult, error)
	Recalculate(ctx context.Context, req backend.RecalculationRequest) (recommend.Consumption, error)
	SavePortfolio(ctx context.Context, record report.PortfolioRecord) error
}

// PDFPrinter prints a rendered report page.
type PDFPrinter interface {
	PrintURL(ctx context.Context, renderURL string) ([]byte, error)
}

// Config defines server dependencies.
type Config struct {
	DBPath            string
	CatalogJSONPath   string
	CatalogCSVPath    string
	ReferencesCSVPath string
	AllowedOrigins    []string
	SilentDB          bool
	Backend           backend.Config
	CatalogTimeout    time.Duration
	ReportBaseURL     string
	ImageBasePath     string
	PDF               report.PDFConfig
	DisablePDF        bool
	SessionTTL        time.Duration
}

// Option overrides a server collaborator.
type Option func(*Server)

// WithCalculator replaces the HTTP calculator client.
func WithCalculator(calc Calculator) Option {
	return func(s *Server) { s.calculator = calc }
}

// WithCatalogSource replaces the remote catalog and reference sources.
func WithCatalogSource(source catalog.Source, refs catalog.ReferenceSource) Option {
	return func(s *Server) {
		s.catalogSource = source
		s.referenceSource = refs
	}
}

// WithPDFPrinter replaces the headless Chrome exporter.
func WithPDFPrinter(printer PDFPrinter) Option {
	return func(s *Server) { s.pdf = printer }
}

// Server wires HTTP handlers with the wizard, the catalog and persistence.
type Server struct {
	db              *store.Database
	catalog         *catalog.Service
	catalogSource   catalog.Source
	referenceSource catalog.ReferenceSource
	calculator      Calculator
	pdf             PDFPrinter
	sessions        *sessionRegistry
	notifier        *SessionNotifier
	allowedOrigins  []string
	reportBaseURL   string
	imageBasePath   string
	jobMu           sync.Mutex
	activeJobs      map[string]*calculationJob
}

// NewServer constructs the API server.
func NewServer(cfg Config, opts ...Option) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path required")
	}
	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	server := &Server{
		db:             db,
		sessions:       newSessionRegistry(db),
		notifier:       NewSessionNotifier(),
		allowedOrigins: cfg.AllowedOrigins,
		reportBaseURL:  strings.TrimRight(strings.TrimSpace(cfg.ReportBaseURL), "/"),
		imageBasePath:  cfg.ImageBasePath,
		activeJobs:     make(map[string]*calculationJob),
	}

	if strings.TrimSpace(cfg.Backend.BaseURL) == "" {
		logrus.Info("consumption calculator disabled - no backend url configured")
	} else {
		client, err := backend.NewClient(cfg.Backend)
		if err != nil {
			return nil, fmt.Errorf("backend client: %w", err)
		}
		server.calculator = client
		server.catalogSource = client
		server.referenceSource = client
		logrus.WithFields(logrus.Fields{
			"url":     cfg.Backend.BaseURL,
			"ttl":     cfg.Backend.CacheTTL,
			"timeout": cfg.Backend.Timeout,
		}).Info("consumption calculator enabled")
	}

	if !cfg.DisablePDF {
		server.pdf = report.NewPDFExporter(cfg.PDF)
	}

	for _, opt := range opts {
		opt(server)
	}

	server.catalog = catalog.NewService(db, server.catalogSource, server.referenceSource)
	server.loadCatalog(cfg)

	if removed, err := server.sessions.prune(cfg.SessionTTL); err != nil {
		logrus.WithError(err).Warn("prune wizard sessions")
	} else if removed > 0 {
		logrus.WithField("sessions", removed).Info("pruned idle wizard sessions")
	}

	return server, nil
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

func (s *Server) loadCatalog(cfg Config) {
	timer := util.StartTimer()
	var (
		rows   int
		source string
		err    error
	)
	switch {
	case strings.TrimSpace(cfg.CatalogCSVPath) != "":
		source = "csv"
		rows, err = s.catalog.LoadFromCSV(cfg.CatalogCSVPath)
	case strings.TrimSpace(cfg.CatalogJSONPath) != "":
		source = "json"
		rows, err = s.catalog.LoadFromJSON(cfg.CatalogJSONPath)
	case s.catalog.Count() > 0:
		source = "store"
		err = s.catalog.Reload()
		rows = s.catalog.Count()
	case s.catalogSource != nil:
		source = "backend"
		timeout := cfg.CatalogTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		rows, err = s.catalog.Refresh(ctx)
		cancel()
	default:
		logrus.Warn("no catalog source configured; recommendations will be empty")
	}

	if err != nil {
		logrus.WithError(err).WithField("source", source).Warn("load catalog")
		if source != "backend" && source != "store" {
			if reloadErr := s.catalog.Reload(); reloadErr != nil {
				logrus.WithError(reloadErr).Warn("reload stored catalog")
			}
		}
	} else if source != "" {
		logrus.WithFields(logrus.Fields{
			"source":   source,
			"rows":     rows,
			"products": s.catalog.Products(),
			"duration": timer.Elapsed(),
		}).Info("catalog loaded")
	}

	if path := strings.TrimSpace(cfg.ReferencesCSVPath); path != "" {
		count, err := s.catalog.LoadReferencesCSV(path)
		if err != nil {
			logrus.WithError(err).Warn("load reference lists")
			return
		}
		logrus.WithField("references", count).Info("reference lists loaded")
	}
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)

	api := r.Group("/api")
	{
		api.GET("/catalog", s.handleCatalog)
		api.POST("/catalog/import", s.handleCatalogImport)
		api.POST("/catalog/refresh", s.handleCatalogRefresh)
		api.POST("/references", s.handleReferences)
		api.POST("/classify", s.handleClassify)
		api.POST("/segment", s.handleSegment)
		api.GET("/portfolios", s.handleListPortfolios)

		api.POST("/sessions", s.handleCreateSession)
		api.GET("/sessions/:id", s.handleGetSession)
		api.DELETE("/sessions/:id", s.handleDeleteSession)
		api.POST("/sessions/:id/steps", s.handleSubmitStep)
		api.POST("/sessions/:id/back", s.handleBack)
		api.POST("/sessions/:id/restart", s.handleRestart)
		api.POST("/sessions/:id/calculate", s.handleCalculate)
		api.GET("/sessions/:id/recommendations", s.handleRecommendations)
		api.GET("/sessions/:id/products/:product/references", s.handleReferenceOptions)
		api.POST("/sessions/:id/products/:product/reference", s.handleSelectReference)
		api.POST("/sessions/:id/recalculate", s.handleRecalculate)
		api.POST("/sessions/:id/report", s.handleSaveReport)
		api.GET("/sessions/:id/report.html", s.handleReportHTML)
		api.GET("/sessions/:id/report.pdf", s.handleReportPDF)
		api.GET("/sessions/:id/stream", s.handleSessionStream)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	publicTypes := make([]PublicTypeDTO, 0, len(wizard.PublicTypes))
	for _, t := range wizard.PublicTypes {
		publicTypes = append(publicTypes, PublicTypeDTO{ID: t, Name: wizard.PublicTypeNames[t]})
	}
	levels := make([]TrafficLevelDTO, 0, len(recommend.TrafficLevels))
	for _, level := range recommend.TrafficLevels {
		levels = append(levels, TrafficLevelDTO{Level: level, Ordinal: int(level), MinIndex: level.MinIndex()})
	}

	s.jobMu.Lock()
	active := len(s.activeJobs)
	s.jobMu.Unlock()

	c.JSON(http.StatusOK, ConfigResponse{
		Sectors:            wizard.Sectors,
		Sizes:              wizard.Sizes,
		PublicTypes:        publicTypes,
		Products:           wizard.Products,
		Segments:           recommend.Segments,
		TrafficLevels:      levels,
		Steps:              wizard.Steps,
		CatalogProducts:    s.catalog.Products(),
		CatalogRows:        s.catalog.Count(),
		ReferenceRows:      s.catalog.ReferenceCount(),
		BackendConfigured:  s.calculator != nil,
		PDFEnabled:         s.pdf != nil,
		ActiveCalculations: active,
	})
}

func (s *Server) handleCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, s.catalog.Current())
}

func (s *Server) handleCatalogImport(c *gin.Context) {
	fileHeader, err := c.FormFile("catalog")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			s.renderError(c, http.StatusBadRequest, errors.New("catalog csv file is required"))
		} else {
			s.renderError(c, http.StatusBadRequest, err)
		}
		return
	}

	path, cleanup, err := saveFormFile(fileHeader)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	if cleanup != nil {
		defer cleanup()
	}

	file, err := os.Open(path)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	rows, err := catalog.ParseCatalogCSV(file)
	file.Close()
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if len(rows) == 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("no catalog rows detected in csv"))
		return
	}

	var refs []store.ProductReference
	if refsHeader, err := c.FormFile("references"); err == nil {
		refs, err = parseUploadedReferences(refsHeader)
		if err != nil {
			s.renderError(c, http.StatusBadRequest, err)
			return
		}
		if len(refs) == 0 {
			s.renderError(c, http.StatusBadRequest, errors.New("no references detected in csv"))
			return
		}
	}

	if err := s.catalog.Import(rows); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	resp := CatalogImportResponse{Rows: len(rows)}
	if refs != nil {
		if err := s.catalog.ReplaceReferences(refs); err != nil {
			s.renderError(c, http.StatusInternalServerError, err)
			return
		}
		resp.References = len(refs)
	}

	resp.Products = s.catalog.Products()
	logrus.WithFields(logrus.Fields{
		"file":       fileHeader.Filename,
		"rows":       resp.Rows,
		"references": resp.References,
		"products":   resp.Products,
	}).Info("catalog imported")
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCatalogRefresh(c *gin.Context) {
	if s.catalogSource == nil {
		s.renderError(c, http.StatusServiceUnavailable, backend.ErrNotConfigured)
		return
	}
	rows, err := s.catalog.Refresh(c.Request.Context())
	if err != nil {
		s.renderError(c, http.StatusBadGateway, err)
		return
	}
	c.JSON(http.StatusOK, CatalogImportResponse{Rows: rows, Products: s.catalog.Products()})
}

func (s *Server) handleReferences(c *gin.Context) {
	var req ReferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Product) == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("producto is required"))
		return
	}
	refs, err := s.catalog.References(c.Request.Context(), req.Product)
	if err != nil {
		s.renderError(c, http.StatusBadGateway, err)
		return
	}
	c.JSON(http.StatusOK, ReferencesResponse{References: refs})
}

func (s *Server) handleClassify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	index := recommend.TrafficIndex(req.Employees, req.Days, req.Hours)
	level := recommend.LevelForIndex(index)
	c.JSON(http.StatusOK, ClassifyResponse{Level: level, Ordinal: int(level), Index: index})
}

func (s *Server) handleSegment(c *gin.Context) {
	var req SegmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, SegmentResponse{Segment: recommend.ResolveSegment(req.Sector, req.Size, req.PublicTypes)})
}

func (s *Server) handleListPortfolios(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 0 {
		page = 0
	}
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	if pageSize <= 0 {
		pageSize = 25
	}

	rows, total, err := s.db.ListPortfolios(page*pageSize, pageSize)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]PortfolioDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, PortfolioFromModel(row))
	}
	c.JSON(http.StatusOK, PortfoliosResponse{Items: dtos, Total: total})
}

// parseUploadedReferences reads an uploaded references CSV without touching the store.
func parseUploadedReferences(header *multipart.FileHeader) ([]store.ProductReference, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return catalog.ParseReferencesCSV(file)
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func saveFormFile(header *multipart.FileHeader) (string, func(), error) {
	if header == nil {
		return "", nil, errors.New("file header is nil")
	}
	src, err := header.Open()
	if err != nil {
		return "", nil, err
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		return "", nil, err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }
	return tmp.Name(), cleanup, nil
}
