package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"consultor-integral/internal/recommend"
	"consultor-integral/internal/report"
	"consultor-integral/internal/wizard"
)

// Config drives the calculator client.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// ErrNotConfigured is returned when no calculator URL is set.
var ErrNotConfigured = errors.New("backend url not configured")

// Endpoint paths exposed by the consumption calculator.
const (
	PathPortfolioData = "/api_portfolio_data"
	PathReferences    = "/api_get_referencias"
	PathCalculate     = "/api_consultor_integral"
	PathRecalculate   = "/api_recalcular_consumo"
	PathSavePortfolio = "/save_portfolio"
)

// Client talks to the external consumption calculator.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cacheTTL   time.Duration
	cache      sync.Map // map[string]cacheEntry
}

type cacheEntry struct {
	at         time.Time
	references []string
}

// NewClient constructs a calculator client if configuration is valid.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, ErrNotConfigured
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		cacheTTL:   ttl,
	}, nil
}

// CompanyData is the company block shared by both calculation requests.
type CompanyData struct {
	Women       int            `json:"numMujeres"`
	Men         int            `json:"numHombres"`
	Days        int            `json:"diasLaborales"`
	Hours       int            `json:"horasLaborales"`
	PublicTypes []string       `json:"tipoPublico"`
	Sector      string         `json:"sector"`
	Proportions map[string]int `json:"proporciones"`
	Visitors    int            `json:"numVisitantes"`
}

// CalculationRequest asks for the monthly consumption of every selected product.
type CalculationRequest struct {
	CompanyData
	Products   []string           `json:"productos"`
	References map[string]*string `json:"referencias"`
}

// RecalculationRequest asks for one product's consumption with a specific reference.
type RecalculationRequest struct {
	CompanyData
	Product   string `json:"producto"`
	Reference string `json:"referencia"`
}

// CompanyFromProfile builds the company block; absent proportions are sent as an empty object
// and absent visitors as zero.
func CompanyFromProfile(p wizard.CompanyProfile) CompanyData {
	data := CompanyData{
		Women:       p.Women,
		Men:         p.Men,
		Days:        p.DaysPerMonth,
		Hours:       p.HoursPerDay,
		PublicTypes: append([]string{}, p.PublicTypes...),
		Sector:      p.Sector,
		Proportions: map[string]int{},
	}
	if p.Proportions != nil {
		data.Proportions[wizard.PublicAdministrative] = p.Proportions.Administrative
		data.Proportions[wizard.PublicOperational] = p.Proportions.Operational
	}
	if p.Visitors != nil {
		data.Visitors = *p.Visitors
	}
	return data
}

// LoadCatalog fetches the product catalog. On any failure it returns an empty catalog along
// with the error so callers can degrade.
func (c *Client) LoadCatalog(ctx context.Context) (recommend.Catalog, error) {
	if c == nil {
		return recommend.Catalog{}, ErrNotConfigured
	}
	body, err := c.do(ctx, http.MethodGet, PathPortfolioData, nil)
	if err != nil {
		return recommend.Catalog{}, err
	}
	catalog, err := recommend.DecodeCatalog(body)
	if err != nil {
		return recommend.Catalog{}, err
	}
	return catalog, nil
}

// ListReferences returns every selectable reference of a product. Results are cached per
// product for the configured TTL.
func (c *Client) ListReferences(ctx context.Context, product string) ([]string, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}
	key := strings.TrimSpace(product)
	if key == "" {
		return nil, nil
	}

	if entry, ok := c.cache.Load(key); ok {
		cached := entry.(cacheEntry)
		if time.Since(cached.at) < c.cacheTTL {
			return append([]string(nil), cached.references...), nil
		}
		c.cache.Delete(key)
	}

	var payload struct {
		References []string `json:"referencias"`
		Error      string   `json:"error"`
	}
	if err := c.postJSON(ctx, PathReferences, map[string]string{"producto": key}, &payload); err != nil {
		return nil, err
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("list references: %s", payload.Error)
	}
	refs := payload.References
	if refs == nil {
		refs = []string{}
	}
	c.cache.Store(key, cacheEntry{at: time.Now(), references: refs})
	return append([]string(nil), refs...), nil
}

// Calculate runs the bulk consumption calculation.
func (c *Client) Calculate(ctx context.Context, req CalculationRequest) (recommend.ConsumptionResult, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}
	result := recommend.ConsumptionResult{}
	if err := c.postJSON(ctx, PathCalculate, req, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Recalculate computes one product's consumption for the given reference. The calculator
// answers {consumo_mensual} or {error}.
func (c *Client) Recalculate(ctx context.Context, req RecalculationRequest) (recommend.Consumption, error) {
	if c == nil {
		return recommend.Consumption{}, ErrNotConfigured
	}
	var payload struct {
		Monthly json.RawMessage `json:"consumo_mensual"`
		Error   string          `json:"error"`
	}
	if err := c.postJSON(ctx, PathRecalculate, req, &payload); err != nil {
		return recommend.Consumption{}, err
	}
	if payload.Error != "" {
		return recommend.Consumption{}, fmt.Errorf("recalculate %s: %s", req.Product, payload.Error)
	}
	monthly, applicable, err := recommend.DecodeMonthly(payload.Monthly)
	if err != nil {
		return recommend.Consumption{}, err
	}
	return recommend.Consumption{Monthly: monthly, Applicable: applicable, ReferenceUsed: req.Reference}, nil
}

// SavePortfolio forwards a portfolio record to the calculator's persistence endpoint.
func (c *Client) SavePortfolio(ctx context.Context, record report.PortfolioRecord) error {
	if c == nil {
		return ErrNotConfigured
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode portfolio: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, PathSavePortfolio, payload)
	return err
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	body, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &failure) == nil && failure.Error != "" {
			return nil, fmt.Errorf("backend %s status %d: %s", path, resp.StatusCode, failure.Error)
		}
		return nil, fmt.Errorf("backend %s status %d", path, resp.StatusCode)
	}
	return body, nil
}
