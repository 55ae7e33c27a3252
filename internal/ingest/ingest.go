// Package ingest builds the inventory of LTD products.
//
// A run lists the product catalog, then ingests each product through a
// limiter.Limiter: product detail, editions, the rebuild date of the "main"
// edition and, when a MetadataLookup is configured, search index metadata.
// Records are returned in catalog order.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lsst-sqre/lsst-io-analysis/internal/datetime"
	"github.com/lsst-sqre/lsst-io-analysis/internal/id/uuid"
	"github.com/lsst-sqre/lsst-io-analysis/internal/limiter"
	"github.com/lsst-sqre/lsst-io-analysis/internal/metrics"
	"github.com/lsst-sqre/lsst-io-analysis/internal/project"
	"github.com/lsst-sqre/lsst-io-analysis/internal/search"
	"github.com/lsst-sqre/lsst-io-analysis/internal/urlnorm"
)

// DefaultCatalogBaseURL is the LTD Keeper API root.
const DefaultCatalogBaseURL = "https://keeper.lsst.codes"

// MainEditionSlug identifies the primary build of a product.
const MainEditionSlug = "main"

// Stage names the step of a product ingestion that failed.
type Stage string

// Ingestion stages.
const (
	StageDetail   Stage = "detail"
	StageEditions Stage = "editions"
	StageEdition  Stage = "edition"
	StageMetadata Stage = "metadata"
	StageRecord   Stage = "record"
)

// Fetcher issues a GET request and decodes the JSON response into v.
type Fetcher interface {
	GetJSON(ctx context.Context, rawURL string, v any) error
}

// MetadataLookup finds search index metadata by base URL. A nil result with
// a nil error means the index has no record for baseURL.
type MetadataLookup interface {
	Lookup(ctx context.Context, baseURL string) (*project.SearchMetadata, error)
}

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock supplies run timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithIDGenerator overrides the UUID v7 run ID generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(p *Pipeline) { p.ids = ids }
}

// WithClock overrides the wall clock used for run timestamps.
func WithClock(clock Clock) Option {
	return func(p *Pipeline) { p.clock = clock }
}

// Config controls a Pipeline.
type Config struct {
	// CatalogBaseURL is the LTD API root; the catalog lives at {CatalogBaseURL}/products/.
	CatalogBaseURL string
	// FailFast aborts the run on the first product failure instead of
	// reporting it alongside the successful records.
	FailFast bool
}

// CatalogUnavailableError reports that the product listing could not be read.
type CatalogUnavailableError struct {
	URL string
	Err error
}

func (e *CatalogUnavailableError) Error() string {
	return fmt.Sprintf("catalog %s unavailable: %v", e.URL, e.Err)
}

func (e *CatalogUnavailableError) Unwrap() error {
	return e.Err
}

// ProductError attributes a failure to one product and ingestion stage.
type ProductError struct {
	ProductURL string
	Stage      Stage
	Err        error
}

func (e *ProductError) Error() string {
	return fmt.Sprintf("product %s: %s: %v", e.ProductURL, e.Stage, e.Err)
}

func (e *ProductError) Unwrap() error {
	return e.Err
}

// Failure is a product that could not be ingested.
type Failure struct {
	ProductURL string
	Err        error
}

// Report is the outcome of one run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Records    []project.Product
	Failures   []Failure
}

type catalogResponse struct {
	Products []string `json:"products"`
}

type productResponse struct {
	PublishedURL string `json:"published_url"`
	DocRepo      string `json:"doc_repo"`
	Title        string `json:"title"`
}

type editionsResponse struct {
	Editions []string `json:"editions"`
}

type editionResponse struct {
	Slug        string  `json:"slug"`
	DateRebuilt *string `json:"date_rebuilt"`
}

// Pipeline ingests LTD products. It holds only read-only collaborators and is
// safe for concurrent use.
type Pipeline struct {
	fetcher Fetcher
	lookup  MetadataLookup
	limiter *limiter.Limiter
	cfg     Config
	logger  *zap.Logger
	ids     IDGenerator
	clock   Clock
}

// New constructs a Pipeline. lookup may be nil to disable search enrichment.
func New(fetcher Fetcher, lookup MetadataLookup, lim *limiter.Limiter, cfg Config, logger *zap.Logger, opts ...Option) *Pipeline {
	if cfg.CatalogBaseURL == "" {
		cfg.CatalogBaseURL = DefaultCatalogBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		fetcher: fetcher,
		lookup:  lookup,
		limiter: lim,
		cfg:     cfg,
		logger:  logger,
		ids:     uuid.New(),
		clock:   systemClock{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CatalogURL returns the product listing endpoint.
func (p *Pipeline) CatalogURL() string {
	return strings.TrimSuffix(p.cfg.CatalogBaseURL, "/") + "/products/"
}

// Run lists the catalog and ingests every product.
//
// Catalog and search backend failures abort the run. Other per-product
// failures are collected in Report.Failures, unless Config.FailFast is set.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	runID, err := p.ids.NewID()
	if err != nil {
		return Report{}, err
	}
	report := Report{RunID: runID, StartedAt: p.clock.Now()}
	logger := p.logger.With(zap.String("run_id", report.RunID))

	productURLs, err := p.ListProducts(ctx)
	if err != nil {
		return report, err
	}
	logger.Info("catalog listed",
		zap.Int("products", len(productURLs)),
		zap.Int("concurrency", p.limiter.Size()),
		zap.Bool("search_enabled", p.lookup != nil),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	units := make([]limiter.Unit[project.Product], len(productURLs))
	for i, productURL := range productURLs {
		units[i] = func(ctx context.Context) (project.Product, error) {
			record, err := p.IngestProduct(ctx, productURL)
			if err != nil {
				metrics.ObserveProduct(metrics.OutcomeError)
				if isSearchBackendError(err) {
					cancel()
				}
				return project.Product{}, err
			}
			metrics.ObserveProduct(metrics.OutcomeOK)
			return record, nil
		}
	}

	if p.cfg.FailFast {
		records, err := limiter.Gather(runCtx, p.limiter, units)
		if err != nil {
			return report, err
		}
		report.Records = records
	} else {
		results := limiter.GatherSettled(runCtx, p.limiter, units)
		for i, res := range results {
			if res.Err != nil {
				report.Failures = append(report.Failures, Failure{ProductURL: productURLs[i], Err: res.Err})
				continue
			}
			report.Records = append(report.Records, res.Value)
		}
		if err := firstSearchBackendError(report.Failures); err != nil {
			return report, err
		}
		// Units failing on a canceled caller context are not product failures.
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("ingest run %s aborted: %w", report.RunID, err)
		}
		for _, f := range report.Failures {
			logger.Warn("product skipped", zap.String("product_url", f.ProductURL), zap.Error(f.Err))
		}
	}

	report.FinishedAt = p.clock.Now()
	logger.Info("ingest complete",
		zap.Int("records", len(report.Records)),
		zap.Int("failures", len(report.Failures)),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

// ListProducts returns the product detail URLs from the catalog.
func (p *Pipeline) ListProducts(ctx context.Context) ([]string, error) {
	catalogURL := p.CatalogURL()
	var catalog catalogResponse
	if err := p.get(ctx, "catalog", catalogURL, &catalog); err != nil {
		return nil, &CatalogUnavailableError{URL: catalogURL, Err: err}
	}
	return catalog.Products, nil
}

// IngestProduct builds the record for the product at productURL.
func (p *Pipeline) IngestProduct(ctx context.Context, productURL string) (project.Product, error) {
	logger := p.logger.With(zap.String("product_url", productURL))

	var detail productResponse
	if err := p.get(ctx, "product", productURL, &detail); err != nil {
		return project.Product{}, &ProductError{ProductURL: productURL, Stage: StageDetail, Err: err}
	}

	var editions editionsResponse
	if err := p.get(ctx, "editions", editionsURL(productURL), &editions); err != nil {
		return project.Product{}, &ProductError{ProductURL: productURL, Stage: StageEditions, Err: err}
	}

	updated, err := p.mainEditionUpdated(ctx, editions.Editions)
	if err != nil {
		return project.Product{}, &ProductError{ProductURL: productURL, Stage: StageEdition, Err: err}
	}

	meta, err := p.metadata(ctx, detail.PublishedURL)
	if err != nil {
		return project.Product{}, &ProductError{ProductURL: productURL, Stage: StageMetadata, Err: err}
	}
	if meta.Series != nil && !project.KnownSeries(*meta.Series) {
		logger.Debug("unrecognized series", zap.String("series", *meta.Series))
	}

	record, err := project.NewProduct(project.Input{
		URL:          detail.PublishedURL,
		RepoURL:      detail.DocRepo,
		Title:        detail.Title,
		EditionCount: len(editions.Editions),
		UpdatedAt:    updated,
		Metadata:     meta,
	})
	if err != nil {
		return project.Product{}, &ProductError{ProductURL: productURL, Stage: StageRecord, Err: err}
	}
	logger.Debug("product ingested",
		zap.String("url", record.URL),
		zap.Int("editions", record.EditionCount),
	)
	return record, nil
}

// mainEditionUpdated scans editions in order and returns the parsed rebuild
// date of the first edition whose slug is "main".
func (p *Pipeline) mainEditionUpdated(ctx context.Context, editionURLs []string) (*time.Time, error) {
	for _, editionURL := range editionURLs {
		var edition editionResponse
		if err := p.get(ctx, "edition", editionURL, &edition); err != nil {
			return nil, err
		}
		if edition.Slug != MainEditionSlug {
			continue
		}
		updated, err := datetime.Parse(edition.DateRebuilt)
		if err != nil {
			return nil, fmt.Errorf("edition %s: %w", editionURL, err)
		}
		return updated, nil
	}
	return nil, nil
}

// metadata returns the search metadata for publishedURL, or the all-absent
// value when search is disabled or the index has no record.
func (p *Pipeline) metadata(ctx context.Context, publishedURL string) (*project.SearchMetadata, error) {
	if p.lookup == nil {
		metrics.ObserveSearchLookup(metrics.LookupDisabled)
		return &project.SearchMetadata{}, nil
	}
	baseURL, err := urlnorm.WithTrailingSlash(publishedURL)
	if err != nil {
		return nil, err
	}
	meta, err := p.lookup.Lookup(ctx, baseURL)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return &project.SearchMetadata{}, nil
	}
	return meta, nil
}

func (p *Pipeline) get(ctx context.Context, endpoint, rawURL string, v any) error {
	start := time.Now()
	err := p.fetcher.GetJSON(ctx, rawURL, v)
	metrics.ObserveRequest(endpoint, err, time.Since(start))
	return err
}

func editionsURL(productURL string) string {
	return strings.TrimSuffix(productURL, "/") + "/editions/"
}

func isSearchBackendError(err error) bool {
	var backend *search.BackendError
	return errors.As(err, &backend)
}

func firstSearchBackendError(failures []Failure) error {
	for _, f := range failures {
		if isSearchBackendError(f.Err) {
			return f.Err
		}
	}
	return nil
}
