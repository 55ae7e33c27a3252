// Package search looks up supplementary project metadata in the Algolia
// documentation index.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/algolia/algoliasearch-client-go/v3/algolia/opt"
	algolia "github.com/algolia/algoliasearch-client-go/v3/algolia/search"
	"go.uber.org/zap"

	"github.com/lsst-sqre/lsst-io-analysis/internal/metrics"
	"github.com/lsst-sqre/lsst-io-analysis/internal/project"
)

// DefaultIndex is the index queried when none is configured.
const DefaultIndex = "document_dev"

// Indexed field names.
const (
	fieldBaseURL     = "baseUrl"
	fieldHandle      = "handle"
	fieldTitle       = "h1"
	fieldDescription = "description"
	fieldSeries      = "series"
	fieldContentType = "contentType"
)

var retrievedFields = []string{fieldHandle, fieldTitle, fieldDescription, fieldSeries, fieldContentType}

// Index is the subset of the Algolia index API used for lookups.
type Index interface {
	Search(query string, opts ...interface{}) (algolia.QueryRes, error)
}

// BackendError reports a failed query, as opposed to a query with no hits.
type BackendError struct {
	BaseURL string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("search index query for %q: %v", e.BaseURL, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Config identifies the Algolia application and index.
type Config struct {
	AppID     string
	APIKey    string
	IndexName string
}

// Client resolves base URLs to SearchMetadata.
type Client struct {
	index  Index
	logger *zap.Logger
}

// New builds a Client over an existing index handle.
func New(index Index, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{index: index, logger: logger}
}

// NewAlgolia builds a Client backed by the hosted Algolia index.
func NewAlgolia(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.AppID == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("algolia app id and api key are required")
	}
	name := cfg.IndexName
	if name == "" {
		name = DefaultIndex
	}
	client := algolia.NewClient(cfg.AppID, cfg.APIKey)
	return New(client.InitIndex(name), logger), nil
}

// FilterForBaseURL returns a filter expression matching records whose
// baseUrl equals baseURL exactly.
func FilterForBaseURL(baseURL string) string {
	escaped := strings.NewReplacer(`"`, `\"`, `'`, `\'`).Replace(baseURL)
	return fmt.Sprintf(`%s:"%s"`, fieldBaseURL, escaped)
}

// Lookup returns the metadata of the first record indexed under baseURL.
// It returns nil, nil when the index has no such record.
func (c *Client) Lookup(ctx context.Context, baseURL string) (*project.SearchMetadata, error) {
	res, err := c.index.Search("",
		ctx,
		opt.Filters(FilterForBaseURL(baseURL)),
		opt.AttributesToRetrieve(retrievedFields...),
	)
	if err != nil {
		metrics.ObserveSearchLookup(metrics.LookupError)
		return nil, &BackendError{BaseURL: baseURL, Err: err}
	}
	if len(res.Hits) == 0 {
		metrics.ObserveSearchLookup(metrics.LookupMiss)
		c.logger.Debug("no search record", zap.String("base_url", baseURL))
		return nil, nil
	}
	metrics.ObserveSearchLookup(metrics.LookupHit)
	if len(res.Hits) > 1 {
		c.logger.Debug("multiple search records; using the first",
			zap.String("base_url", baseURL),
			zap.Int("hits", len(res.Hits)),
		)
	}
	return metadataFromHit(res.Hits[0]), nil
}

func metadataFromHit(hit map[string]interface{}) *project.SearchMetadata {
	return &project.SearchMetadata{
		Series:      stringField(hit, fieldSeries),
		Title:       stringField(hit, fieldTitle),
		Description: stringField(hit, fieldDescription),
		Handle:      stringField(hit, fieldHandle),
		ContentType: stringField(hit, fieldContentType),
	}
}

func stringField(hit map[string]interface{}, key string) *string {
	raw, ok := hit[key]
	if !ok || raw == nil {
		return nil
	}
	s, ok := raw.(string)
	if !ok {
		s = fmt.Sprint(raw)
	}
	return &s
}
