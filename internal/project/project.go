// Package project defines the validated representation of a documentation
// project hosted on LSST the Docs (LTD).
package project

import (
	"fmt"
	"strings"
	"time"

	"github.com/lsst-sqre/lsst-io-analysis/internal/urlnorm"
)

// Kind classifies a documentation project.
type Kind string

// Kind values. Projects default to guides unless the search index says otherwise.
const (
	KindDocument Kind = "document"
	KindGuide    Kind = "guide"
)

// knownSeries lists the document series handles published on lsst.io.
var knownSeries = map[string]struct{}{
	"DMTN":     {},
	"DMTR":     {},
	"ITTN":     {},
	"LDM":      {},
	"LPM":      {},
	"LSE":      {},
	"PSTN":     {},
	"RTN":      {},
	"SCTR":     {},
	"SITCOMTN": {},
	"SMTN":     {},
	"SQR":      {},
	"TSTN":     {},
}

// KnownSeries reports whether series is one of the recognized document series.
func KnownSeries(series string) bool {
	_, ok := knownSeries[strings.ToUpper(series)]
	return ok
}

// InvalidURLError is returned when a URL field fails normalization.
type InvalidURLError = urlnorm.InvalidURLError

// SearchMetadata carries the optional enrichment found in the search index.
// The zero value means no enrichment is available.
type SearchMetadata struct {
	Series      *string
	Title       *string
	Description *string
	Handle      *string
	ContentType *string
}

// Product is one documentation project. Build it with NewProduct.
type Product struct {
	URL          string
	RepoURL      string
	Title        string
	Description  *string
	Handle       *string
	Series       *string
	Kind         Kind
	EditionCount int
	UpdatedAt    *time.Time
	// InDocushare marks projects also archived in DocuShare. LTD does not
	// report it, so ingest leaves it false.
	InDocushare  bool
}

// Input gathers the raw values used to build a Product.
type Input struct {
	URL          string
	RepoURL      string
	Title        string
	EditionCount int
	UpdatedAt    *time.Time
	Metadata     *SearchMetadata
	InDocushare  bool
}

// ValidationError reports a field that violates a Product invariant.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewProduct validates in and returns the normalized Product.
func NewProduct(in Input) (Product, error) {
	root, err := urlnorm.Root(in.URL)
	if err != nil {
		return Product{}, fmt.Errorf("url: %w", err)
	}

	repoURL := ""
	if strings.TrimSpace(in.RepoURL) != "" {
		repo, err := urlnorm.Repo(in.RepoURL)
		if err != nil {
			return Product{}, fmt.Errorf("repo_url: %w", err)
		}
		repoURL = repo.String()
	}

	if in.EditionCount < 0 {
		return Product{}, &ValidationError{Field: "editions", Reason: "must not be negative"}
	}

	var updated *time.Time
	if in.UpdatedAt != nil {
		u := in.UpdatedAt.UTC()
		updated = &u
	}

	meta := SearchMetadata{}
	if in.Metadata != nil {
		meta = *in.Metadata
	}

	title := in.Title
	if meta.Title != nil && *meta.Title != "" {
		title = *meta.Title
	}

	return Product{
		URL:          root.String(),
		RepoURL:      repoURL,
		Title:        title,
		Description:  meta.Description,
		Handle:       meta.Handle,
		Series:       meta.Series,
		Kind:         kindFor(meta.ContentType),
		EditionCount: in.EditionCount,
		UpdatedAt:    updated,
		InDocushare:  in.InDocushare,
	}, nil
}

func kindFor(contentType *string) Kind {
	if contentType != nil && strings.EqualFold(*contentType, string(KindDocument)) {
		return KindDocument
	}
	return KindGuide
}
