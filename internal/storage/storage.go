// Package storage resolves a report output path to a blob store.
//
// A path of the form gs://bucket/object is written to Google Cloud Storage;
// anything else is treated as a local file path.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/lsst-sqre/lsst-io-analysis/internal/storage/gcs"
	"github.com/lsst-sqre/lsst-io-analysis/internal/storage/local"
)

// Scheme identifies the backend of a Target.
type Scheme string

// Supported schemes.
const (
	SchemeFile Scheme = "file"
	SchemeGCS  Scheme = "gs"
)

const gcsPrefix = "gs://"

// BlobStore writes one object and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
	Close() error
}

// Target is a parsed output path.
type Target struct {
	Scheme Scheme
	// Root is the bucket for SchemeGCS and the parent directory for SchemeFile.
	Root   string
	Object string
}

// ParseTarget splits an output path into its backend, root and object name.
func ParseTarget(output string) (Target, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return Target{}, fmt.Errorf("output path is required")
	}
	if rest, ok := strings.CutPrefix(output, gcsPrefix); ok {
		bucket, object, _ := strings.Cut(rest, "/")
		if bucket == "" || object == "" || strings.HasSuffix(object, "/") {
			return Target{}, fmt.Errorf("output %q: expected gs://bucket/object", output)
		}
		return Target{Scheme: SchemeGCS, Root: bucket, Object: object}, nil
	}
	if strings.HasSuffix(output, string(filepath.Separator)) {
		return Target{}, fmt.Errorf("output %q: expected a file path", output)
	}
	return Target{Scheme: SchemeFile, Root: filepath.Dir(output), Object: filepath.Base(output)}, nil
}

// Output writes a report to a single resolved target.
type Output struct {
	target Target
	store  BlobStore
}

// Open resolves output and connects to its backend. opts apply to the GCS
// client only.
func Open(ctx context.Context, output string, logger *zap.Logger, opts ...option.ClientOption) (*Output, error) {
	target, err := ParseTarget(output)
	if err != nil {
		return nil, err
	}
	var store BlobStore
	switch target.Scheme {
	case SchemeGCS:
		store, err = gcs.Dial(ctx, gcs.Config{Bucket: target.Root}, logger, opts...)
	default:
		store, err = local.New(local.Config{BaseDir: target.Root})
	}
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", output, err)
	}
	return NewOutput(target, store), nil
}

// NewOutput binds an existing store to target.
func NewOutput(target Target, store BlobStore) *Output {
	return &Output{target: target, store: store}
}

// Target returns the resolved output.
func (o *Output) Target() Target {
	return o.target
}

// Save writes data to the target object and returns its URI.
func (o *Output) Save(ctx context.Context, contentType string, data []byte) (string, error) {
	uri, err := o.store.PutObject(ctx, o.target.Object, contentType, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("save %s: %w", o.target.Object, err)
	}
	return uri, nil
}

// Close releases the backend.
func (o *Output) Close() error {
	return o.store.Close()
}
