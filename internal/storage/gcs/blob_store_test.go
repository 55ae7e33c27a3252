package gcs_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/lsst-sqre/lsst-io-analysis/internal/storage/gcs"
)

const bucketName = "lsst-io-reports"

// fakeGCS simulates the bucket metadata and multipart upload endpoints of the JSON API.
func fakeGCS(t *testing.T, uploads *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/b/"+bucketName):
			fmt.Fprintf(w, `{"name": %q}`, bucketName)
		case r.Method == http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintln(w, `{"error": {"code": 404, "message": "bucket not found"}}`)
		case strings.Contains(r.URL.Path, fmt.Sprintf("/upload/storage/v1/b/%s/o", bucketName)):
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			*uploads = append(*uploads, r.URL.Query().Get("name")+"|"+string(body))
			fmt.Fprintf(w, `{"name": %q, "bucket": %q}`, r.URL.Query().Get("name"), bucketName)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
}

func clientOptions(url string) []option.ClientOption {
	return []option.ClientOption{option.WithEndpoint(url), option.WithoutAuthentication()}
}

func TestNewValidation(t *testing.T) {
	_, err := gcs.New(nil, gcs.Config{Bucket: bucketName})
	assert.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()
	_, err = gcs.New(client, gcs.Config{})
	assert.Error(t, err)
}

func TestDialAndPutObject(t *testing.T) {
	var uploads []string
	server := fakeGCS(t, &uploads)
	defer server.Close()

	store, err := gcs.Dial(context.Background(), gcs.Config{Bucket: bucketName}, zap.NewNop(), clientOptions(server.URL)...)
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	uri, err := store.PutObject(context.Background(), "reports/inventory.csv", "text/csv", bytes.NewReader([]byte("url,handle\n")))
	require.NoError(t, err)
	assert.Equal(t, "gs://"+bucketName+"/reports/inventory.csv", uri)
	require.Len(t, uploads, 1)
	assert.True(t, strings.HasPrefix(uploads[0], "reports/inventory.csv|"))
	assert.Contains(t, uploads[0], "url,handle")
}

func TestDialMissingBucket(t *testing.T) {
	var uploads []string
	server := fakeGCS(t, &uploads)
	defer server.Close()

	_, err := gcs.Dial(context.Background(), gcs.Config{Bucket: "missing"}, nil, clientOptions(server.URL)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestPutObjectServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := storage.NewClient(context.Background(), clientOptions(server.URL)...)
	require.NoError(t, err)
	store, err := gcs.New(client, gcs.Config{Bucket: bucketName})
	require.NoError(t, err)
	defer client.Close()

	_, err = store.PutObject(context.Background(), "inventory.csv", "text/csv", bytes.NewReader([]byte("data")))
	assert.Error(t, err)

	_, err = store.PutObject(context.Background(), " ", "text/csv", bytes.NewReader([]byte("data")))
	assert.Error(t, err)
}
