package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copyforge/internal/models"
)

// fakeS3 keeps PUT bodies in memory and serves them back on GET.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestReports(t *testing.T) (*Reports, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	r, err := New(Config{
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "secret",
		Bucket:    "reports",
	})
	require.NoError(t, err)
	require.NotNil(t, r)
	return r, fake
}

func TestNewWithoutConfig(t *testing.T) {
	r, err := New(Config{Endpoint: "http://localhost:9000"})
	assert.NoError(t, err)
	assert.Nil(t, r)
}

func TestUploadAndDownload(t *testing.T) {
	r, fake := newTestReports(t)
	result := &models.BatchResult{
		BatchID:   uuid.New(),
		ShopID:    uuid.New(),
		Kind:      models.BatchOptimize,
		Total:     2,
		Succeeded: 1,
		Failed:    1,
		Status:    models.BatchPartial,
		Results: []models.Outcome{
			{ProductID: uuid.New(), Outcome: models.OutcomeSuccess},
			{ProductID: uuid.New(), Outcome: models.OutcomeFailure, Error: "provider down", ErrorKind: "provider_unavailable"},
		},
	}

	key, err := r.Upload(context.Background(), result)
	require.NoError(t, err)
	assert.Equal(t, Key(result.ShopID, result.BatchID), key)

	stored, ok := fake.objects["/reports/"+key]
	require.True(t, ok, "object stored under path-style key")
	var raw map[string]any
	require.NoError(t, json.Unmarshal(stored, &raw))
	assert.Equal(t, "partial", raw["status"])

	got, err := r.Download(context.Background(), result.ShopID, result.BatchID)
	require.NoError(t, err)
	assert.Equal(t, result.Failed, got.Failed)
	assert.Equal(t, "provider down", got.Results[1].Error)
}

func TestDownloadMissing(t *testing.T) {
	r, _ := newTestReports(t)
	_, err := r.Download(context.Background(), uuid.New(), uuid.New())
	assert.Error(t, err)
}

func TestPresignedURL(t *testing.T) {
	r, _ := newTestReports(t)
	key := Key(uuid.New(), uuid.New())
	u, err := r.PresignedURL(context.Background(), key, 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.Contains(u, "/reports/"+key))
	assert.Contains(t, u, "X-Amz-Signature=")
}
