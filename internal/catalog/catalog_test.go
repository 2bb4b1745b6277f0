package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BITS-DEVSEC/im-client/internal/api"
	"github.com/BITS-DEVSEC/im-client/internal/notify"
)

const catalogBody = `{"success":true,"data":[
	{"id":1,"name":"Motor","description":"","coverage_types":[
		{"id":1,"insurance_type_id":1,"name":"Third Party","description":""},
		{"id":3,"insurance_type_id":1,"name":"Comprehensive","description":""}]},
	{"id":2,"name":"Home","description":"","coverage_types":[]}
]}`

func newLoaderEnv(t *testing.T, baseURL string) (*Loader, *notify.Recorder) {
	t.Helper()
	client, err := api.NewClient(api.Config{BaseURL: baseURL, Timeout: 5 * time.Second}, zap.NewNop().Sugar())
	require.NoError(t, err)
	notes := &notify.Recorder{}
	return NewLoader(client, notes, zap.NewNop().Sugar()), notes
}

func TestOnTokenEmptyShortCircuits(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	loader, notes := newLoaderEnv(t, srv.URL)
	loader.OnToken(context.Background(), "")

	assert.Equal(t, int32(0), calls.Load())
	snap := loader.Snapshot()
	assert.False(t, snap.Loading)
	assert.Equal(t, "No access token available", snap.Err)

	sent := notes.All()
	require.Len(t, sent, 1)
	assert.Equal(t, "Please log in to view insurance types", sent[0].Message)
}

func TestOnTokenFetchesCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/insurance_types", r.URL.Path)
		assert.Equal(t, "Bearer tok1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(catalogBody))
	}))
	defer srv.Close()

	loader, _ := newLoaderEnv(t, srv.URL)
	loader.OnToken(context.Background(), "tok1")

	snap := loader.Snapshot()
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Err)
	require.Len(t, snap.InsuranceTypes, 2)

	motor, ok := loader.FindByName("MOTOR")
	require.True(t, ok)
	assert.Equal(t, 1, motor.ID)
	assert.Len(t, motor.CoverageTypes, 2)

	home, ok := loader.FindByID(2)
	require.True(t, ok)
	assert.Equal(t, "Home", home.Name)

	_, ok = loader.FindByName("boat")
	assert.False(t, ok)
}

func TestOnTokenSkipsSameToken(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(catalogBody))
	}))
	defer srv.Close()

	loader, _ := newLoaderEnv(t, srv.URL)
	loader.OnToken(context.Background(), "tok1")
	loader.OnToken(context.Background(), "tok1")
	assert.Equal(t, int32(1), calls.Load())

	loader.OnToken(context.Background(), "tok2")
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchFailureSetsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"error":"Unauthorized"}`))
	}))
	defer srv.Close()

	loader, notes := newLoaderEnv(t, srv.URL)
	loader.OnToken(context.Background(), "expired")

	snap := loader.Snapshot()
	assert.Equal(t, "Unauthorized", snap.Err)
	sent := notes.All()
	require.Len(t, sent, 1)
	assert.Equal(t, notify.Red, sent[0].Color)
}
