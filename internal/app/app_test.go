package app

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpapi "github.com/visaboard/visaboard/internal/api/http"
	"github.com/visaboard/visaboard/internal/config"
)

const sampleCSV = "Employer,Sum Approval,Sum Denial,Zip\nA,100,5,27601\nA,50,0,27601\nB,70,10,27705\n"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dataDir := t.TempDir()
	objects := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(objects, "h1b.csv"), []byte(sampleCSV), 0644))

	cfg := config.DefaultConfig()
	cfg.DataDir = dataDir
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Storage.Path = objects
	cfg.Dataset.Path = "h1b.csv"
	return cfg
}

func getJSON(t *testing.T, client *http.Client, url string, out interface{}) int {
	t.Helper()
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestApp_StartServeStop(t *testing.T) {
	a, err := New(testConfig(t), nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, a.Start(ctx))
	assert.Error(t, a.Start(ctx), "second start should fail")

	client := &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
	base := "http://" + a.Addr()

	var health HealthResponse
	require.Equal(t, http.StatusOK, getJSON(t, client, base+"/health", &health))
	assert.Equal(t, "healthy", health.Status)
	assert.True(t, health.DatasetLoaded, "preload should have read the dataset")

	var employers httpapi.EmployersResponse
	require.Equal(t, http.StatusOK, getJSON(t, client, base+"/v1/employers/approval?threshold=60", &employers))
	assert.Equal(t, 2, employers.Count)
	assert.Equal(t, "A", employers.Rows[0].Employer)
	assert.Equal(t, 100.0, employers.Rows[0].Value)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(stopCtx))
	assert.False(t, a.loader.Loaded())

	// stopping twice is a no-op
	require.NoError(t, a.Stop(stopCtx))
}

func TestApp_PreloadFailureIsNotFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dataset.Path = "missing.csv"

	a, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop(context.Background())

	client := &http.Client{Timeout: 5 * time.Second, Transport: &http.Transport{DisableKeepAlives: true}}
	base := "http://" + a.Addr()

	var health HealthResponse
	require.Equal(t, http.StatusOK, getJSON(t, client, base+"/health", &health))
	assert.False(t, health.DatasetLoaded)

	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, client, base+"/v1/view", nil))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Type = "ftp"

	_, err := New(cfg, nil)
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestOpenStorage_Unsupported(t *testing.T) {
	_, err := OpenStorage(context.Background(), config.StorageConfig{Type: "ftp"})
	assert.Error(t, err)
}

func TestNewLoader_Delimiter(t *testing.T) {
	cfg := testConfig(t)
	cfg.Resolve()
	cfg.Dataset.Path = "h1b.txt"
	cfg.Dataset.Delimiter = "|"
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Storage.Path, "h1b.txt"),
		[]byte("Employer|Sum Approval|Sum Denial|Zip\nA|1|2|3\n"), 0644))

	store, err := OpenStorage(context.Background(), cfg.Storage)
	require.NoError(t, err)
	loader, err := NewLoader(cfg, store, nil)
	require.NoError(t, err)

	ds, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())
	assert.Equal(t, 2.0, ds.At(0).SumDenial)
}
