package metrics

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/novelkit/pkg/apperr"
)

func TestStatus(t *testing.T) {
	assert.Equal(t, "ok", Status(nil))
	assert.Equal(t, "not_found", Status(apperr.NotFound("novel", "x")))
	assert.Equal(t, "unknown", Status(errors.New("boom")))
}

func TestObserveStorage(t *testing.T) {
	ok := StorageOperationsTotal.WithLabelValues("test-backend", "get", "ok")
	failed := StorageOperationsTotal.WithLabelValues("test-backend", "get", "not_found")
	before, beforeFailed := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	ObserveStorage("test-backend", "get", time.Now(), nil)
	ObserveStorage("test-backend", "get", time.Now(), nil)
	ObserveStorage("test-backend", "get", time.Now(), apperr.NotFound("novel", "x"))

	assert.Equal(t, before+2, testutil.ToFloat64(ok))
	assert.Equal(t, beforeFailed+1, testutil.ToFloat64(failed))
}

func TestDump(t *testing.T) {
	ObserveStorage("dump-backend", "list", time.Now(), nil)

	var buf bytes.Buffer
	require.NoError(t, Dump(&buf))
	out := buf.String()
	assert.Contains(t, out, "# TYPE novelkit_storage_operations_total counter")
	assert.Contains(t, out, `novelkit_storage_operations_total{backend="dump-backend",op="list",status="ok"}`)
	assert.NotContains(t, out, "go_goroutines")

	path := filepath.Join(t.TempDir(), "novelkit.prom")
	require.NoError(t, WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "novelkit_storage_operation_duration_seconds")
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
