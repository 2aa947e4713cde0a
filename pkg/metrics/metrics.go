// Package metrics provides Prometheus collectors for novelkit.
package metrics

import (
	"bytes"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"

	"github.com/kittclouds/novelkit/pkg/apperr"
)

const (
	namespace = "novelkit"
)

var (
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Total number of storage facade operations",
		},
		[]string{"backend", "op", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "operation_duration_seconds",
			Help:      "Storage facade operation duration in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"backend", "op"},
	)

	BackendOpensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "backend_opens_total",
			Help:      "Total number of backend open attempts",
		},
		[]string{"backend", "status"},
	)

	SettingsMigrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settings",
			Name:      "migrations_total",
			Help:      "Settings blobs loaded, by whether migration changed them",
		},
		[]string{"changed"},
	)

	BackupOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "operations_total",
			Help:      "Total number of backup exports and imports",
		},
		[]string{"kind", "op", "status"},
	)
)

// Status returns the status label for err: "ok" or the error code.
func Status(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperr.CodeOf(err))
}

// ObserveStorage records one facade operation.
func ObserveStorage(backend, op string, start time.Time, err error) {
	StorageOperationsTotal.WithLabelValues(backend, op, Status(err)).Inc()
	StorageOperationDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

// Dump writes every novelkit family of the default registry in the
// Prometheus text format. Runtime and process collectors are left out.
func Dump(w io.Writer) error {
	return dump(w, prometheus.DefaultGatherer)
}

func dump(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), namespace+"_") {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile dumps the metrics to path through a temp file and rename, as the
// node_exporter textfile collector expects.
func WriteFile(path string) error {
	var buf bytes.Buffer
	if err := Dump(&buf); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
