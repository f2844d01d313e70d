// Package metrics exposes engine and server gauges over Prometheus:
// registered gauges, scraped over an optional HTTP endpoint.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Source is anything that can report the engine's current occupancy.
type Source interface {
	OpenFileCount() int
	InodesInUse() int
	BlocksInUse() int
}

// Metrics holds the gauges this server exposes.
type Metrics struct {
	registry      *prometheus.Registry
	openFiles     prometheus.GaugeFunc
	inodesInUse   prometheus.GaugeFunc
	blocksInUse   prometheus.GaugeFunc
	activeSession prometheus.Gauge
}

// New registers gauges backed by source and returns the Metrics handle.
// activeSessions is updated explicitly via SetActiveSessions since session
// occupancy lives in the server, not the engine.
func New(source Source) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{registry: reg}
	m.openFiles = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "tfs",
		Name:      "open_files",
		Help:      "Number of currently-open file handles.",
	}, func() float64 { return float64(source.OpenFileCount()) })

	m.inodesInUse = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "tfs",
		Name:      "inodes_in_use",
		Help:      "Number of allocated inodes.",
	}, func() float64 { return float64(source.InodesInUse()) })

	m.blocksInUse = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "tfs",
		Name:      "blocks_in_use",
		Help:      "Number of allocated data blocks.",
	}, func() float64 { return float64(source.BlocksInUse()) })

	m.activeSession = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tfs",
		Name:      "active_sessions",
		Help:      "Number of mounted sessions.",
	})

	reg.MustRegister(m.openFiles, m.inodesInUse, m.blocksInUse, m.activeSession)
	return m
}

// SetActiveSessions updates the active-sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSession.Set(float64(n))
}

// Handler returns the HTTP handler the server's optional --metrics-addr
// listener serves.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server exposing Handler() on addr, and stops it
// when ctx is cancelled. A blank addr disables the listener entirely.
func Serve(ctx context.Context, addr string, m *Metrics) error {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		return err
	}
}
