/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	appconfig "github.com/ridgeway-labs/sessioncore/config"
	"github.com/ridgeway-labs/sessioncore/db"
	"github.com/ridgeway-labs/sessioncore/internal/logging"
	"github.com/ridgeway-labs/sessioncore/metrics"
	"github.com/ridgeway-labs/sessioncore/network/packet"
	"github.com/ridgeway-labs/sessioncore/network/server"
	"github.com/ridgeway-labs/sessioncore/network/session"
)

// protocolEcho is the one built-in protocol number this binary wires up
// out of the box: it echoes every received frame back to the sender, so
// a freshly configured deployment has something to point a health check
// at before any application-specific protocol package is plugged in.
const protocolEcho uint16 = 0

func main() {
	var configPath string
	var metricsAddr string

	root := &cobra.Command{
		Use:   "loginserver",
		Short: "Sharded session gateway with a pooled MySQL backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, metricsAddr)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "loginserver.yaml", "path to the configuration file")
	root.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address the Prometheus /metrics endpoint listens on")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root.SetContext(ctx)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, metricsAddr string) error {
	cfg, cerr := appconfig.Load(configPath)
	if cerr != nil {
		return cerr
	}

	log := logging.New(os.Stderr, cfg.Logging.ParsedLevel())

	collectors := metrics.New(cfg.Metrics)
	if err := collectors.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}
	go serveMetrics(metricsAddr, log)

	registry := db.NewRegistry()
	for _, dbcfg := range cfg.Database {
		poolCfg := db.Config{
			DSN:                dbcfg.DSN(),
			MinConnections:     dbcfg.PoolMinSize,
			MaxConnections:     dbcfg.PoolMaxSize,
			AcquireTimeout:     time.Duration(dbcfg.ConnectionTimeoutSec) * time.Second,
			IdleTimeout:        time.Duration(dbcfg.PoolIdleTimeoutSec) * time.Second,
			ValidationInterval: time.Duration(dbcfg.PoolValidationIntervalSec) * time.Second,
			SlowQueryThreshold: dbcfg.SlowQueryThreshold,
		}
		if _, err := registry.Open(ctx, dbcfg.Name, poolCfg, log); err != nil {
			return err
		}
	}
	defer registry.ShutdownAll()

	srv := server.New(server.Config{
		SectionCount:      cfg.Listen.SectionCount,
		ReactorWorkers:    cfg.Listen.ReactorWorkers,
		ReactorQueueDepth: cfg.Listen.ReactorQueueDepth,
		HardTaskWorkers:   cfg.Listen.HardTaskWorkers,
	}, newSessionFactory(registry), log)

	go pollMetrics(ctx, srv, registry, collectors)

	log.WithFields(logging.Fields{"address": cfg.Listen.Address}).Info("loginserver: listening")
	return srv.Listen(ctx, cfg.Listen.ParsedNetwork().Code(), cfg.Listen.Address)
}

// metricsPollInterval is how often pollMetrics refreshes the
// section/pool/accept gauges, the Go analogue of the original's optional
// performance-monitor thread (spec §5).
const metricsPollInterval = time.Second

// pollMetrics periodically copies Section.Snapshot and Pool.Statistics
// readings into collectors, and the Server's cumulative AcceptCount into
// the accept_total counter, until ctx is canceled. Nothing else in this
// binary feeds the Prometheus collectors, so without this loop
// /metrics would report zeros forever.
func pollMetrics(ctx context.Context, srv *server.Server, registry *db.Registry, collectors *metrics.Collectors) {
	ticker := time.NewTicker(metricsPollInterval)
	defer ticker.Stop()

	var lastAccepted uint64
	poolDeltas := make(map[string]db.Statistics)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, sec := range srv.Sections() {
				snap := sec.Snapshot()
				collectors.ObserveSection(sec.ID(), snap.FPS, snap.RecvTPS, snap.SendTPS)
			}

			for name, pool := range registry.Pools() {
				stats := pool.Statistics()
				prev := poolDeltas[name]
				collectors.ObservePool(
					stats.TotalConnections, stats.ActiveConnections, stats.IdleConnections, stats.PendingRequests,
					stats.TotalAcquired-prev.TotalAcquired,
					stats.TotalCreated-prev.TotalCreated,
					stats.TotalDestroyed-prev.TotalDestroyed,
				)
				poolDeltas[name] = stats
			}

			if accepted := srv.AcceptCount(); accepted > lastAccepted {
				collectors.AcceptTotal.Add(float64(accepted - lastAccepted))
				lastAccepted = accepted
			}
		}
	}
}

// newSessionFactory builds the per-connection Session factory. registry
// is captured so application-specific handlers registered here can reach
// the database layer; only the built-in echo protocol is wired by
// default.
func newSessionFactory(registry *db.Registry) server.SessionFactory {
	return func(conn net.Conn, sink session.Sink, log logging.Logger) *session.Session {
		sess := session.New(conn, log, sink)
		sess.RegisterHandler(protocolEcho, func(s *session.Session, protocolNo uint16, body []byte) {
			s.Send(packet.FromBody(protocolNo, body))
		})
		return sess
	}
}

func serveMetrics(addr string, log logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.CheckError(logging.ErrorLevel, logging.InfoLevel, "metrics: server stopped", err)
	}
}
