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

// Package metrics exposes the FPS/TPS/pool counters the original source
// tracked ad hoc on ServerBase and NetworkSection (update_fps_info,
// update_recv_tps_info, update_send_tps_info, update_accept_tps_info) as
// Prometheus collectors, grounded on the client library the pack's
// prometheus package wraps.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors groups every gauge/counter this module publishes. Register
// it once against a prometheus.Registerer at startup.
type Collectors struct {
	SectionFPS     *prometheus.GaugeVec
	SectionRecvTPS *prometheus.GaugeVec
	SectionSendTPS *prometheus.GaugeVec

	AcceptTotal prometheus.Counter

	PoolTotalConnections  prometheus.Gauge
	PoolActiveConnections prometheus.Gauge
	PoolIdleConnections   prometheus.Gauge
	PoolPendingRequests   prometheus.Gauge
	PoolAcquiredTotal     prometheus.Counter
	PoolCreatedTotal      prometheus.Counter
	PoolDestroyedTotal    prometheus.Counter
}

// New builds the collector set with the given metric name prefix.
func New(namespace string) *Collectors {
	c := &Collectors{
		SectionFPS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "section", Name: "fps",
			Help: "Section worker loop iterations per second.",
		}, []string{"section_id"}),
		SectionRecvTPS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "section", Name: "recv_tps",
			Help: "Packets received per second, per section.",
		}, []string{"section_id"}),
		SectionSendTPS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "section", Name: "send_tps",
			Help: "Packets sent per second, per section.",
		}, []string{"section_id"}),
		AcceptTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "server", Name: "accept_total",
			Help: "Total accepted connections since startup.",
		}),
		PoolTotalConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "db_pool", Name: "total_connections",
			Help: "Connections currently open (idle + active).",
		}),
		PoolActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "db_pool", Name: "active_connections",
			Help: "Connections currently checked out.",
		}),
		PoolIdleConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "db_pool", Name: "idle_connections",
			Help: "Connections currently idle in the pool.",
		}),
		PoolPendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "db_pool", Name: "pending_requests",
			Help: "Acquire calls currently blocked waiting for a connection.",
		}),
		PoolAcquiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "db_pool", Name: "acquired_total",
			Help: "Total successful Acquire calls.",
		}),
		PoolCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "db_pool", Name: "created_total",
			Help: "Total connections dialed.",
		}),
		PoolDestroyedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "db_pool", Name: "destroyed_total",
			Help: "Total connections closed by the validator.",
		}),
	}
	return c
}

// Register adds every collector to reg.
func (c *Collectors) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		c.SectionFPS, c.SectionRecvTPS, c.SectionSendTPS,
		c.AcceptTotal,
		c.PoolTotalConnections, c.PoolActiveConnections, c.PoolIdleConnections,
		c.PoolPendingRequests, c.PoolAcquiredTotal, c.PoolCreatedTotal, c.PoolDestroyedTotal,
	}
	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// ObserveSection publishes one section's current FPS/TPS snapshot under
// its section id label.
func (c *Collectors) ObserveSection(sectionID uint32, fps, recvTPS, sendTPS uint64) {
	label := strconv.FormatUint(uint64(sectionID), 10)
	c.SectionFPS.WithLabelValues(label).Set(float64(fps))
	c.SectionRecvTPS.WithLabelValues(label).Set(float64(recvTPS))
	c.SectionSendTPS.WithLabelValues(label).Set(float64(sendTPS))
}

// ObservePool publishes a db.Pool statistics snapshot. Pool.Statistics
// is intentionally not imported here to keep metrics free of a db
// dependency; callers pass the already-extracted fields.
func (c *Collectors) ObservePool(total, active, idle, pending int, acquiredDelta, createdDelta, destroyedDelta uint64) {
	c.PoolTotalConnections.Set(float64(total))
	c.PoolActiveConnections.Set(float64(active))
	c.PoolIdleConnections.Set(float64(idle))
	c.PoolPendingRequests.Set(float64(pending))
	c.PoolAcquiredTotal.Add(float64(acquiredDelta))
	c.PoolCreatedTotal.Add(float64(createdDelta))
	c.PoolDestroyedTotal.Add(float64(destroyedDelta))
}
