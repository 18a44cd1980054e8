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

package db

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ridgeway-labs/sessioncore/internal/apperror"
	"github.com/ridgeway-labs/sessioncore/internal/logging"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Config is the Go port of DB::DBConfig: everything needed to dial and
// size a pool of connections to one schema.
type Config struct {
	DSN string `mapstructure:"dsn" yaml:"dsn" json:"dsn" validate:"required"`

	MinConnections     int           `mapstructure:"min_connections" yaml:"min_connections" json:"min_connections" validate:"gte=0"`
	MaxConnections     int           `mapstructure:"max_connections" yaml:"max_connections" json:"max_connections" validate:"required,gtefield=MinConnections"`
	AcquireTimeout     time.Duration `mapstructure:"acquire_timeout" yaml:"acquire_timeout" json:"acquire_timeout" validate:"required"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" json:"idle_timeout" validate:"required"`
	ValidationInterval time.Duration `mapstructure:"validation_interval" yaml:"validation_interval" json:"validation_interval" validate:"required"`
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold" yaml:"slow_query_threshold" json:"slow_query_threshold"`
}

// Statistics is the Go port of DBConnectionPool::Statistics.
type Statistics struct {
	TotalConnections  int
	ActiveConnections int
	IdleConnections   int
	PendingRequests   int
	TotalAcquired     uint64
	TotalCreated      uint64
	TotalDestroyed    uint64
	LastCleanup       time.Time
}

// pooledConn is one lazily-created backing connection plus its last-used
// timestamp, tracked for idle eviction.
type pooledConn struct {
	conn     *Conn
	lastUsed time.Time
}

// Pool is a bounded, lazily-grown pool of *Conn, the Go port of
// DBConnectionPool. A dedicated validator goroutine replaces the
// original's cleanup_thread_worker; acquire/release replace the RAII
// PooledConnection with an explicit Release call plus a context-bound
// Acquire, since Go has no destructors to lean on.
type Pool struct {
	cfg Config
	log logging.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	idle    []*pooledConn
	active  map[*Conn]struct{}
	waiters int

	total             atomic.Int64
	totalAcquired     atomic.Uint64
	totalCreated      atomic.Uint64
	totalDestroyed    atomic.Uint64
	lastCleanup       atomic.Value // time.Time

	shuttingDown atomic.Bool
	stopValidate chan struct{}
	validateDone chan struct{}
}

const (
	ErrorAcquireTimeout apperror.CodeError = iota + apperror.MinPkgPool
	ErrorPoolShutdown
	ErrorDialFailed
)

func init() {
	if apperror.ExistInMapMessage(apperror.MinPkgPool) {
		panic("error code collision in package db (pool)")
	}
	apperror.RegisterIdFctMessage(apperror.MinPkgPool, func(c apperror.CodeError) string {
		switch c {
		case ErrorAcquireTimeout:
			return "db: acquire_connection timed out"
		case ErrorPoolShutdown:
			return "db: pool is shut down"
		case ErrorDialFailed:
			return "db: failed to dial new connection"
		}
		return "db: pool error"
	})
}

// NewPool builds a Pool against cfg. It does not connect eagerly beyond
// MinConnections (spec §4.9's lazy-growth invariant); call Initialize to
// prime the minimum and start the validator goroutine.
func NewPool(cfg Config, log logging.Logger) *Pool {
	p := &Pool{
		cfg:          cfg,
		log:          log,
		active:       make(map[*Conn]struct{}),
		stopValidate: make(chan struct{}),
		validateDone: make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	p.lastCleanup.Store(time.Time{})
	return p
}

// Initialize dials MinConnections eagerly and starts the background
// validator, the Go port of DBConnectionPool::initialize.
func (p *Pool) Initialize(ctx context.Context) error {
	for i := 0; i < p.cfg.MinConnections; i++ {
		c, err := p.dial(ctx)
		if err != nil {
			return err
		}
		p.total.Add(1)
		p.mu.Lock()
		p.idle = append(p.idle, &pooledConn{conn: c, lastUsed: time.Now()})
		p.mu.Unlock()
	}

	go p.validateLoop()
	return nil
}

func (p *Pool) dial(ctx context.Context) (*Conn, error) {
	gdb, err := gorm.Open(mysql.Open(p.cfg.DSN), &gorm.Config{
		Logger: NewGormLogger(p.log, true, p.cfg.SlowQueryThreshold),
	})
	if err != nil {
		return nil, ErrorDialFailed.ErrorParent(err)
	}

	c := NewConn(gdb)
	if err = c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, ErrorDialFailed.ErrorParent(err)
	}

	p.totalCreated.Add(1)
	return c, nil
}

// Acquire returns an idle connection, dialing a new one if the pool has
// not yet reached MaxConnections, or blocking until one frees up or
// timeout elapses otherwise (spec §4.9, testable property 7).
func (p *Pool) Acquire(ctx context.Context, timeout time.Duration) (*Conn, error) {
	if p.shuttingDown.Load() {
		return nil, ErrorPoolShutdown.Error(nil)
	}

	deadline := time.Now().Add(timeout)

	p.mu.Lock()
	for {
		if n := len(p.idle); n > 0 {
			pc := p.idle[n-1]
			p.idle = p.idle[:n-1]
			p.active[pc.conn] = struct{}{}
			p.mu.Unlock()

			p.totalAcquired.Add(1)
			return pc.conn, nil
		}

		if int(p.total.Load()) < p.cfg.MaxConnections {
			// Reserve the slot before unlocking so concurrent acquirers
			// cannot all dial past MaxConnections.
			p.total.Add(1)
			p.mu.Unlock()

			c, err := p.dial(ctx)
			if err != nil {
				p.total.Add(-1)
				return nil, err
			}

			p.mu.Lock()
			p.active[c] = struct{}{}
			p.mu.Unlock()

			p.totalAcquired.Add(1)
			return c, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			p.mu.Unlock()
			return nil, ErrorAcquireTimeout.Error(nil)
		}

		p.waiters++
		waitDone := make(chan struct{})
		timer := time.AfterFunc(remaining, func() {
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
			close(waitDone)
		})

		p.cond.Wait()

		select {
		case <-waitDone:
		default:
			timer.Stop()
		}
		p.waiters--

		if time.Now().After(deadline) {
			p.mu.Unlock()
			return nil, ErrorAcquireTimeout.Error(nil)
		}
	}
}

// Release returns c to the idle set, waking one waiter if any is parked
// in Acquire.
func (p *Pool) Release(c *Conn) {
	p.mu.Lock()
	delete(p.active, c)
	p.idle = append(p.idle, &pooledConn{conn: c, lastUsed: time.Now()})
	p.mu.Unlock()

	p.cond.Signal()
}

// Statistics returns a point-in-time snapshot, the Go port of
// DBConnectionPool::get_statistics.
func (p *Pool) Statistics() Statistics {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Statistics{
		TotalConnections:  int(p.total.Load()),
		ActiveConnections: len(p.active),
		IdleConnections:   len(p.idle),
		PendingRequests:   p.waiters,
		TotalAcquired:     p.totalAcquired.Load(),
		TotalCreated:      p.totalCreated.Load(),
		TotalDestroyed:    p.totalDestroyed.Load(),
		LastCleanup:       p.lastCleanup.Load().(time.Time),
	}
}

// validateLoop is the Go port of cleanup_thread_worker: on each tick it
// pings idle connections, evicts both invalid and over-idle ones down to
// MinConnections, and dials new idle connections while the pool is below
// MinConnections.
func (p *Pool) validateLoop() {
	defer close(p.validateDone)

	ticker := time.NewTicker(p.cfg.ValidationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopValidate:
			return
		case <-ticker.C:
			p.validateOnce()
		}
	}
}

func (p *Pool) validateOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ValidationInterval)
	defer cancel()

	p.mu.Lock()
	candidates := make([]*pooledConn, len(p.idle))
	copy(candidates, p.idle)
	p.mu.Unlock()

	now := time.Now()
	var dead []*pooledConn
	for _, pc := range candidates {
		if err := pc.conn.Ping(ctx); err != nil {
			dead = append(dead, pc)
			continue
		}
		if now.Sub(pc.lastUsed) > p.cfg.IdleTimeout {
			dead = append(dead, pc)
		}
	}

	p.mu.Lock()
	keepMin := p.cfg.MinConnections
	evicted := 0
	for _, d := range dead {
		if int(p.total.Load()) <= keepMin {
			break
		}
		for i, pc := range p.idle {
			if pc == d {
				p.idle = append(p.idle[:i], p.idle[i+1:]...)
				break
			}
		}
		p.total.Add(-1)
		p.totalDestroyed.Add(1)
		evicted++
		go func(pc *pooledConn) { _ = pc.conn.Close() }(d)
	}
	p.lastCleanup.Store(now)
	p.mu.Unlock()

	for !p.shuttingDown.Load() {
		p.mu.Lock()
		short := int(p.total.Load()) < p.cfg.MinConnections
		if short {
			p.total.Add(1)
		}
		p.mu.Unlock()
		if !short {
			break
		}
		c, err := p.dial(ctx)
		if err != nil {
			p.total.Add(-1)
			break
		}
		p.Release(c)
	}

	p.log.WithFields(logging.Fields{"evicted": evicted, "candidates": len(dead)}).Debug("db: pool validation pass")
}

// Shutdown stops the validator goroutine and closes every idle and
// active connection, the Go port of DBConnectionPool::shutdown.
func (p *Pool) Shutdown() {
	if !p.shuttingDown.CompareAndSwap(false, true) {
		return
	}

	close(p.stopValidate)
	<-p.validateDone

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pc := range p.idle {
		_ = pc.conn.Close()
	}
	p.idle = nil

	for c := range p.active {
		_ = c.Close()
	}
	p.active = make(map[*Conn]struct{})

	p.cond.Broadcast()
}
