// Package database owns the process-wide Postgres pool. The pool is dialed
// lazily, at most one dial is ever in flight, and once connected the pool is
// kept for the life of the process.
package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/quickblog-api/internal/metrics"
)

// DefaultConnectTimeout bounds a dial when none is configured.
const DefaultConnectTimeout = 10 * time.Second

// Pool is the subset of *pgxpool.Pool the service uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// DialFunc opens and verifies a pool.
type DialFunc func(ctx context.Context) (Pool, error)

// ConnectionError reports a failed attempt to reach the database.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("database connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Connector hands out the shared pool, dialing on first use.
type Connector struct {
	dial    DialFunc
	timeout time.Duration
	logger  *zap.Logger
	group   singleflight.Group

	mu     sync.RWMutex
	pool   Pool
	closed bool
}

// NewConnector returns a Connector that dials with dial under timeout.
func NewConnector(dial DialFunc, timeout time.Duration, logger *zap.Logger) *Connector {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connector{dial: dial, timeout: timeout, logger: logger}
}

// EnsureConnected returns the shared pool, dialing if needed. Concurrent
// callers share one dial; the dial itself is not canceled when a caller gives
// up, but each caller stops waiting when its own ctx ends. A failed dial
// leaves the connector disconnected so the next call retries.
func (c *Connector) EnsureConnected(ctx context.Context) (Pool, error) {
	if pool, err := c.current(); pool != nil || err != nil {
		return pool, err
	}

	ch := c.group.DoChan("connect", func() (any, error) {
		if pool, err := c.current(); pool != nil || err != nil {
			return pool, err
		}
		return c.connect(ctx)
	})

	select {
	case <-ctx.Done():
		return nil, &ConnectionError{Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		pool, _ := res.Val.(Pool)
		return pool, nil
	}
}

// Connected reports whether a pool has been established.
func (c *Connector) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pool != nil && !c.closed
}

// Close releases the pool. Later calls to EnsureConnected fail.
func (c *Connector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.pool != nil {
		c.pool.Close()
	}
}

func (c *Connector) current() (Pool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, &ConnectionError{Err: errConnectorClosed}
	}
	return c.pool, nil
}

var errConnectorClosed = errors.New("connector closed")

func (c *Connector) connect(ctx context.Context) (Pool, error) {
	dialCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	start := time.Now()
	pool, err := c.dial(dialCtx)
	if err == nil && pool == nil {
		err = errors.New("dialer returned no pool")
	}
	elapsed := time.Since(start)
	metrics.ObserveDBConnect(err == nil, elapsed)
	if err != nil {
		c.logger.Error("database connect failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		return nil, &ConnectionError{Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		pool.Close()
		return nil, &ConnectionError{Err: errConnectorClosed}
	}
	c.pool = pool
	c.logger.Info("database connected", zap.Duration("elapsed", elapsed))
	return pool, nil
}
