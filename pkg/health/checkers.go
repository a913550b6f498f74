package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// GoroutineCount fails when more than limit goroutines are running.
func GoroutineCount(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("goroutine count %d exceeds %d", n, limit)
		}
		return nil
	}
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabasePing fails when the database does not answer a ping.
func DatabasePing(db Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping database")
		}
		return nil
	}
}

// PoolStater is satisfied by *pgxpool.Pool.
type PoolStater interface {
	Stat() *pgxpool.Stat
}

// PoolSaturation fails when the share of acquired connections reaches ratio.
func PoolSaturation(pool PoolStater, ratio float64) CheckFunc {
	return func(context.Context) error {
		st := pool.Stat()
		max := st.MaxConns()
		if max <= 0 {
			return nil
		}
		used := float64(st.AcquiredConns()) / float64(max)
		if used >= ratio {
			return errors.Errorf("pool saturated: %d/%d connections acquired", st.AcquiredConns(), max)
		}
		return nil
	}
}

// RedisPing fails when Redis does not answer PING.
func RedisPing(client redis.UniversalClient) CheckFunc {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Wrap(err, "ping redis")
		}
		return nil
	}
}
