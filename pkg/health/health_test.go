package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func pass(context.Context) error { return nil }

func fail(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func serve(h http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func runN(c *check, n int) {
	for range n {
		c.run(context.Background())
	}
}

func TestLiveEndpoint(t *testing.T) {
	h := New(nil)
	h.Add(Liveness, "goroutines", pass)
	h.Add(Liveness, "db", fail("connection refused"))
	// Readiness checks never affect liveness.
	h.Add(Readiness, "redis", fail("down"))

	w := serve(h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	runN(h.checks[1], 2)
	assert.Equal(t, http.StatusOK, serve(h.LiveEndpoint).Code, "below threshold")

	runN(h.checks[1], 1)
	runN(h.checks[2], 3)
	w = serve(h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"db":"connection refused"}}`, w.Body.String())
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		ready  bool
		fails  int
		status int
		body   string
	}{
		{name: "NotReady", ready: false, status: http.StatusServiceUnavailable,
			body: `{"status":"unhealthy","checks":{"_readiness":"service is not ready"}}`},
		{name: "ReadyAndPassing", ready: true, status: http.StatusOK, body: `{"status":"ok"}`},
		{name: "ReadyWithFlakyBelowThreshold", ready: true, fails: 2, status: http.StatusOK, body: `{"status":"ok"}`},
		{name: "ReadyWithFailing", ready: true, fails: 3, status: http.StatusServiceUnavailable,
			body: `{"status":"unhealthy","checks":{"postgres":"ping database: refused"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(nil)
			h.Add(Readiness, "postgres", DatabasePing(pingerFunc(func(context.Context) error {
				return errors.New("refused")
			})))
			h.SetReady(tt.ready)
			runN(h.checks[0], tt.fails)

			w := serve(h.ReadyEndpoint)
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
			assert.Equal(t, tt.status == http.StatusOK, h.IsReady())
		})
	}
}

func TestThresholds(t *testing.T) {
	var failing bool
	h := New(nil)
	h.Add(Readiness, "dep", func(context.Context) error {
		if failing {
			return errors.New("bad")
		}
		return nil
	}, WithThresholds(1, 2), WithTimeout(50*time.Millisecond))
	h.SetReady(true)
	c := h.checks[0]

	failing = true
	assert.True(t, c.run(context.Background()), "one failure flips")
	assert.False(t, h.IsReady())

	failing = false
	assert.False(t, c.run(context.Background()))
	assert.False(t, h.IsReady(), "needs two passes")
	assert.True(t, c.run(context.Background()))
	assert.True(t, h.IsReady())
	assert.NoError(t, c.err())
}

func TestCheckTimeout(t *testing.T) {
	h := New(nil)
	h.Add(Liveness, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithTimeout(10*time.Millisecond), WithThresholds(1, 1))

	runN(h.checks[0], 1)
	assert.ErrorIs(t, h.checks[0].err(), context.DeadlineExceeded)
}

func TestStartLogsTransitions(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := New(zap.New(core))
	h.Add(Readiness, "dep", fail("unreachable"), WithThresholds(1, 1))
	h.SetReady(true)

	h.Start(context.Background(), 5*time.Millisecond)
	t.Cleanup(h.Stop)

	require.Eventually(t, func() bool { return !h.IsReady() }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return logs.FilterMessage("Check failing").Len() == 1
	}, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	h := New(nil)
	h.Add(Liveness, "a", pass)
	h.Add(Readiness, "b", fail("x"))
	h.SetReady(true)
	h.Start(context.Background(), time.Millisecond)
	defer h.Stop()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				serve(h.LiveEndpoint)
				serve(h.ReadyEndpoint)
				h.IsReady()
			}
		}()
	}
	wg.Wait()
}

func TestGoroutineCount(t *testing.T) {
	assert.NoError(t, GoroutineCount(1_000_000)(context.Background()))
	assert.Error(t, GoroutineCount(0)(context.Background()))
}

func TestPoolSaturation_EmptyStat(t *testing.T) {
	check := PoolSaturation(statFunc(func() *pgxpool.Stat { return &pgxpool.Stat{} }), 0.9)
	assert.NoError(t, check(context.Background()))
}

func TestRedisPing(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	check := RedisPing(client)
	require.NoError(t, check(context.Background()))

	mr.Close()
	assert.Error(t, check(context.Background()))
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type statFunc func() *pgxpool.Stat

func (f statFunc) Stat() *pgxpool.Stat { return f() }
