package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	obserrors "github.com/kubeadapt/kueue-observer/internal/errors"
	"github.com/kubeadapt/kueue-observer/internal/observability"
)

func testPollerConfig(name string) PollerConfig {
	return PollerConfig{
		Name:     name,
		Resource: "test",
		Interval: 10 * time.Millisecond,
		Timeout:  time.Second,
	}
}

func counterValue(t *testing.T, c *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	pb := &dto.Metric{}
	require.NoError(t, c.WithLabelValues(labels...).(prometheus.Metric).Write(pb))
	return pb.GetCounter().GetValue()
}

func TestPoller_PendingBeforeFirstLanding(t *testing.T) {
	p := NewPoller(testPollerConfig("lq"), func(context.Context) (int, error) { return 1, nil },
		observability.NewMetrics(), nil)

	assert.Equal(t, StatePending, p.Result().State())
}

func TestPoller_LandsAndSyncs(t *testing.T) {
	var calls atomic.Int32
	p := NewPoller(testPollerConfig("lq"), func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}, observability.NewMetrics(), nil)

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.WaitForSync(ctx))

	r := p.Result()
	require.True(t, r.IsReady())
	v, _ := r.Data()
	assert.GreaterOrEqual(t, v, 1)

	// Keeps polling on the interval.
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestPoller_ErrorReplacesData(t *testing.T) {
	var fail atomic.Bool
	errs := obserrors.NewErrorCollector(obserrors.RealClock{})
	p := NewPoller(testPollerConfig("lq"), func(context.Context) (string, error) {
		if fail.Load() {
			return "", errors.New("boom")
		}
		return "ok", nil
	}, observability.NewMetrics(), errs)

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	require.Eventually(t, func() bool { return p.Result().IsReady() }, 2*time.Second, 5*time.Millisecond)

	fail.Store(true)
	require.Eventually(t, func() bool { return p.Result().State() == StateError }, 2*time.Second, 5*time.Millisecond)

	_, ok := p.Result().Data()
	assert.False(t, ok, "errored result must not expose the earlier data")
	assert.Contains(t, errs.GetActiveErrorCodes(), string(obserrors.ErrQueryFailed))

	fail.Store(false)
	require.Eventually(t, func() bool { return p.Result().IsReady() }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, errs.GetActiveErrors(), "success resolves the component's errors")
}

func TestPoller_LandDiscardsOlderSequence(t *testing.T) {
	m := observability.NewMetrics()
	p := NewPoller(testPollerConfig("lq"), func(context.Context) (string, error) { return "", nil }, m, nil)

	assert.True(t, p.land(2, Ready("second")))
	assert.False(t, p.land(1, Ready("first")), "older issue must not overwrite a newer landing")
	assert.False(t, p.land(2, Failed[string](errors.New("dup"))), "equal sequence is not newer")

	v, ok := p.Result().Data()
	require.True(t, ok)
	assert.Equal(t, "second", v)
	assert.Equal(t, float64(2), counterValue(t, m.StaleDiscarded, "test"))

	assert.True(t, p.land(3, Ready("third")))
	v, _ = p.Result().Data()
	assert.Equal(t, "third", v)
}

func TestPoller_DiscardsOutOfOrderLateResponse(t *testing.T) {
	m := observability.NewMetrics()
	release := make(chan struct{})
	var calls atomic.Int32

	p := NewPoller(testPollerConfig("pending/cq-shared"), func(ctx context.Context) (string, error) {
		n := calls.Add(1)
		if n == 1 {
			// First poll is slow: it returns only after a later poll has landed.
			select {
			case <-release:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		return fmt.Sprintf("call-%d", n), nil
	}, m, nil)

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	// Let several later polls land before the slow one returns.
	require.Eventually(t, func() bool {
		return p.Result().IsReady() && calls.Load() >= 4
	}, 2*time.Second, 5*time.Millisecond)
	close(release)

	require.Eventually(t, func() bool {
		return counterValue(t, m.StaleDiscarded, "test") >= 1
	}, 2*time.Second, 5*time.Millisecond)

	v, ok := p.Result().Data()
	require.True(t, ok)
	assert.NotEqual(t, "call-1", v, "late response of the first poll must be discarded")
}

func TestPoller_ConcurrentLandKeepsHighestSequence(t *testing.T) {
	p := NewPoller(testPollerConfig("lq"), func(context.Context) (int, error) { return 0, nil },
		observability.NewMetrics(), nil)

	var wg sync.WaitGroup
	for i := 1; i <= 200; i++ {
		wg.Add(1)
		go func(seq int) {
			defer wg.Done()
			p.land(uint64(seq), Ready(seq))
		}(i)
	}
	wg.Wait()

	v, ok := p.Result().Data()
	require.True(t, ok)
	assert.Equal(t, 200, v)
}

func TestPoller_StopCancelsInFlight(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	p := NewPoller(testPollerConfig("lq"), func(ctx context.Context) (int, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return 0, ctx.Err()
	}, observability.NewMetrics(), nil)

	require.NoError(t, p.Start(context.Background()))
	<-started

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	// Fetches cut short by Stop do not land.
	assert.Equal(t, StatePending, p.Result().State())

	// Idempotent.
	p.Stop()
}

func TestPoller_StopWithoutStart(t *testing.T) {
	p := NewPoller(testPollerConfig("lq"), func(context.Context) (int, error) { return 0, nil },
		observability.NewMetrics(), nil)

	p.Stop()
	require.NoError(t, p.Start(context.Background()), "Start after Stop is a no-op")
	assert.Equal(t, StatePending, p.Result().State())
}

func TestPoller_WaitForSyncTimeout(t *testing.T) {
	p := NewPoller(testPollerConfig("lq"), func(context.Context) (int, error) { return 0, nil },
		observability.NewMetrics(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.WaitForSync(ctx), context.DeadlineExceeded)
}
