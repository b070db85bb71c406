package cluster

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/floq-field/internal/models"
)

func TestWorkerRoundTrip(t *testing.T) {
	w := NewWorker(New(DefaultConfig()), 0)
	defer w.Close()
	ctx := context.Background()

	clusters, err := w.Cluster(ctx, tightGroup(), 15)
	require.NoError(t, err)
	require.Len(t, clusters, 1)

	ids, err := w.HitTest(ctx, clusters[0].X, clusters[0].Y, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{clusters[0].ID}, ids)

	now := time.Now()
	res, err := w.Signals(ctx, clusters, 15, now)
	require.NoError(t, err)
	assert.Empty(t, res.Convergences)

	states, err := w.Velocities(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, clusters[0].ID, states[0].ID)

	require.NoError(t, w.Reset(ctx))
	ids, err = w.HitTest(ctx, clusters[0].X, clusters[0].Y, 1)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestWorkerSerialisesConcurrentCallers(t *testing.T) {
	w := NewWorker(New(DefaultConfig()), 4)
	defer w.Close()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := w.Cluster(context.Background(), tightGroup(), 15)
			assert.NoError(t, err)
			assert.Len(t, out, 1)
		}()
	}
	wg.Wait()
}

func TestWorkerTickIsAtomic(t *testing.T) {
	w := NewWorker(New(DefaultConfig()), 4)
	defer w.Close()
	base := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			x := float64(i) * 1000
			tiles := []models.RawTile{
				{ID: fmt.Sprintf("g%d-a", i), X: x, Y: 0, R: 10, Count: 10},
				{ID: fmt.Sprintf("g%d-b", i), X: x + 5, Y: 5, R: 10, Count: 10},
			}
			// distinct seconds keep every pass outside the signal throttle
			pass, err := w.Tick(context.Background(), tiles, 15, base.Add(time.Duration(i)*time.Second))
			if !assert.NoError(t, err) || !assert.Len(t, pass.Clusters, 1) {
				return
			}
			assert.False(t, pass.Signals.Throttled)
			if assert.Len(t, pass.Velocities, 1) {
				assert.Equal(t, pass.Clusters[0].ID, pass.Velocities[0].ID)
			}
		}(i)
		go func() {
			defer wg.Done()
			_, err := w.Cluster(context.Background(), tightGroup(), 15)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestWorkerCancelledContext(t *testing.T) {
	w := NewWorker(New(DefaultConfig()), 0)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Cluster(ctx, tightGroup(), 15)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWorkerClosed(t *testing.T) {
	w := NewWorker(New(DefaultConfig()), 0)
	w.Close()
	w.Close()

	_, err := w.Cluster(context.Background(), tightGroup(), 15)
	assert.ErrorIs(t, err, ErrWorkerClosed)
	assert.ErrorIs(t, w.Reset(context.Background()), ErrWorkerClosed)
}
