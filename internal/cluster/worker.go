package cluster

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jengzang/floq-field/internal/metrics"
	"github.com/jengzang/floq-field/internal/models"
)

// ErrWorkerClosed is returned by calls made after Close
var ErrWorkerClosed = errors.New("cluster worker is closed")

// DefaultMailboxSize is the buffer size of the worker mailbox
const DefaultMailboxSize = 64

type requestKind int

const (
	requestCluster requestKind = iota
	requestSignals
	requestHitTest
	requestReset
	requestVelocities
	requestTick
)

// request is one message to the worker goroutine
type request struct {
	ctx  context.Context
	kind requestKind

	tiles    []models.RawTile
	clusters []models.SocialCluster
	zoom     float64
	now      time.Time

	x, y, radius float64

	reply chan response
}

// response carries whatever the request kind produces
type response struct {
	clusters   []models.SocialCluster
	signals    models.SignalResult
	ids        []string
	velocities []models.CentroidState
	pass       Pass
	err        error
}

// Pass is one tick run as a single worker message: clustering, signals
// and the velocity table they left behind
type Pass struct {
	Clusters   []models.SocialCluster
	Signals    models.SignalResult
	Velocities []models.CentroidState
}

// Worker hosts a single Engine on its own goroutine.
//
// All engine state is owned by that goroutine; callers talk to it through
// a buffered mailbox and receive replies on per-request channels. Requests
// queue when callers outpace the worker.
type Worker struct {
	engine  *Engine
	mailbox chan request
	closeCh chan struct{}
	doneCh  chan struct{}
	once    sync.Once
}

// NewWorker starts a worker goroutine that owns engine.
// mailboxSize <= 0 uses DefaultMailboxSize.
func NewWorker(engine *Engine, mailboxSize int) *Worker {
	if mailboxSize <= 0 {
		mailboxSize = DefaultMailboxSize
	}
	w := &Worker{
		engine:  engine,
		mailbox: make(chan request, mailboxSize),
		closeCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go w.run()
	return w
}

// run is the only goroutine that touches the engine
func (w *Worker) run() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.closeCh:
			return
		case req := <-w.mailbox:
			metrics.WorkerQueueDepth.Set(float64(len(w.mailbox)))
			if err := req.ctx.Err(); err != nil {
				req.reply <- response{err: err}
				continue
			}
			req.reply <- w.handle(req)
		}
	}
}

func (w *Worker) handle(req request) response {
	switch req.kind {
	case requestCluster:
		return response{clusters: w.cluster(req.tiles, req.zoom)}

	case requestSignals:
		return response{signals: w.signals(req.clusters, req.zoom, req.now)}

	case requestHitTest:
		return response{ids: w.engine.HitTest(req.x, req.y, req.radius)}

	case requestReset:
		w.engine.Reset()
		metrics.EngineResets.Inc()
		return response{}

	case requestVelocities:
		return response{velocities: w.engine.Velocities()}

	case requestTick:
		clusters := w.cluster(req.tiles, req.zoom)
		return response{pass: Pass{
			Clusters:   clusters,
			Signals:    w.signals(clusters, req.zoom, req.now),
			Velocities: w.engine.Velocities(),
		}}
	}
	return response{}
}

func (w *Worker) cluster(tiles []models.RawTile, zoom float64) []models.SocialCluster {
	timer := prometheus.NewTimer(metrics.ClusterTickDuration)
	out := w.engine.Cluster(tiles, zoom)
	timer.ObserveDuration()

	st := w.engine.LastStats()
	metrics.ClustersEmitted.Add(float64(st.Clusters))
	metrics.TilesDropped.WithLabelValues("privacy").Add(float64(st.Dropped))
	metrics.TilesDropped.WithLabelValues("invalid").Add(float64(st.Invalid))
	return out
}

func (w *Worker) signals(clusters []models.SocialCluster, zoom float64, now time.Time) models.SignalResult {
	res := w.engine.Signals(clusters, zoom, now)
	if res.Throttled {
		metrics.SignalsThrottled.Inc()
	} else {
		metrics.ConvergenceEvents.Add(float64(len(res.Convergences)))
	}
	return res
}

// do posts a request and waits for its reply
func (w *Worker) do(ctx context.Context, req request) (response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req.ctx = ctx
	req.reply = make(chan response, 1)

	select {
	case <-w.closeCh:
		return response{}, ErrWorkerClosed
	default:
	}

	select {
	case w.mailbox <- req:
		metrics.WorkerQueueDepth.Set(float64(len(w.mailbox)))
	case <-ctx.Done():
		return response{}, ctx.Err()
	case <-w.closeCh:
		return response{}, ErrWorkerClosed
	}

	select {
	case resp := <-req.reply:
		return resp, resp.err
	case <-ctx.Done():
		return response{}, ctx.Err()
	case <-w.doneCh:
		return response{}, ErrWorkerClosed
	}
}

// Tick clusters the tiles and runs convergence detection on the result in
// one message, so no other caller's request lands in between
func (w *Worker) Tick(ctx context.Context, tiles []models.RawTile, zoom float64, now time.Time) (Pass, error) {
	resp, err := w.do(ctx, request{kind: requestTick, tiles: tiles, zoom: zoom, now: now})
	return resp.pass, err
}

// Cluster runs a clustering pass on the worker
func (w *Worker) Cluster(ctx context.Context, tiles []models.RawTile, zoom float64) ([]models.SocialCluster, error) {
	resp, err := w.do(ctx, request{kind: requestCluster, tiles: tiles, zoom: zoom})
	return resp.clusters, err
}

// Signals runs a convergence pass on the worker
func (w *Worker) Signals(ctx context.Context, clusters []models.SocialCluster, zoom float64, now time.Time) (models.SignalResult, error) {
	resp, err := w.do(ctx, request{kind: requestSignals, clusters: clusters, zoom: zoom, now: now})
	return resp.signals, err
}

// HitTest queries the worker's last clustering output
func (w *Worker) HitTest(ctx context.Context, x, y, radius float64) ([]string, error) {
	resp, err := w.do(ctx, request{kind: requestHitTest, x: x, y: y, radius: radius})
	return resp.ids, err
}

// Reset clears the worker engine's history
func (w *Worker) Reset(ctx context.Context) error {
	_, err := w.do(ctx, request{kind: requestReset})
	return err
}

// Velocities returns the worker engine's current centroid states
func (w *Worker) Velocities(ctx context.Context) ([]models.CentroidState, error) {
	resp, err := w.do(ctx, request{kind: requestVelocities})
	return resp.velocities, err
}

// Close stops the worker goroutine and waits for it to exit
func (w *Worker) Close() {
	w.once.Do(func() {
		close(w.closeCh)
	})
	<-w.doneCh
}
