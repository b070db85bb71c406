package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/floq-field/internal/cluster"
	"github.com/jengzang/floq-field/internal/config"
	"github.com/jengzang/floq-field/internal/middleware"
	"github.com/jengzang/floq-field/internal/service"
	"github.com/jengzang/floq-field/internal/timelapse"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router    *gin.Engine
	timelapse *service.TimelapseService
}

func newTestServer(t *testing.T, mutate func(*config.Config)) testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Debug = true
	if mutate != nil {
		mutate(cfg)
	}

	worker := cluster.NewWorker(cluster.New(cfg.Field.Cluster()), cfg.Field.MailboxSize)
	t.Cleanup(worker.Close)
	field := service.NewFieldService(worker, nil)

	ring, err := timelapse.NewRing(cfg.Timelapse.RingCapacity)
	require.NoError(t, err)
	ctrl := timelapse.NewController(ring, field.Snapshot, cfg.ControllerOptions()...)
	tl := service.NewTimelapseService(ctrl, nil, nil, cfg.Timelapse.CaptureTick, 0)

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow)
	t.Cleanup(limiter.Close)

	r := SetupRouter(cfg, Dependencies{Field: field, Timelapse: tl, Limiter: limiter})
	return testServer{router: r, timelapse: tl}
}

func (s testServer) do(t *testing.T, method, target string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w.Code, env
}

func tickBody(dx float64) gin.H {
	return gin.H{
		"zoom": 15,
		"tiles": []gin.H{
			{"id": "a1", "x": 100 + dx, "y": 300, "r": 10, "count": 10, "vibe": "hype"},
			{"id": "a2", "x": 105 + dx, "y": 305, "r": 10, "count": 10, "vibe": "hype"},
			{"id": "b1", "x": 300 - dx, "y": 300, "r": 10, "count": 8, "vibe": "chill"},
		},
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	code, _ := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "field_worker_queue_depth")
}

func TestFieldEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	code, env := s.do(t, http.MethodPost, "/api/v1/field/tick", tickBody(0))
	require.Equal(t, http.StatusOK, code)

	var tick struct {
		Clusters []struct {
			ID    string `json:"id"`
			X     float64
			Y     float64
			Count int    `json:"count"`
			Vibe  string `json:"vibe"`
		} `json:"clusters"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tick))
	require.Len(t, tick.Clusters, 2)
	assert.Equal(t, 20, tick.Clusters[0].Count)
	assert.Equal(t, "hype", tick.Clusters[0].Vibe)
	assert.NotContains(t, string(env.Data), `"a1"`, "tile ids never leave the engine")

	code, env = s.do(t, http.MethodGet, "/api/v1/field/hit-test?x=102.5&y=302.5&radius=1", nil)
	require.Equal(t, http.StatusOK, code)
	var hit struct {
		IDs []string `json:"ids"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &hit))
	assert.Equal(t, []string{tick.Clusters[0].ID}, hit.IDs)

	code, _ = s.do(t, http.MethodGet, "/api/v1/field/hit-test?x=abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(t, http.MethodPost, "/api/v1/field/cluster", tickBody(0))
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "cohesionScore")

	code, env = s.do(t, http.MethodPost, "/api/v1/field/signals", gin.H{"zoom": 15, "clusters": []gin.H{}})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "convergences")

	code, env = s.do(t, http.MethodGet, "/api/v1/field/summary", nil)
	require.Equal(t, http.StatusOK, code)
	var summary struct {
		Clusters int            `json:"clusters"`
		Members  int            `json:"members"`
		Vibes    map[string]int `json:"vibes"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 2, summary.Clusters)
	assert.Equal(t, 20, summary.Vibes["hype"])

	code, _ = s.do(t, http.MethodPost, "/api/v1/field/reset", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/field/tick", "not an object")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGeoTilesNeedViewport(t *testing.T) {
	s := newTestServer(t, nil)

	code, env := s.do(t, http.MethodPost, "/api/v1/field/tick", gin.H{
		"zoom":  15,
		"tiles": []gin.H{{"id": "g", "lat": 52.5, "lon": 13.4, "r": 5, "count": 4}},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "viewport")
}

func TestHitTestHiddenWithoutDebug(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.Server.Debug = false })

	code, _ := s.do(t, http.MethodGet, "/api/v1/field/hit-test?x=1&y=1", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAuthGuardsAPI(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.Server.JWTSecret = "secret" })

	code, _ := s.do(t, http.MethodPost, "/api/v1/field/reset", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestTimelapseEndpoints(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Timelapse.SnapshotInterval = time.Nanosecond
	})

	code, _ := s.do(t, http.MethodPost, "/api/v1/field/tick", tickBody(0))
	require.Equal(t, http.StatusOK, code)
	require.True(t, s.timelapse.CaptureOnce())
	time.Sleep(time.Millisecond)
	require.True(t, s.timelapse.CaptureOnce())

	code, env := s.do(t, http.MethodGet, "/api/v1/timelapse/frames", nil)
	require.Equal(t, http.StatusOK, code)
	var frames struct {
		Frames []struct {
			Timestamp int64     `json:"timestamp"`
			Storms    []float32 `json:"storms"`
		} `json:"frames"`
		Source string `json:"source"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &frames))
	assert.Equal(t, "ring", frames.Source)
	require.Len(t, frames.Frames, 2)
	assert.Len(t, frames.Frames[0].Storms, 6, "two clusters")

	code, _ = s.do(t, http.MethodGet, "/api/v1/timelapse/frames/latest", nil)
	assert.Equal(t, http.StatusNotFound, code, "no archive configured")

	code, _ = s.do(t, http.MethodPost, "/api/v1/timelapse/playback/seek", gin.H{"position": 0.5})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/timelapse/playback/start", nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/timelapse/playback/seek", gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(t, http.MethodPost, "/api/v1/timelapse/playback/seek", gin.H{"position": 1})
	require.Equal(t, http.StatusOK, code)
	var status service.PlaybackStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, 1, status.Index)

	code, env = s.do(t, http.MethodGet, "/api/v1/timelapse/playback/step", nil)
	require.Equal(t, http.StatusOK, code)
	var step struct {
		Frame  *struct{ Timestamp int64 } `json:"frame"`
		Status service.PlaybackStatus     `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &step))
	require.NotNil(t, step.Frame)
	assert.Equal(t, frames.Frames[1].Timestamp, step.Frame.Timestamp)
	assert.False(t, step.Status.Playing)

	code, env = s.do(t, http.MethodGet, "/api/v1/timelapse/markers?since=0", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "markers")

	code, _ = s.do(t, http.MethodPost, "/api/v1/timelapse/playback/stop", nil)
	assert.Equal(t, http.StatusOK, code)
}
