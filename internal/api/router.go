package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jengzang/floq-field/internal/config"
	"github.com/jengzang/floq-field/internal/handler"
	"github.com/jengzang/floq-field/internal/middleware"
	"github.com/jengzang/floq-field/internal/service"
	"github.com/jengzang/floq-field/internal/stream"
)

// Dependencies 路由所需的服务
type Dependencies struct {
	Field     *service.FieldService
	Timelapse *service.TimelapseService
	Hub       *stream.Hub
	Limiter   *middleware.RateLimiter
}

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger("/health", "/metrics"))

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Field API is running",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(deps.Limiter))
	api.Use(middleware.Auth(cfg.Server.JWTSecret))
	{
		// 聚类与汇聚信号
		fieldHandler := handler.NewFieldHandler(deps.Field)
		field := api.Group("/field")
		{
			field.POST("/tick", fieldHandler.Tick)
			field.POST("/cluster", fieldHandler.Cluster)
			field.POST("/signals", fieldHandler.Signals)
			field.POST("/reset", fieldHandler.Reset)
			field.GET("/summary", fieldHandler.Summary)
			if cfg.Server.Debug {
				field.GET("/hit-test", fieldHandler.HitTest)
			}
			if deps.Hub != nil {
				field.GET("/stream", handler.NewStreamHandler(deps.Hub).Stream)
			}
		}

		// 延时回放
		timelapseHandler := handler.NewTimelapseHandler(deps.Timelapse)
		timelapse := api.Group("/timelapse")
		{
			timelapse.GET("/frames", timelapseHandler.ListFrames)
			timelapse.GET("/frames/latest", timelapseHandler.LatestFrame)
			timelapse.GET("/markers", timelapseHandler.ListMarkers)
			timelapse.GET("/playback", timelapseHandler.Status)
			timelapse.POST("/playback/start", timelapseHandler.StartPlayback)
			timelapse.POST("/playback/stop", timelapseHandler.StopPlayback)
			timelapse.POST("/playback/seek", timelapseHandler.Seek)
			timelapse.GET("/playback/step", timelapseHandler.Step)
		}
	}

	return r
}
