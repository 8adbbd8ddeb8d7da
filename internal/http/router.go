package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/outfitmatch-backend/internal/http/handlers"
	httpMW "github.com/yungbote/outfitmatch-backend/internal/http/middleware"
	"github.com/yungbote/outfitmatch-backend/internal/http/response"
	"github.com/yungbote/outfitmatch-backend/internal/observability"
	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log          *logger.Logger
	Metrics      *observability.Metrics
	ServiceName  string
	CORSOrigins  []string
	MaxBodyBytes int64

	SearchHandler  *httpH.SearchHandler
	ProductHandler *httpH.ProductHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "outfitmatch"
	}
	r := gin.New()
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.Recovery(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	r.Use(httpMW.BodyLimit(cfg.MaxBodyBytes))

	r.NoRoute(func(c *gin.Context) {
		response.RespondError(c, http.StatusNotFound, "not_found", errors.New("route not found"))
	})
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		if cfg.HealthHandler != nil {
			api.GET("/health", cfg.HealthHandler.HealthCheck)
		}
		if cfg.SearchHandler != nil {
			api.POST("/search", cfg.SearchHandler.Search)
		}
		if cfg.ProductHandler != nil {
			api.GET("/products/:id", cfg.ProductHandler.GetProduct)
			api.GET("/products/:id/matches", cfg.ProductHandler.ListMatches)
		}
	}

	return r
}
