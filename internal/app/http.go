package app

import (
	apphttp "github.com/yungbote/outfitmatch-backend/internal/http"
	httpH "github.com/yungbote/outfitmatch-backend/internal/http/handlers"
	"github.com/yungbote/outfitmatch-backend/internal/observability"
	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
)

type Handlers struct {
	Search  *httpH.SearchHandler
	Product *httpH.ProductHandler
	Health  *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Search:  httpH.NewSearchHandler(services.Matcher),
		Product: httpH.NewProductHandler(services.Matcher),
		Health:  httpH.NewHealthHandler(),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, metrics *observability.Metrics) *apphttp.Server {
	return apphttp.NewServer(apphttp.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		ServiceName:    serviceName,
		CORSOrigins:    cfg.Server.CORSOrigins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		SearchHandler:  handlers.Search,
		ProductHandler: handlers.Product,
		HealthHandler:  handlers.Health,
	})
}
