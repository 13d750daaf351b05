package http

import (
	"github.com/gin-gonic/gin"

	"github.com/nextgenvending/kiosk-agent/internal/api/http/handler"
	"github.com/nextgenvending/kiosk-agent/internal/api/http/middleware"
	"github.com/nextgenvending/kiosk-agent/internal/catalog"
	"github.com/nextgenvending/kiosk-agent/internal/checkin"
	"github.com/nextgenvending/kiosk-agent/internal/identity"
	"github.com/nextgenvending/kiosk-agent/internal/pairing"
)

type Services struct {
	Identity identity.Store
	Pairing  *pairing.Session
	Checkin  *checkin.Agent
	Catalog  *catalog.Service
}

// SetupRoute wires the local API consumed by the kiosk UI. Destructive admin
// operations sit behind the API-key guard.
func SetupRoute(engine *gin.Engine, cfg Config, srvs *Services) {
	engine.Use(middleware.RequestLogger())

	healthHandler := handler.NewHealthHandler()
	engine.GET("/health", healthHandler.Check)

	v1 := engine.Group("/api/v1")

	statusHandler := handler.NewStatusHandler(srvs.Identity, srvs.Checkin)
	v1.GET("/status", statusHandler.Status)

	checkinHandler := handler.NewCheckinHandler(srvs.Checkin)
	v1.POST("/checkin", checkinHandler.Trigger)

	pairingHandler := handler.NewPairingHandler(srvs.Pairing, srvs.Checkin)
	v1.GET("/pairing", pairingHandler.Current)
	v1.POST("/pairing/reset", middleware.APIKeyAuth(cfg.AdminAPIKey), pairingHandler.Reset)

	if srvs.Catalog != nil {
		productsHandler := handler.NewProductsHandler(srvs.Catalog)
		v1.GET("/products", productsHandler.List)
		v1.POST("/products/refresh", productsHandler.Refresh)

		purchaseHandler := handler.NewPurchaseHandler(srvs.Catalog)
		v1.POST("/purchase", purchaseHandler.Purchase)
	}
}
