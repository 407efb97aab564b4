// internal/api/api.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/stockwise/internal/api/handlers"
	"github.com/andresuchdata/stockwise/internal/api/middleware"
	"github.com/andresuchdata/stockwise/internal/service"
)

type Services struct {
	Analytics *service.AnalyticsService
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")

	if services != nil && services.Analytics != nil {
		h := handlers.NewAnalyticsHandler(services.Analytics)

		datasets := apiGroup.Group("/datasets")
		{
			datasets.POST("/refresh", h.Refresh)
			datasets.GET("/current", h.GetCurrent)
		}

		inventory := apiGroup.Group("/inventory")
		{
			inventory.GET("/series", h.GetInventorySeries)
			inventory.GET("/distribution", h.GetDistribution)
		}

		apiGroup.GET("/costs/suppliers", h.GetSupplierCosts)

		sales := apiGroup.Group("/sales")
		{
			sales.GET("/prices", h.GetSalesPrices)
			sales.GET("/customers", h.GetTopCustomers)
		}

		replenishment := apiGroup.Group("/replenishment")
		{
			replenishment.GET("", h.GetReplenishment)
			replenishment.GET("/export", h.ExportReplenishment)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
