package handlers

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stockwise/internal/export"
	"github.com/andresuchdata/stockwise/internal/service"
)

type AnalyticsHandler struct {
	service *service.AnalyticsService
}

func NewAnalyticsHandler(service *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parameters", "details": err.Error()})
}

func failure(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, service.ErrNoDataset) {
		status = http.StatusServiceUnavailable
	} else {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg(message)
	}
	c.JSON(status, gin.H{"error": message, "details": err.Error()})
}

func (h *AnalyticsHandler) Refresh(c *gin.Context) {
	summary, err := h.service.Refresh(c.Request.Context())
	if err != nil {
		failure(c, "failed to refresh dataset", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *AnalyticsHandler) GetCurrent(c *gin.Context) {
	ds, err := h.service.Current()
	if err != nil {
		failure(c, "failed to fetch dataset", err)
		return
	}
	c.JSON(http.StatusOK, ds.Summary)
}

func (h *AnalyticsHandler) GetInventorySeries(c *gin.Context) {
	q, err := parseSeriesQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	series, err := h.service.InventorySeries(c.Request.Context(), q)
	if err != nil {
		failure(c, "failed to fetch inventory series", err)
		return
	}
	c.JSON(http.StatusOK, series)
}

func (h *AnalyticsHandler) GetDistribution(c *gin.Context) {
	q, err := parseRankingQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	dist, err := h.service.Distribution(c.Request.Context(), q)
	if err != nil {
		failure(c, "failed to fetch distribution", err)
		return
	}
	c.JSON(http.StatusOK, dist)
}

func (h *AnalyticsHandler) GetSupplierCosts(c *gin.Context) {
	q, err := parseCostQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	costs, err := h.service.SupplierCosts(c.Request.Context(), q)
	if err != nil {
		failure(c, "failed to fetch supplier costs", err)
		return
	}
	c.JSON(http.StatusOK, costs)
}

func (h *AnalyticsHandler) GetSalesPrices(c *gin.Context) {
	q, err := parseCostQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	prices, err := h.service.SalesPrices(c.Request.Context(), q)
	if err != nil {
		failure(c, "failed to fetch sales prices", err)
		return
	}
	c.JSON(http.StatusOK, prices)
}

func (h *AnalyticsHandler) GetTopCustomers(c *gin.Context) {
	q, err := parseRankingQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	customers, err := h.service.TopCustomers(c.Request.Context(), q)
	if err != nil {
		failure(c, "failed to fetch customers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": customers})
}

func (h *AnalyticsHandler) GetReplenishment(c *gin.Context) {
	q, err := parseForecastQuery(c)
	if err == nil {
		err = service.ValidateForecastQuery(q)
	}
	if err != nil {
		badRequest(c, err)
		return
	}
	forecast, err := h.service.Forecast(c.Request.Context(), q)
	if err != nil {
		failure(c, "failed to fetch replenishment", err)
		return
	}
	c.JSON(http.StatusOK, forecast)
}

// ExportReplenishment streams the forecast as CSV. view=brands exports the
// per-brand rollup instead of the item rows.
func (h *AnalyticsHandler) ExportReplenishment(c *gin.Context) {
	q, err := parseForecastQuery(c)
	if err == nil {
		err = service.ValidateForecastQuery(q)
	}
	if err != nil {
		badRequest(c, err)
		return
	}
	forecast, err := h.service.Forecast(c.Request.Context(), q)
	if err != nil {
		failure(c, "failed to fetch replenishment", err)
		return
	}

	var buf bytes.Buffer
	filename := "reposicion.csv"
	if c.Query("view") == "brands" {
		filename = "reposicion_marcas.csv"
		err = export.WriteBrandCSV(&buf, forecast)
	} else {
		err = export.WriteReplenishmentCSV(&buf, forecast)
	}
	if err != nil {
		failure(c, "failed to export replenishment", err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
